package archive

import (
	"context"
	"errors"
	"time"

	"kanbard/internal/board"
	"kanbard/internal/config"
	"kanbard/internal/siyuan"
	"kanbard/internal/storage"
	logx "kanbard/pkg/logx"
)

// RestoreResult describes one undo pass.
type RestoreResult struct {
	// Popped is false when the undo stack was empty.
	Popped   bool
	Record   storage.UndoRecord
	Restored int
	Failed   int
}

// Restore pops the most recent undo record and moves its rows back to each
// profile's completed status. The record does not say which board a row came
// from, so every id is blindly assigned on every enabled profile's board and
// per-id failures are swallowed. A row that meanwhile left its board is
// silently lost; the record is consumed either way.
func (e *Engine) Restore(ctx context.Context, profiles []config.Profile) (RestoreResult, error) {
	if e.hist == nil {
		return RestoreResult{}, storage.ErrDisabled
	}
	start := time.Now()

	rec, ok, err := e.hist.PopUndo(ctx)
	if err != nil {
		return RestoreResult{}, err
	}
	if !ok {
		return RestoreResult{}, nil
	}
	out := RestoreResult{Popped: true, Record: rec}

	for _, p := range profiles {
		if !p.Enabled {
			continue
		}
		restored, failed, perr := e.assignBlind(ctx, p.Keyword, p.CompletedStatus, rec.IDs)
		if perr != nil {
			e.log.Warn("restore pass failed for profile",
				logx.String("profile", p.ID), logx.Err(perr))
			continue
		}
		out.Restored += restored
		out.Failed += failed
	}

	e.audit(ctx, "", "restore", "", out.Restored, out.Failed, nil, start)
	e.log.Info("restore done",
		logx.Int("ids", len(rec.IDs)),
		logx.Int("assigned", out.Restored))
	return out, nil
}

// assignBlind writes the target status to every id on the keyword's board
// without checking the rows' current state.
func (e *Engine) assignBlind(ctx context.Context, keyword, target string, ids []string) (assigned, failed int, err error) {
	ref, err := board.Resolve(ctx, e.store, keyword)
	if errors.Is(err, board.ErrNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	keys, err := e.store.AttributeViewKeys(ctx, ref.BoardID)
	if err != nil {
		return 0, 0, err
	}
	keyID, color, ok := findTargetKey(keys, target)
	if !ok {
		return 0, 0, nil
	}

	value := siyuan.SelectValue{MSelect: []siyuan.SelectOption{{Content: target, Color: color}}}
	for _, id := range ids {
		if werr := e.store.SetAttributeViewBlockAttr(ctx, ref.BoardID, keyID, id, value); werr != nil {
			failed++
			e.log.Debug("blind restore write rejected",
				logx.String("board", ref.BoardID), logx.String("row", id), logx.Err(werr))
			continue
		}
		assigned++
	}
	return assigned, failed, nil
}

// UndoDepth reports how many archive runs can still be undone.
func (e *Engine) UndoDepth(ctx context.Context) (int, error) {
	if e.hist == nil {
		return 0, nil
	}
	return e.hist.UndoDepth(ctx)
}
