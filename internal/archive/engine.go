package archive

import (
	"context"
	"errors"
	"time"

	"kanbard/internal/board"
	"kanbard/internal/config"
	"kanbard/internal/siyuan"
	"kanbard/internal/status"
	"kanbard/internal/storage"
	logx "kanbard/pkg/logx"
)

// Store is the slice of the content store the engine consumes. *siyuan.Client
// implements it; tests substitute fakes.
type Store interface {
	board.Store
	SetAttributeViewBlockAttr(ctx context.Context, avID, keyID, itemID string, value any) error
}

// Engine moves board rows between statuses and keeps the undo stack.
type Engine struct {
	store Store
	hist  storage.Store // nil when history is disabled
	log   logx.Logger
}

func New(store Store, hist storage.Store, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{store: store, hist: hist, log: log}
}

// Result describes one transition pass over one board.
type Result struct {
	// Resolved is false when the keyword matched no board. That is a skip,
	// not an error.
	Resolved bool
	// NoStatusKey is true when the board has no select column carrying both
	// statuses, so nothing could move.
	NoStatusKey bool
	BoardID     string
	Moved       []string
	Failed      int
}

// Archive moves every row sitting in the profile's completed status to its
// archived status, then records the moved ids as one undo record.
func (e *Engine) Archive(ctx context.Context, p config.Profile) (Result, error) {
	start := time.Now()
	res, err := e.transition(ctx, p.Keyword, p.CompletedStatus, p.ArchivedStatus)
	if err != nil {
		e.audit(ctx, p.ID, "archive", res.BoardID, len(res.Moved), res.Failed, err, start)
		return res, err
	}
	if !res.Resolved {
		e.log.Info("board not found, skipping profile",
			logx.String("profile", p.ID), logx.String("keyword", p.Keyword))
		return res, nil
	}

	if len(res.Moved) > 0 && e.hist != nil {
		rec := storage.UndoRecord{Date: time.Now().UnixMilli(), IDs: res.Moved}
		if uerr := e.hist.PushUndo(ctx, rec); uerr != nil {
			e.log.Error("recording undo failed", logx.String("profile", p.ID), logx.Err(uerr))
		}
	}
	e.audit(ctx, p.ID, "archive", res.BoardID, len(res.Moved), res.Failed, nil, start)
	e.log.Info("archive pass done",
		logx.String("profile", p.ID),
		logx.Int("moved", len(res.Moved)),
		logx.Int("failed", res.Failed))
	return res, nil
}

// transition resolves the board behind keyword and rewrites the status cell
// of every matching row from `from` to `to`.
//
// Writes are independent per row. One rejected write is logged and counted,
// the rest of the batch continues.
func (e *Engine) transition(ctx context.Context, keyword, from, to string) (Result, error) {
	ref, err := board.Resolve(ctx, e.store, keyword)
	if errors.Is(err, board.ErrNotFound) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, err
	}
	res := Result{Resolved: true, BoardID: ref.BoardID}

	keys, err := e.store.AttributeViewKeys(ctx, ref.BoardID)
	if err != nil {
		e.log.Warn("listing board columns failed", logx.String("board", ref.BoardID), logx.Err(err))
	}
	keyID, color, ok := findStatusKey(keys, from, to)
	if !ok {
		res.NoStatusKey = true
		e.log.Warn("no select column offers both statuses, nothing to move",
			logx.String("board", ref.BoardID),
			logx.String("from", from),
			logx.String("to", to))
		return res, nil
	}

	view, err := e.store.RenderAttributeView(ctx, ref.BoardID, ref.ViewID, 0, 0)
	if err != nil {
		return res, err
	}

	cols := board.ColumnsFromKeys(keys)
	colsFromView := len(cols) == 0
	if colsFromView {
		cols = board.ExtractColumns(view)
	}
	opts := board.Options{StatusCandidates: []string{status.Normalize(from)}}

	rows, err := board.Normalize(ctx, e.store, view, cols, opts)
	if err != nil {
		return res, err
	}

	// Gallery and kanban views can render without row payloads. When the
	// payload lists a table-typed sibling view, re-render through it before
	// treating the board as empty.
	if len(rows) == 0 {
		if tvID := board.TableViewID(view); tvID != "" && tvID != ref.ViewID {
			e.log.Debug("view rendered no rows, retrying with table view",
				logx.String("board", ref.BoardID),
				logx.String("table_view", tvID))
			view, err = e.store.RenderAttributeView(ctx, ref.BoardID, tvID, 0, 0)
			if err != nil {
				return res, err
			}
			if colsFromView {
				cols = board.ExtractColumns(view)
			}
			rows, err = board.Normalize(ctx, e.store, view, cols, opts)
			if err != nil {
				return res, err
			}
		}
	}
	roles := board.InferRoles(cols)

	value := siyuan.SelectValue{MSelect: []siyuan.SelectOption{{Content: to, Color: color}}}
	for _, row := range rows {
		if !rowMatches(row, roles.Status, from) {
			continue
		}
		if werr := e.store.SetAttributeViewBlockAttr(ctx, ref.BoardID, keyID, row.ID, value); werr != nil {
			res.Failed++
			e.log.Warn("status write rejected",
				logx.String("board", ref.BoardID),
				logx.String("row", row.ID),
				logx.Err(werr))
			continue
		}
		res.Moved = append(res.Moved, row.ID)
	}
	return res, nil
}

// findStatusKey picks the select column whose options carry both statuses.
// The target option's display color travels with the write so the board keeps
// its coloring.
func findStatusKey(keys []siyuan.AttrViewKey, from, to string) (keyID, color string, ok bool) {
	for _, k := range keys {
		if k.Type != "select" && k.Type != "mSelect" {
			continue
		}
		var hasFrom bool
		var toColor string
		var hasTo bool
		for _, opt := range k.Options {
			if opt.Name == from {
				hasFrom = true
			}
			if opt.Name == to {
				hasTo = true
				toColor = opt.Color
			}
		}
		if hasFrom && hasTo {
			return k.ID, toColor, true
		}
	}
	return "", "", false
}

// findTargetKey relaxes findStatusKey to the target option only; restore
// does not know which status a row currently holds.
func findTargetKey(keys []siyuan.AttrViewKey, target string) (keyID, color string, ok bool) {
	for _, k := range keys {
		if k.Type != "select" && k.Type != "mSelect" {
			continue
		}
		for _, opt := range k.Options {
			if opt.Name == target {
				return k.ID, opt.Color, true
			}
		}
	}
	return "", "", false
}

// rowMatches reports whether the row currently sits in status `want`.
// The inferred status column decides when it holds a value; an absent or
// empty status cell widens the check to every cell.
func rowMatches(row board.Row, statusIdx int, want string) bool {
	if statusIdx >= 0 && statusIdx < len(row.Cells) {
		cell := row.Cells[statusIdx]
		val := ""
		if statusIdx < len(row.CellValues) {
			val = row.CellValues[statusIdx]
		}
		if cell != nil || val != "" {
			return cellMatches(cell, want) || val == want
		}
	}
	for _, c := range row.Cells {
		if cellMatches(c, want) {
			return true
		}
	}
	for _, v := range row.CellValues {
		if v == want {
			return true
		}
	}
	return false
}

// cellMatches does an exact select/mSelect content comparison against one
// raw cell payload.
func cellMatches(cell any, want string) bool {
	switch v := cell.(type) {
	case string:
		return v == want
	case map[string]any:
		if s, _ := v["content"].(string); s == want {
			return true
		}
		if sel, ok := v["select"].(map[string]any); ok {
			if s, _ := sel["content"].(string); s == want {
				return true
			}
		}
		if ms, ok := v["mSelect"].([]any); ok {
			for _, o := range ms {
				om, ok := o.(map[string]any)
				if !ok {
					continue
				}
				if s, _ := om["content"].(string); s == want {
					return true
				}
			}
		}
		if inner, ok := v["value"]; ok {
			if im, ok := inner.(map[string]any); ok {
				return cellMatches(im, want)
			}
		}
	}
	return false
}

func (e *Engine) audit(ctx context.Context, profile, action, target string, okN, failN int, err error, start time.Time) {
	if e.hist == nil {
		return
	}
	entry := storage.AuditEntry{
		At:      start,
		Profile: profile,
		Action:  action,
		Target:  target,
		OK:      okN,
		Fail:    failN,
		TookMS:  time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if aerr := e.hist.AppendAudit(ctx, entry); aerr != nil {
		e.log.Debug("audit append failed", logx.Err(aerr))
	}
}
