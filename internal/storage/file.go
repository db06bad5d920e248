package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "kanbard/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.undo.json   (full snapshot, rewritten on every mutation)
//   - <prefix>.audit.jsonl (append-only JSON Lines)
//
// The undo stack is tiny by construction, so snapshot-on-write is cheaper
// than a journal here.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	undoPath string
	undo     []UndoRecord // oldest first

	auditFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("history.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	undoPath := prefix + ".undo.json"
	auditPath := prefix + ".audit.jsonl"

	undo, err := loadUndoSnapshot(undoPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("undo snapshot unreadable, starting empty", logx.Err(err))
	}

	af, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:       log,
		undoPath:  undoPath,
		undo:      pruneUndo(undo, time.Now()),
		auditFile: af,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) PushUndo(ctx context.Context, rec UndoRecord) error {
	_ = ctx
	if len(rec.IDs) == 0 {
		return nil
	}
	if rec.Date == 0 {
		rec.Date = time.Now().UnixMilli()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = pruneUndo(append(s.undo, rec), time.Now())
	return s.saveUndoLocked()
}

func (s *fileStore) PopUndo(ctx context.Context) (UndoRecord, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = pruneUndo(s.undo, time.Now())
	if len(s.undo) == 0 {
		return UndoRecord{}, false, s.saveUndoLocked()
	}
	rec := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	return rec, true, s.saveUndoLocked()
}

func (s *fileStore) UndoDepth(ctx context.Context) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = pruneUndo(s.undo, time.Now())
	return len(s.undo), nil
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) saveUndoLocked() error {
	tmp := s.undoPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.undo); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.undoPath)
}

func loadUndoSnapshot(path string) ([]UndoRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var recs []UndoRecord
	if err := json.NewDecoder(f).Decode(&recs); err != nil {
		return nil, err
	}
	return recs, nil
}
