package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures history persistence.
//
// Driver values:
//   - "file": dependency-free file backend (json snapshot + jsonl audit)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled and undo is unavailable.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Bounds on the undo stack. Both are enforced on every mutation, so a
// long-idle daemon sheds stale records the next time anything is pushed or
// popped.
const (
	MaxUndoRecords = 30
	MaxUndoAge     = 7 * 24 * time.Hour
)

// UndoRecord is one archive run's worth of moved rows. Restore does not
// remember which board a row came from; it replays the ids against every
// enabled profile.
type UndoRecord struct {
	Date int64    `json:"date"` // epoch ms
	IDs  []string `json:"ids"`
}

// AuditEntry records one automated or operator-triggered run.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At      time.Time
	Profile string
	Action  string // archive|restore|report
	Target  string // board or document id
	OK      int
	Fail    int
	Error   string
	TookMS  int64
}

// pruneUndo drops records older than MaxUndoAge, then trims the oldest
// entries until at most MaxUndoRecords remain. Input order is oldest-first.
func pruneUndo(recs []UndoRecord, now time.Time) []UndoRecord {
	cutoff := now.Add(-MaxUndoAge).UnixMilli()
	kept := recs[:0]
	for _, r := range recs {
		if r.Date >= cutoff {
			kept = append(kept, r)
		}
	}
	if len(kept) > MaxUndoRecords {
		kept = kept[len(kept)-MaxUndoRecords:]
	}
	return kept
}
