package storage

import (
	"context"
	"errors"
	"strings"

	logx "kanbard/pkg/logx"
)

// Store is the persistence API used by the archive engine and the run audit.
type Store interface {
	PushUndo(ctx context.Context, rec UndoRecord) error
	PopUndo(ctx context.Context) (UndoRecord, bool, error)
	UndoDepth(ctx context.Context) (int, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown history driver: " + driver)
	}
}
