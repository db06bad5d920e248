package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "kanbard/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PushUndo(ctx context.Context, rec UndoRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if len(rec.IDs) == 0 {
		return nil
	}
	if rec.Date == 0 {
		rec.Date = time.Now().UnixMilli()
	}
	ids, err := json.Marshal(rec.IDs)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO undo(date, ids) VALUES(?,?)`, rec.Date, string(ids)); err != nil {
		return err
	}
	return s.pruneUndo(ctx)
}

func (s *sqliteStore) PopUndo(ctx context.Context) (UndoRecord, bool, error) {
	if s == nil || s.db == nil {
		return UndoRecord{}, false, ErrDisabled
	}
	if err := s.pruneUndo(ctx); err != nil {
		return UndoRecord{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UndoRecord{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		rowID int64
		date  int64
		ids   string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, date, ids FROM undo ORDER BY id DESC LIMIT 1`).Scan(&rowID, &date, &ids)
	if errors.Is(err, sql.ErrNoRows) {
		return UndoRecord{}, false, nil
	}
	if err != nil {
		return UndoRecord{}, false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM undo WHERE id = ?`, rowID); err != nil {
		return UndoRecord{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return UndoRecord{}, false, err
	}

	rec := UndoRecord{Date: date}
	if err := json.Unmarshal([]byte(ids), &rec.IDs); err != nil {
		return UndoRecord{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteStore) UndoDepth(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	if err := s.pruneUndo(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM undo`).Scan(&n)
	return n, err
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, profile, action, target, ok, fail, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Profile, e.Action, e.Target,
		e.OK, e.Fail, nullStr(e.Error), e.TookMS,
	)
	return err
}

func (s *sqliteStore) pruneUndo(ctx context.Context) error {
	cutoff := time.Now().Add(-MaxUndoAge).UnixMilli()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM undo WHERE date < ?`, cutoff); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM undo WHERE id NOT IN (SELECT id FROM undo ORDER BY id DESC LIMIT ?)`,
		MaxUndoRecords)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
