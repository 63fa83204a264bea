// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/mediamix/internal/persistence/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger (
	request_id TEXT PRIMARY KEY,
	record     BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_expires_at ON ledger (expires_at);
`

// SQLiteBackend stores records in a single table. Expired rows are invisible
// to Load and purged on Save.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteBackend opens or creates the database at path.
func OpenSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	issues, err := sqlite.QuickCheck(ctx, db)
	if err == nil && issues != nil {
		err = fmt.Errorf("integrity check failed: %s", strings.Join(issues, "; "))
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger sqlite schema: %w", err)
	}
	return &SQLiteBackend{db: db, now: time.Now}, nil
}

func (s *SQLiteBackend) Name() string { return "sqlite" }

func (s *SQLiteBackend) Load(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM ledger WHERE request_id = ? AND expires_at > ?`,
		id, s.now().UnixMilli()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *SQLiteBackend) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger WHERE expires_at <= ?`, now.UnixMilli()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger (request_id, record, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET record = excluded.record, expires_at = excluded.expires_at`,
		id, data, now.Add(ttl).UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteBackend) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteBackend) Close() error { return s.db.Close() }
