// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.sqlite"), DefaultConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("expected WAL journal, got %q", mode)
	}

	issues, err := QuickCheck(context.Background(), db)
	if err != nil {
		t.Fatalf("quick check: %v", err)
	}
	if issues != nil {
		t.Fatalf("fresh database reported issues: %v", issues)
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN("/data/x.sqlite", Config{BusyTimeout: 2 * time.Second})
	if !strings.HasPrefix(dsn, "file:/data/x.sqlite?") || !strings.Contains(dsn, "busy_timeout(2000)") {
		t.Errorf("unexpected dsn %q", dsn)
	}
}
