// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config selects and configures a backend.
type Config struct {
	Backend   string // memory, sqlite, badger or redis
	Path      string // sqlite file or badger directory
	Retention time.Duration
	// Redis is shared with other components and not closed by the ledger.
	Redis redis.UniversalClient
}

// Open builds the ledger described by cfg.
func Open(ctx context.Context, cfg Config) (*Ledger, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "", "memory":
		backend = NewMemoryBackend()
	case "sqlite":
		backend, err = OpenSQLiteBackend(ctx, cfg.Path)
	case "badger":
		backend, err = OpenBadgerBackend(cfg.Path)
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("ledger: redis backend needs a redis client")
		}
		backend = NewRedisBackend(cfg.Redis, "", false)
	default:
		return nil, fmt.Errorf("ledger: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, cfg.Retention), nil
}
