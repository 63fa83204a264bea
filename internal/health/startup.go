// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ManuGH/mediamix/internal/config"
	"github.com/ManuGH/mediamix/internal/log"
)

// PerformStartupChecks validates the environment before the server starts:
// the work directory is created and writable, the ffmpeg binaries resolve and
// file-backed stores have a parent directory.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	if err := os.MkdirAll(cfg.WorkDir, 0o750); err != nil {
		return fmt.Errorf("work directory: %w", err)
	}
	if err := checkWritableDir(cfg.WorkDir); err != nil {
		return fmt.Errorf("work directory check failed: %w", err)
	}

	for _, bin := range []string{cfg.Compose.FFmpegPath, cfg.Compose.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("binary not found (%s): %w", bin, err)
		}
	}

	switch cfg.Ledger.Backend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o750); err != nil {
			return fmt.Errorf("ledger directory: %w", err)
		}
	case "badger":
		if err := os.MkdirAll(cfg.Ledger.Path, 0o750); err != nil {
			return fmt.Errorf("ledger directory: %w", err)
		}
	case "memory":
		logger.Warn().Str("event", "startup.ledger_memory").
			Msg("request ledger is in memory; records are lost on restart")
	}

	if cfg.Storage.Backend == "local" {
		if err := os.MkdirAll(cfg.Storage.Local.Dir, 0o750); err != nil {
			return fmt.Errorf("local storage directory: %w", err)
		}
	}

	logger.Info().Str("event", "startup.checks_passed").Str("work_dir", cfg.WorkDir).Msg("startup checks passed")
	return nil
}
