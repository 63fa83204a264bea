// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package procgroup runs external tools in their own process group so that the
// whole tree can be stopped together.
package procgroup

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/mediamix/internal/metrics"
)

// DefaultGrace is how long Run waits after SIGTERM before sending SIGKILL.
const DefaultGrace = 5 * time.Second

// Terminate sends SIGTERM to the process group of cmd, waits up to grace for
// waitCh to deliver the exit status and escalates to SIGKILL otherwise. It always
// drains waitCh and returns its value. Safe on commands that never started.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	metrics.RecordProcSignal("SIGTERM", signalResult(Kill(cmd, syscall.SIGTERM)))

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
		metrics.RecordProcSignal("SIGKILL", signalResult(Kill(cmd, syscall.SIGKILL)))
		return <-waitCh
	}
}

func signalResult(err error) string {
	if err != nil {
		return "error"
	}
	return "sent"
}

// Run starts cmd in a new process group and waits for it. When ctx ends first the
// group is terminated and the context error is returned, joined with the exit
// status.
func Run(ctx context.Context, cmd *exec.Cmd, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultGrace
	}
	Set(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return err
	case <-ctx.Done():
		waitErr := Terminate(cmd, waitCh, grace)
		return errors.Join(ctx.Err(), waitErr)
	}
}
