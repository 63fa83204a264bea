// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ledger records the lifecycle of media requests so their outcomes can
// be queried after the fact. It observes the core and never influences it.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/mediamix/internal/metrics"
	"github.com/ManuGH/mediamix/internal/model"
)

// DefaultRetention is how long a record survives its last update.
const DefaultRetention = time.Hour

// ErrNotFound is returned for unknown or expired request ids.
var ErrNotFound = errors.New("ledger: record not found")

// State is the coarse lifecycle of a request.
type State string

const (
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// Record is everything known about one request.
type Record struct {
	RequestID  string                `json:"request_id"`
	TaskName   string                `json:"task_name"`
	TotalUnits int                   `json:"total_units"`
	State      State                 `json:"state"`
	StartedAt  time.Time             `json:"started_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	Outcomes   []model.TaskOutcome   `json:"outcomes"`
	Summary    *model.RequestSummary `json:"summary,omitempty"`
}

// Backend stores encoded records by request id with an expiry.
type Backend interface {
	Name() string
	Load(ctx context.Context, requestID string) ([]byte, error)
	Save(ctx context.Context, requestID string, data []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// Ledger applies record updates on top of a Backend. Updates to one request
// are serialized; a request's units all report to the process that accepted it.
type Ledger struct {
	backend   Backend
	retention time.Duration
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

// New wraps backend. A non-positive retention uses DefaultRetention.
func New(backend Backend, retention time.Duration) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Ledger{backend: backend, retention: retention, now: time.Now, locks: make(map[string]*recordLock)}
}

// Name returns the backend name.
func (l *Ledger) Name() string { return l.backend.Name() }

// Ping checks the backend.
func (l *Ledger) Ping(ctx context.Context) error { return l.backend.Ping(ctx) }

// Close releases the backend.
func (l *Ledger) Close() error { return l.backend.Close() }

// Begin creates the running record of a newly accepted request.
func (l *Ledger) Begin(ctx context.Context, requestID, taskName string, totalUnits int, startedAt time.Time) error {
	unlock := l.lock(requestID)
	defer unlock()
	rec := Record{
		RequestID:  requestID,
		TaskName:   taskName,
		TotalUnits: totalUnits,
		State:      StateRunning,
		StartedAt:  startedAt.UTC(),
		UpdatedAt:  l.now().UTC(),
		Outcomes:   []model.TaskOutcome{},
	}
	return l.save(ctx, "begin", rec)
}

// RecordOutcome appends a unit outcome.
func (l *Ledger) RecordOutcome(ctx context.Context, requestID string, out model.TaskOutcome) error {
	return l.update(ctx, "outcome", requestID, func(rec *Record) {
		rec.Outcomes = append(rec.Outcomes, out)
	})
}

// Finish stores the summary and marks the request finished.
func (l *Ledger) Finish(ctx context.Context, summary model.RequestSummary) error {
	return l.update(ctx, "finish", summary.RequestID, func(rec *Record) {
		rec.State = StateFinished
		rec.Summary = &summary
	})
}

// Get returns the record of requestID.
func (l *Ledger) Get(ctx context.Context, requestID string) (Record, error) {
	data, err := l.backend.Load(ctx, requestID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.RecordLedgerError(l.backend.Name(), "get")
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		metrics.RecordLedgerError(l.backend.Name(), "decode")
		return Record{}, fmt.Errorf("ledger: decode %s: %w", requestID, err)
	}
	return rec, nil
}

// lock holds the per-request lock until the returned func is called.
func (l *Ledger) lock(requestID string) func() {
	l.mu.Lock()
	rl, ok := l.locks[requestID]
	if !ok {
		rl = &recordLock{}
		l.locks[requestID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, requestID)
		}
		l.mu.Unlock()
	}
}

func (l *Ledger) update(ctx context.Context, op, requestID string, fn func(*Record)) error {
	unlock := l.lock(requestID)
	defer unlock()
	rec, err := l.Get(ctx, requestID)
	if err != nil {
		return err
	}
	fn(&rec)
	rec.UpdatedAt = l.now().UTC()
	return l.save(ctx, op, rec)
}

func (l *Ledger) save(ctx context.Context, op string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := l.backend.Save(ctx, rec.RequestID, data, l.retention); err != nil {
		metrics.RecordLedgerError(l.backend.Name(), op)
		return fmt.Errorf("ledger: %s %s: %w", op, rec.RequestID, err)
	}
	return nil
}
