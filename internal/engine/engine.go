// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package engine accepts media requests and drives them from validation to
// their summary: expand, fan out, run each unit's pipeline and report once.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/mediamix/internal/expand"
	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/metrics"
	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/orchestrator"
	"github.com/ManuGH/mediamix/internal/pipeline"
	"github.com/ManuGH/mediamix/internal/summary"
	"github.com/ManuGH/mediamix/internal/telemetry"
)

// ErrShuttingDown is returned by Submit once Shutdown has begun.
var ErrShuttingDown = errors.New("engine: shutting down")

// Config is the per-request snapshot of tunables.
type Config struct {
	Validate    model.ValidateOptions
	MaxInFlight int
	Pipeline    pipeline.Config
}

// Ledger observes request lifecycles. Errors are logged and otherwise ignored.
type Ledger interface {
	Begin(ctx context.Context, requestID, taskName string, totalUnits int, startedAt time.Time) error
	RecordOutcome(ctx context.Context, requestID string, out model.TaskOutcome) error
	Finish(ctx context.Context, s model.RequestSummary) error
}

// Submission is an accepted request.
type Submission struct {
	RequestID   string `json:"request_id"`
	TaskName    string `json:"task_name"`
	TotalVideos int    `json:"total_videos"`

	join    *orchestrator.Join
	summary model.RequestSummary
}

// Wait blocks until the request's summary is reported or ctx ends.
func (s *Submission) Wait(ctx context.Context) (model.RequestSummary, error) {
	if err := s.join.Wait(ctx); err != nil {
		return model.RequestSummary{}, err
	}
	return s.summary, nil
}

// Engine runs media requests in the background.
type Engine struct {
	cfg      atomic.Pointer[Config]
	deps     pipeline.Deps
	ledger   Ledger
	chooser  expand.Chooser
	chooseMu sync.Mutex
	reporter *summary.Reporter
	logger   zerolog.Logger

	base context.Context
	stop context.CancelFunc
	// admitMu orders admission against Shutdown: a request either joins
	// inflight before closing is set or is rejected.
	admitMu  sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

// New returns an engine. deps must carry the four pipeline collaborators;
// ledger and chooser may be nil.
func New(cfg Config, deps pipeline.Deps, ledger Ledger, chooser expand.Chooser) (*Engine, error) {
	if _, err := pipeline.New(cfg.Pipeline, deps); err != nil {
		return nil, err
	}
	if deps.Emitter == nil {
		deps.Emitter = xglog.Nop{}
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.Tracer(telemetry.InstrumentationName)
	}
	if chooser == nil {
		chooser = expand.NewChooser()
	}
	var recorder summary.Recorder
	if ledger != nil {
		recorder = ledger
	}
	base, stop := context.WithCancel(context.Background())
	e := &Engine{
		deps:     deps,
		ledger:   ledger,
		chooser:  chooser,
		reporter: summary.NewReporter(deps.Emitter, recorder),
		logger:   xglog.WithComponent("engine"),
		base:     base,
		stop:     stop,
	}
	e.SetConfig(cfg)
	return e, nil
}

// SetConfig replaces the snapshot used by subsequent submissions.
func (e *Engine) SetConfig(cfg Config) {
	e.cfg.Store(&cfg)
}

// Config returns the current snapshot.
func (e *Engine) Config() Config { return *e.cfg.Load() }

// Submit validates req, expands it and starts its units. It returns as soon as
// the units are dispatched; use Wait on the result to block until the summary.
// Processing outlives ctx, but inherits its values.
func (e *Engine) Submit(ctx context.Context, req model.MediaRequest) (_ *Submission, err error) {
	if !e.admit() {
		metrics.RecordRequestRejected("shutdown")
		return nil, ErrShuttingDown
	}
	defer func() {
		if err != nil {
			e.inflight.Done()
		}
	}()
	cfg := e.Config()

	if err := model.Validate(req, cfg.Validate); err != nil {
		metrics.RecordRequestRejected("validation")
		return nil, err
	}
	e.chooseMu.Lock()
	units, err := expand.Expand(req, e.chooser)
	e.chooseMu.Unlock()
	if err != nil {
		metrics.RecordRequestRejected("validation")
		return nil, err
	}
	p, err := pipeline.New(cfg.Pipeline, e.deps)
	if err != nil {
		return nil, err
	}

	sub := &Submission{
		RequestID:   uuid.NewString(),
		TaskName:    req.TaskName,
		TotalVideos: len(units),
	}
	start := time.Now()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(e.base, cancel)
	runCtx = xglog.ContextWithRequestID(runCtx, sub.RequestID)
	runCtx = xglog.ContextWithTaskName(runCtx, sub.TaskName)
	runCtx, span := e.deps.Tracer.Start(runCtx, "request",
		trace.WithAttributes(telemetry.RequestAttributes(sub.RequestID, sub.TaskName, len(units))...))
	logger := xglog.WithContext(runCtx, e.logger)

	metrics.RecordRequestAccepted()
	e.deps.Emitter.Emit(xglog.Event{
		TaskName:  sub.TaskName,
		Timestamp: start,
		Level:     xglog.LevelInfo,
		Message:   xglog.MsgRequestStarted,
		Details:   map[string]any{"request_id": sub.RequestID, "total_videos": len(units)},
	})
	if e.ledger != nil {
		if err := e.ledger.Begin(runCtx, sub.RequestID, sub.TaskName, len(units), start); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "engine.ledger_begin_failed").Msg("request not recorded")
		}
	}

	run := func(ctx context.Context, u model.WorkUnit) model.TaskOutcome {
		out := p.Run(ctx, sub.TaskName, u)
		if e.ledger != nil {
			if err := e.ledger.RecordOutcome(ctx, sub.RequestID, out); err != nil {
				logger.Warn().Err(err).
					Str(xglog.FieldEvent, "engine.ledger_outcome_failed").
					Int(xglog.FieldUnit, u.Index).
					Msg("unit outcome not recorded")
			}
		}
		return out
	}
	aggregate := func(outcomes []model.TaskOutcome) {
		defer cancel()
		defer stopAfter()
		defer span.End()
		sub.summary = e.reporter.Report(runCtx, sub.RequestID, sub.TaskName, start, outcomes)
		span.SetAttributes(telemetry.SummaryAttributes(sub.summary.SuccessCount, sub.summary.FailedCount)...)
	}

	sub.join = orchestrator.Run(runCtx, units, run, aggregate, orchestrator.Options{
		MaxInFlight: cfg.MaxInFlight,
		Logger:      &logger,
	})
	go func() {
		defer e.inflight.Done()
		_ = sub.join.Wait(context.Background())
	}()

	logger.Info().
		Str(xglog.FieldEvent, "engine.request_accepted").
		Int("total_videos", len(units)).
		Msg("media request accepted")
	return sub, nil
}

func (e *Engine) admit() bool {
	e.admitMu.Lock()
	defer e.admitMu.Unlock()
	if e.closing {
		return false
	}
	e.inflight.Add(1)
	return true
}

// Shutdown stops accepting requests and waits for in-flight ones to report.
// When ctx ends first the remaining units are cancelled, and Shutdown still
// waits for them to reach their summary before returning ctx's error.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.admitMu.Lock()
	e.closing = true
	e.admitMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.stop()
		return nil
	case <-ctx.Done():
		e.logger.Warn().Str(xglog.FieldEvent, "engine.shutdown_forced").Msg("cancelling in-flight requests")
		e.stop()
		<-done
		return ctx.Err()
	}
}
