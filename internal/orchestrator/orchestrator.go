// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package orchestrator fans work units out to a bounded worker pool and calls
// an aggregator exactly once after every unit has a terminal outcome.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/model"
)

// DefaultMaxInFlight bounds concurrent units of one request.
const DefaultMaxInFlight = 4

// PipelineFunc runs one unit to a terminal outcome.
type PipelineFunc func(ctx context.Context, unit model.WorkUnit) model.TaskOutcome

// AggregatorFunc receives every outcome of a request, in arrival order.
type AggregatorFunc func(outcomes []model.TaskOutcome)

// Options tunes a run.
type Options struct {
	MaxInFlight    int
	ReleaseTimeout time.Duration // wait for pool workers to exit; default 5s
	Logger         *zerolog.Logger
}

// Join tracks the outcomes of one run.
type Join struct {
	total int

	mu       sync.Mutex
	outcomes []model.TaskOutcome

	finish   sync.Once
	done     chan struct{}
	released chan struct{}
}

func newJoin(total int) *Join {
	return &Join{
		total:    total,
		outcomes: make([]model.TaskOutcome, 0, total),
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
}

// Total is the number of dispatched units.
func (j *Join) Total() int { return j.total }

// Done is closed after the aggregator returned.
func (j *Join) Done() <-chan struct{} { return j.done }

// Wait blocks until the aggregator returned and the worker pool is gone, or
// ctx ends.
func (j *Join) Wait(ctx context.Context) error {
	for _, ch := range []chan struct{}{j.done, j.released} {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Outcomes returns the outcomes recorded so far, in arrival order.
func (j *Join) Outcomes() []model.TaskOutcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]model.TaskOutcome(nil), j.outcomes...)
}

// record stores an outcome; the call that completes the set runs the aggregator.
func (j *Join) record(out model.TaskOutcome, aggregate func([]model.TaskOutcome)) {
	j.mu.Lock()
	j.outcomes = append(j.outcomes, out)
	complete := len(j.outcomes) == j.total
	j.mu.Unlock()
	if complete {
		j.complete(aggregate)
	}
}

func (j *Join) complete(aggregate func([]model.TaskOutcome)) {
	j.finish.Do(func() {
		defer close(j.done)
		aggregate(j.Outcomes())
	})
}

// Run dispatches one pipelineFn call per unit on a pool of opts.MaxInFlight
// workers and returns at once. A unit that errors, panics or cannot be
// dispatched yields a failed outcome for that unit only; siblings keep
// running. aggregatorFn runs exactly once, also for an empty unit list.
func Run(ctx context.Context, units []model.WorkUnit, pipelineFn PipelineFunc, aggregatorFn AggregatorFunc, opts Options) *Join {
	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.ReleaseTimeout <= 0 {
		opts.ReleaseTimeout = 5 * time.Second
	}
	logger := xglog.WithComponent("orchestrator")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = xglog.WithContext(ctx, logger)

	j := newJoin(len(units))
	aggregate := func(outcomes []model.TaskOutcome) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str(xglog.FieldEvent, "orchestrator.aggregator_panic").
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("aggregator panicked")
			}
		}()
		aggregatorFn(outcomes)
	}

	go dispatch(ctx, j, units, pipelineFn, aggregate, opts, logger)
	return j
}

func dispatch(ctx context.Context, j *Join, units []model.WorkUnit, pipelineFn PipelineFunc, aggregate func([]model.TaskOutcome), opts Options, logger zerolog.Logger) {
	defer close(j.released)

	if len(units) == 0 {
		j.complete(aggregate)
		return
	}

	pool, err := ants.NewPool(opts.MaxInFlight)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "orchestrator.pool_failed").Msg("worker pool unavailable")
		for _, u := range units {
			j.record(model.Failed(u.Index, fmt.Errorf("dispatch: %w", err)), aggregate)
		}
		return
	}

	for _, u := range units {
		err := pool.Submit(func() {
			j.record(runUnit(ctx, u, pipelineFn, logger), aggregate)
		})
		if err != nil {
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "orchestrator.dispatch_failed").
				Int(xglog.FieldUnit, u.Index).
				Msg("unit not dispatched")
			j.record(model.Failed(u.Index, fmt.Errorf("dispatch: %w", err)), aggregate)
		}
	}

	<-j.done
	if err := pool.ReleaseTimeout(opts.ReleaseTimeout); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "orchestrator.release_timeout").Msg("worker pool release timed out")
	}
}

// runUnit converts a panic into a failed outcome and pins the unit index.
func runUnit(ctx context.Context, u model.WorkUnit, pipelineFn PipelineFunc, logger zerolog.Logger) (out model.TaskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str(xglog.FieldEvent, "orchestrator.unit_panic").
				Int(xglog.FieldUnit, u.Index).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("unit panicked")
			out = model.Failed(u.Index, fmt.Errorf("panic: %v", r))
		}
	}()
	out = pipelineFn(ctx, u)
	out.Index = u.Index
	if out.Status != model.StatusSuccess && out.Status != model.StatusFailed {
		out.Status = model.StatusFailed
	}
	return out
}
