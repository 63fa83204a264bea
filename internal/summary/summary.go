// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package summary reduces the outcomes of a media request to its summary and
// reports it.
package summary

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/metrics"
	"github.com/ManuGH/mediamix/internal/model"
)

// Summarize counts outcomes. Anything that is not a success counts as failed.
func Summarize(requestID, taskName string, start time.Time, outcomes []model.TaskOutcome, now time.Time) model.RequestSummary {
	s := model.RequestSummary{
		RequestID: requestID,
		TaskName:  taskName,
		StartedAt: start,
		Elapsed:   now.Sub(start),
	}
	if s.Elapsed < 0 {
		s.Elapsed = 0
	}
	s.ElapsedSecs = s.Elapsed.Seconds()
	for _, o := range outcomes {
		if o.Status == model.StatusSuccess {
			s.SuccessCount++
		} else {
			s.FailedCount++
		}
	}
	return s
}

// Recorder persists a finished summary.
type Recorder interface {
	Finish(ctx context.Context, summary model.RequestSummary) error
}

// Reporter publishes request summaries.
type Reporter struct {
	emitter  xglog.Emitter
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReporter returns a Reporter. recorder may be nil.
func NewReporter(emitter xglog.Emitter, recorder Recorder) *Reporter {
	if emitter == nil {
		emitter = xglog.Nop{}
	}
	return &Reporter{
		emitter:  emitter,
		recorder: recorder,
		logger:   xglog.WithComponent("summary"),
		now:      time.Now,
	}
}

// Report summarizes outcomes, emits the request finished event, records
// metrics and hands the summary to the recorder. Recorder errors are logged.
func (r *Reporter) Report(ctx context.Context, requestID, taskName string, start time.Time, outcomes []model.TaskOutcome) model.RequestSummary {
	s := Summarize(requestID, taskName, start, outcomes, r.now())

	metrics.RecordRequestFinished(s.Elapsed)
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("request.finished")
	}
	total := s.Elapsed
	r.emitter.Emit(xglog.Event{
		TaskName:  taskName,
		Timestamp: r.now(),
		TotalTime: &total,
		Level:     xglog.LevelInfo,
		Message:   xglog.MsgRequestFinished,
		Details: map[string]any{
			"request_id":    requestID,
			"success_count": s.SuccessCount,
			"failed_count":  s.FailedCount,
		},
	})

	if r.recorder != nil {
		if err := r.recorder.Finish(ctx, s); err != nil {
			logger := xglog.WithContext(ctx, r.logger)
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "summary.persist_failed").
				Msg("request summary not persisted")
		}
	}
	return s
}
