// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package pipeline builds one output video from a work unit: fetch the inputs,
// synthesize the voiceover, compose, and persist. Every run owns a scratch
// directory that is removed however the run ends, and every failure becomes a
// failed outcome rather than an error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/mediamix/internal/compose"
	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/metrics"
	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/pipeline/fsm"
	"github.com/ManuGH/mediamix/internal/storage"
	"github.com/ManuGH/mediamix/internal/telemetry"
	"github.com/ManuGH/mediamix/internal/validate"
	"github.com/ManuGH/mediamix/internal/voiceover"
	"github.com/ManuGH/mediamix/internal/workarea"
)

// Defaults for the composing stage.
const (
	DefaultBackgroundVolume = 0.2
	DefaultVideoCodec       = "libx264"
	DefaultAudioCodec       = "aac"
)

// Fetcher downloads locators into dir and maps each locator to its local path.
type Fetcher interface {
	Fetch(ctx context.Context, locators []string, dir string) (map[string]string, error)
}

// Config holds per-run settings.
type Config struct {
	WorkRoot         string // parent of the per-unit work areas; empty uses os.TempDir
	RootFolderID     string // remote parent of the per-task folders
	BackgroundVolume float64
	VideoCodec       string
	AudioCodec       string
}

// Deps are the collaborators a pipeline drives.
type Deps struct {
	Fetcher     Fetcher
	Synthesizer voiceover.Synthesizer
	Compositor  compose.Compositor
	Uploader    storage.Uploader
	Emitter     xglog.Emitter
	Tracer      trace.Tracer
}

// Pipeline runs work units. It holds no per-unit state and is safe for
// concurrent use.
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// New validates deps and fills defaults.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("pipeline: synthesizer is required")
	case deps.Compositor == nil:
		return nil, errors.New("pipeline: compositor is required")
	case deps.Uploader == nil:
		return nil, errors.New("pipeline: uploader is required")
	}
	if deps.Emitter == nil {
		deps.Emitter = xglog.Nop{}
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.Tracer(telemetry.InstrumentationName)
	}
	if cfg.BackgroundVolume == 0 {
		cfg.BackgroundVolume = DefaultBackgroundVolume
	}
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = DefaultVideoCodec
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = DefaultAudioCodec
	}
	return &Pipeline{cfg: cfg, deps: deps, logger: xglog.WithComponent("pipeline")}, nil
}

// OutputName is the rendered file name for unit index, locally and remotely.
func OutputName(index int) string {
	return fmt.Sprintf("output_%d.mp4", index)
}

// Run executes unit to a terminal state. It never panics on collaborator
// errors and never returns an error: failures are reported in the outcome.
func (p *Pipeline) Run(ctx context.Context, taskName string, unit model.WorkUnit) model.TaskOutcome {
	ctx, span := p.deps.Tracer.Start(ctx, "pipeline.unit",
		trace.WithAttributes(telemetry.UnitAttributes(taskName, unit.Index)...))
	defer span.End()

	r := &unitRun{
		p:        p,
		taskName: taskName,
		unit:     unit,
		start:    time.Now(),
		logger:   xglog.WithContext(ctx, p.logger).With().Int(xglog.FieldUnit, unit.Index).Logger(),
	}
	machine, err := fsm.New(StateCreated, transitions, terminalStates,
		fsm.WithObserver[State, Event](r.observe))
	if err != nil {
		// static table; only reachable through a programming error
		panic(err)
	}
	r.machine = machine

	metrics.UnitStarted()
	r.emit(xglog.LevelInfo, xglog.MsgUnitStarted, nil, map[string]any{
		"video_urls":     sanitizeAll(unit.VideoLocators),
		"audio_url":      validate.SanitizeURL(unit.AudioLocator),
		"text_to_speech": map[string]string{"text": unit.Script.Text, "voice": unit.Script.Voice},
	}, "")

	if err := r.execute(ctx); err != nil {
		stage := machine.State()
		_, _ = machine.Fire(ctx, EventFail)
		kind := model.KindOf(err)

		metrics.RecordUnitFailure(string(stage), string(kind))
		metrics.UnitFinished(string(model.StatusFailed))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(string(kind), string(stage))...)
		span.SetAttributes(attribute.String(telemetry.UnitStatusKey, string(model.StatusFailed)))

		total := time.Since(r.start)
		r.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "pipeline.unit_failed").
			Str(xglog.FieldStage, string(stage)).
			Str("kind", string(kind)).
			Msg("unit failed")
		r.emit(xglog.LevelError, xglog.MsgUnitFailed, &total, map[string]any{"stage": string(stage)}, err.Error())
		return model.Failed(unit.Index, err)
	}

	_, _ = machine.Fire(ctx, EventFinish)
	metrics.UnitFinished(string(model.StatusSuccess))
	span.SetAttributes(attribute.String(telemetry.UnitStatusKey, string(model.StatusSuccess)))
	total := time.Since(r.start)
	r.emit(xglog.LevelInfo, xglog.MsgUnitSucceeded, &total, nil, "")
	return model.Succeeded(unit.Index)
}

type unitRun struct {
	p        *Pipeline
	taskName string
	unit     model.WorkUnit
	start    time.Time
	logger   zerolog.Logger
	machine  *fsm.Machine[State, Event]

	videoFiles []string
	background string
	voice      string
	output     string
}

func (r *unitRun) observe(step fsm.Step[State, Event]) {
	r.logger.Debug().
		Str(xglog.FieldEvent, "pipeline.transition").
		Str(xglog.FieldOldState, string(step.From)).
		Str(xglog.FieldNewState, string(step.To)).
		Dur("dwell", step.Dwell).
		Msg("state changed")
}

func (r *unitRun) emit(level xglog.Level, msg string, total *time.Duration, extra map[string]any, errDetails string) {
	details := map[string]any{"video_number": r.unit.Index}
	for k, v := range extra {
		details[k] = v
	}
	r.p.deps.Emitter.Emit(xglog.Event{
		TaskName:     r.taskName,
		Timestamp:    time.Now(),
		TotalTime:    total,
		Level:        level,
		Message:      msg,
		Details:      details,
		ErrorDetails: errDetails,
	})
}

// execute allocates the work area, runs every stage, and releases the area.
// A release failure fails the unit as a resource error.
func (r *unitRun) execute(ctx context.Context) (err error) {
	area, err := workarea.Create(r.p.cfg.WorkRoot, fmt.Sprintf("%s-%d", r.taskName, r.unit.Index))
	if err != nil {
		return err
	}
	defer func() {
		if rerr := area.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()

	stages := []struct {
		event Event
		run   func(context.Context, *workarea.Area) error
	}{
		{EventFetch, r.fetch},
		{EventSynthesize, r.synthesize},
		{EventCompose, r.compose},
		{EventPersist, r.persist},
	}
	for _, st := range stages {
		if err := r.advance(ctx, st.event, area, st.run); err != nil {
			return err
		}
	}
	return nil
}

func (r *unitRun) advance(ctx context.Context, event Event, area *workarea.Area, run func(context.Context, *workarea.Area) error) error {
	stage, err := r.machine.Fire(ctx, event)
	if err != nil {
		return model.ResourceError("pipeline state", err)
	}
	if err := ctx.Err(); err != nil {
		return model.ResourceError(string(stage), err)
	}

	sctx, span := r.p.deps.Tracer.Start(ctx, "pipeline."+string(stage),
		trace.WithAttributes(telemetry.StageAttributes(string(stage), r.unit.Index)...))
	start := time.Now()
	err = run(sctx, area)
	elapsed := time.Since(start)
	metrics.ObserveStage(string(stage), elapsed, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if err != nil {
		return err
	}

	r.logger.Debug().
		Str(xglog.FieldEvent, "pipeline.stage_done").
		Str(xglog.FieldStage, string(stage)).
		Dur("duration", elapsed).
		Msg("stage finished")
	r.emit(xglog.LevelInfo, stageMessages[stage], &elapsed, nil, "")
	return nil
}

// classify wraps err with kind unless a collaborator already classified it.
func classify(err error, wrap func(string, error) error, op string) error {
	if err == nil {
		return nil
	}
	if model.KindOf(err) != model.KindUnknown {
		return err
	}
	return wrap(op, err)
}

func (r *unitRun) fetch(ctx context.Context, area *workarea.Area) error {
	locators := r.unit.Locators()
	paths, err := r.p.deps.Fetcher.Fetch(ctx, locators, area.Path())
	if err != nil {
		return classify(err, model.TransferError, "fetch")
	}
	files := make([]string, 0, len(locators))
	for _, loc := range locators {
		p, ok := paths[loc]
		if !ok || p == "" {
			return model.TransferError("fetch "+validate.SanitizeURL(loc), errors.New("no local file produced"))
		}
		files = append(files, p)
	}
	r.videoFiles = files[:len(r.unit.VideoLocators)]
	r.background = files[len(files)-1]
	return nil
}

func (r *unitRun) synthesize(ctx context.Context, area *workarea.Area) error {
	s := r.unit.Script
	path, err := r.p.deps.Synthesizer.Synthesize(ctx, s.Text, s.Voice, area.Path())
	if err != nil {
		return classify(err, model.SynthesisError, fmt.Sprintf("voiceover %q", s.Voice))
	}
	if path == "" {
		return model.SynthesisError(fmt.Sprintf("voiceover %q", s.Voice), errors.New("no audio file produced"))
	}
	r.voice = path
	return nil
}

func (r *unitRun) compose(ctx context.Context, area *workarea.Area) error {
	c := r.p.deps.Compositor
	video, err := c.Concatenate(ctx, r.videoFiles)
	if err != nil {
		return classify(err, model.CompositionError, "concatenate")
	}
	mixed, err := c.MixAudio(ctx, r.background, r.p.cfg.BackgroundVolume, video.Duration, r.voice)
	if err != nil {
		return classify(err, model.CompositionError, "mix audio")
	}
	out, err := area.Join(OutputName(r.unit.Index))
	if err != nil {
		return err
	}
	if err := c.Render(ctx, video, mixed, out, r.p.cfg.VideoCodec, r.p.cfg.AudioCodec); err != nil {
		return classify(err, model.CompositionError, "render")
	}
	r.output = out
	return nil
}

func (r *unitRun) persist(ctx context.Context, _ *workarea.Area) error {
	u := r.p.deps.Uploader
	folderID, err := u.EnsureFolder(ctx, r.p.cfg.RootFolderID, r.taskName)
	if err != nil {
		return classify(err, model.TransferError, fmt.Sprintf("ensure folder %q", r.taskName))
	}
	name := OutputName(r.unit.Index)
	if err := u.Upload(ctx, folderID, r.output, name); err != nil {
		return classify(err, model.TransferError, "upload "+name)
	}
	return nil
}

func sanitizeAll(locators []string) []string {
	out := make([]string, len(locators))
	for i, l := range locators {
		out[i] = validate.SanitizeURL(l)
	}
	return out
}
