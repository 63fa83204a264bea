// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediamix/internal/download"
	"github.com/ManuGH/mediamix/internal/ledger"
	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/pipeline"
	"github.com/ManuGH/mediamix/internal/testutil"
	"github.com/ManuGH/mediamix/internal/voiceover"
)

// flakySynth fails exactly its n-th call.
type flakySynth struct {
	n     int32
	calls atomic.Int32
}

func (s *flakySynth) Synthesize(_ context.Context, text, voice, dir string) (string, error) {
	if s.calls.Add(1) == s.n {
		return "", voiceover.ErrVoiceNotFound
	}
	p := filepath.Join(dir, voiceover.FileName(text, voice))
	return p, os.WriteFile(p, []byte(text), 0o600)
}

type fixture struct {
	engine   *Engine
	uploader *testutil.Uploader
	events   *xglog.MemoryEmitter
	ledger   *ledger.Ledger
	workRoot string
}

func newFixture(t *testing.T, fetcher pipeline.Fetcher, synth voiceover.Synthesizer) *fixture {
	t.Helper()
	f := &fixture{
		uploader: &testutil.Uploader{},
		events:   &xglog.MemoryEmitter{},
		ledger:   ledger.New(ledger.NewMemoryBackend(), time.Hour),
		workRoot: filepath.Join(t.TempDir(), "work"),
	}
	e, err := New(Config{
		MaxInFlight: 2,
		Pipeline:    pipeline.Config{WorkRoot: f.workRoot, RootFolderID: "root"},
	}, pipeline.Deps{
		Fetcher:     fetcher,
		Synthesizer: synth,
		Compositor:  &testutil.Compositor{},
		Uploader:    f.uploader,
		Emitter:     f.events,
	}, f.ledger, nil)
	require.NoError(t, err)
	f.engine = e
	return f
}

func (f *fixture) run(t *testing.T, req model.MediaRequest) (*Submission, model.RequestSummary) {
	t.Helper()
	sub, err := f.engine.Submit(context.Background(), req)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := sub.Wait(ctx)
	require.NoError(t, err)
	return sub, s
}

func TestSubmitRunsEveryCombination(t *testing.T) {
	f := newFixture(t, &testutil.Fetcher{}, &testutil.Synthesizer{})
	req := testutil.Request("spring", model.Blocks{
		{Name: "A", Locators: []string{"https://cdn.example.com/a1.mp4", "https://cdn.example.com/a2.mp4"}},
		{Name: "B", Locators: []string{"https://cdn.example.com/b1.mp4"}},
	})

	sub, s := f.run(t, req)
	assert.NotEmpty(t, sub.RequestID)
	assert.Equal(t, 2, sub.TotalVideos)
	assert.Equal(t, 2, s.SuccessCount)
	assert.Zero(t, s.FailedCount)
	assert.Equal(t, 1, f.uploader.Folders())

	names := []string{}
	for _, u := range f.uploader.Uploads() {
		names = append(names, u.RemoteName)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"output_1.mp4", "output_2.mp4"}, names)

	msgs := f.events.Messages()
	assert.Equal(t, xglog.MsgRequestStarted, msgs[0])
	assert.Equal(t, xglog.MsgRequestFinished, msgs[len(msgs)-1])
	assert.Equal(t, 2, f.events.Events()[0].Details["total_videos"])

	rec, err := f.ledger.Get(context.Background(), sub.RequestID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StateFinished, rec.State)
	assert.Len(t, rec.Outcomes, 2)

	entries, err := os.ReadDir(f.workRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "work areas must be released")
}

func TestSynthesisFailureIsIsolated(t *testing.T) {
	f := newFixture(t, &testutil.Fetcher{}, &flakySynth{n: 2})
	req := testutil.Request("spring", model.Blocks{
		{Name: "A", Locators: []string{
			"https://cdn.example.com/a1.mp4",
			"https://cdn.example.com/a2.mp4",
			"https://cdn.example.com/a3.mp4",
		}},
	})

	sub, s := f.run(t, req)
	assert.Equal(t, 2, s.SuccessCount)
	assert.Equal(t, 1, s.FailedCount)
	assert.Len(t, f.uploader.Uploads(), 2)

	rec, err := f.ledger.Get(context.Background(), sub.RequestID)
	require.NoError(t, err)
	var failed []model.TaskOutcome
	for _, o := range rec.Outcomes {
		if o.Status == model.StatusFailed {
			failed = append(failed, o)
		}
	}
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "voice not found")
}

func TestTimedOutLocatorFailsOnlyItsUnit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.mp4" {
			<-r.Context().Done()
			return
		}
		_, _ = fmt.Fprint(w, "media")
	}))
	t.Cleanup(srv.Close)

	fetcher := download.New(srv.Client(), download.Options{Timeout: 100 * time.Millisecond})
	f := newFixture(t, fetcher, &testutil.Synthesizer{})
	req := testutil.Request("spring", model.Blocks{
		{Name: "A", Locators: []string{srv.URL + "/a1.mp4", srv.URL + "/slow.mp4", srv.URL + "/a3.mp4"}},
	})
	req.AudioBlocks = model.Blocks{{Name: "bg", Locators: []string{srv.URL + "/bg.mp3"}}}

	sub, s := f.run(t, req)
	assert.Equal(t, 2, s.SuccessCount)
	assert.Equal(t, 1, s.FailedCount)

	rec, err := f.ledger.Get(context.Background(), sub.RequestID)
	require.NoError(t, err)
	for _, o := range rec.Outcomes {
		if o.Index == 2 {
			assert.Equal(t, model.StatusFailed, o.Status)
			assert.Contains(t, o.Error, "/slow.mp4")
			assert.Contains(t, o.Error, "timed out")
		} else {
			assert.Equal(t, model.StatusSuccess, o.Status, "unit %d", o.Index)
		}
	}
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t, &testutil.Fetcher{}, &testutil.Synthesizer{})
	_, err := f.engine.Submit(context.Background(), model.MediaRequest{TaskName: "x"})
	require.Error(t, err)
	var verr *model.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Empty(t, f.events.Events())

	f.engine.SetConfig(Config{
		Validate: model.ValidateOptions{MaxUnits: 1},
		Pipeline: pipeline.Config{WorkRoot: f.workRoot},
	})
	_, err = f.engine.Submit(context.Background(), testutil.Request("x", model.Blocks{
		{Name: "A", Locators: []string{"https://cdn.example.com/1.mp4", "https://cdn.example.com/2.mp4"}},
	}))
	require.Error(t, err)
}

func TestSubmitOutlivesCallerContext(t *testing.T) {
	f := newFixture(t, &testutil.Fetcher{}, &testutil.Synthesizer{})
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := f.engine.Submit(ctx, testutil.Request("x", model.Blocks{
		{Name: "A", Locators: []string{"https://cdn.example.com/1.mp4"}},
	}))
	require.NoError(t, err)
	cancel()

	wctx, wcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer wcancel()
	s, err := sub.Wait(wctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.SuccessCount)
}

func TestShutdown(t *testing.T) {
	fetcher := &testutil.Fetcher{Hang: map[string]bool{"https://cdn.example.com/hang.mp4": true}}
	f := newFixture(t, fetcher, &testutil.Synthesizer{})
	sub, err := f.engine.Submit(context.Background(), testutil.Request("x", model.Blocks{
		{Name: "A", Locators: []string{"https://cdn.example.com/hang.mp4"}},
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.engine.Shutdown(ctx), context.DeadlineExceeded)

	s, err := sub.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.FailedCount)

	_, err = f.engine.Submit(context.Background(), testutil.Request("x", model.Blocks{
		{Name: "A", Locators: []string{"https://cdn.example.com/1.mp4"}},
	}))
	assert.ErrorIs(t, err, ErrShuttingDown)
}

// gatedLedger blocks Begin until release is closed.
type gatedLedger struct {
	*ledger.Ledger
	entered chan struct{}
	release chan struct{}
}

func (g *gatedLedger) Begin(ctx context.Context, requestID, taskName string, totalUnits int, startedAt time.Time) error {
	close(g.entered)
	<-g.release
	return g.Ledger.Begin(ctx, requestID, taskName, totalUnits, startedAt)
}

func TestShutdownWaitsForSubmissionInProgress(t *testing.T) {
	gl := &gatedLedger{
		Ledger:  ledger.New(ledger.NewMemoryBackend(), time.Hour),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	e, err := New(Config{
		MaxInFlight: 1,
		Pipeline:    pipeline.Config{WorkRoot: filepath.Join(t.TempDir(), "work"), RootFolderID: "root"},
	}, pipeline.Deps{
		Fetcher:     &testutil.Fetcher{},
		Synthesizer: &testutil.Synthesizer{},
		Compositor:  &testutil.Compositor{},
		Uploader:    &testutil.Uploader{},
	}, gl, nil)
	require.NoError(t, err)

	type result struct {
		sub *Submission
		err error
	}
	submitted := make(chan result, 1)
	go func() {
		sub, err := e.Submit(context.Background(), testutil.Request("x", model.Blocks{
			{Name: "A", Locators: []string{"https://cdn.example.com/1.mp4"}},
		}))
		submitted <- result{sub, err}
	}()
	<-gl.entered

	shutdown := make(chan error, 1)
	go func() { shutdown <- e.Shutdown(context.Background()) }()

	select {
	case err := <-shutdown:
		t.Fatalf("Shutdown returned %v while a submission was being admitted", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gl.release)
	res := <-submitted
	require.NoError(t, res.err)
	require.NoError(t, <-shutdown)

	s, err := res.sub.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.SuccessCount)
	assert.Equal(t, 0, s.FailedCount)

	rec, err := gl.Get(context.Background(), res.sub.RequestID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StateFinished, rec.State)
}

func TestRejectedSubmissionDoesNotBlockShutdown(t *testing.T) {
	f := newFixture(t, &testutil.Fetcher{}, &testutil.Synthesizer{})
	_, err := f.engine.Submit(context.Background(), model.MediaRequest{TaskName: "x"})
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, f.engine.Shutdown(ctx))
}
