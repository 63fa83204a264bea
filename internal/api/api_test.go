// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediamix/internal/engine"
	"github.com/ManuGH/mediamix/internal/ledger"
	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/pipeline"
	"github.com/ManuGH/mediamix/internal/testutil"
)

const validBody = `{
  "task_name": "spring",
  "video_blocks": {"intro": ["https://cdn.example.com/v/a.mp4", "https://cdn.example.com/v/b.mp4"], "outro": ["https://cdn.example.com/v/c.mp4"]},
  "audio_blocks": {"music": ["https://cdn.example.com/a/bg.mp3"]},
  "text_to_speech": [{"text": "Hello", "voice": "Rachel"}]
}`

type testEnv struct {
	engine   *engine.Engine
	ledger   *ledger.Ledger
	uploader *testutil.Uploader
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ledger:   ledger.New(ledger.NewMemoryBackend(), time.Hour),
		uploader: &testutil.Uploader{},
	}
	e, err := engine.New(engine.Config{
		MaxInFlight: 2,
		Pipeline:    pipeline.Config{WorkRoot: filepath.Join(t.TempDir(), "work"), RootFolderID: "root"},
	}, pipeline.Deps{
		Fetcher:     &testutil.Fetcher{},
		Synthesizer: &testutil.Synthesizer{},
		Compositor:  &testutil.Compositor{},
		Uploader:    env.uploader,
	}, env.ledger, nil)
	require.NoError(t, err)
	env.engine = e
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	env.handler = NewServer(e, env.ledger, nil, Options{MaxBodyBytes: 4096}).Routes()
	return env
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p), rr.Body.String())
	return p
}

func TestProcessMedia_AcceptsAndRecords(t *testing.T) {
	env := newTestEnv(t)

	rr := do(t, env.handler, http.MethodPost, "/process_media", validBody)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var sub engine.Submission
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sub))
	assert.Equal(t, "spring", sub.TaskName)
	assert.Equal(t, 2, sub.TotalVideos)
	require.NotEmpty(t, sub.RequestID)
	assert.Equal(t, "/api/v1/requests/"+sub.RequestID, rr.Header().Get("Location"))

	require.Eventually(t, func() bool {
		rec, err := env.ledger.Get(context.Background(), sub.RequestID)
		return err == nil && rec.State == ledger.StateFinished
	}, 5*time.Second, 10*time.Millisecond)

	rr = do(t, env.handler, http.MethodGet, "/api/v1/requests/"+sub.RequestID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var rec ledger.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	require.NotNil(t, rec.Summary)
	assert.Equal(t, 2, rec.Summary.SuccessCount)
	assert.Len(t, rec.Outcomes, 2)
	assert.Len(t, env.uploader.Uploads(), 2)
}

func TestProcessMedia_TrailingSlash(t *testing.T) {
	env := newTestEnv(t)
	rr := do(t, env.handler, http.MethodPost, "/process_media/", validBody)
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestProcessMedia_Rejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"task_name":`, http.StatusBadRequest, "malformed_request"},
		{"trailing content", validBody + `{}`, http.StatusBadRequest, "malformed_request"},
		{"too large", `{"task_name":"` + strings.Repeat("x", 5000) + `"}`, http.StatusRequestEntityTooLarge, "body_too_large"},
		{"invalid request", `{"task_name":"","video_blocks":{},"audio_blocks":{},"text_to_speech":[]}`, http.StatusUnprocessableEntity, "validation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, env.handler, http.MethodPost, "/process_media", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			p := decodeProblem(t, rr)
			assert.Equal(t, tt.code, p.Error)
			if tt.status == http.StatusUnprocessableEntity {
				assert.NotEmpty(t, p.Problems)
			}
		})
	}
	assert.Empty(t, env.uploader.Uploads())
}

func TestProcessMedia_ShuttingDown(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.engine.Shutdown(context.Background()))

	rr := do(t, env.handler, http.MethodPost, "/process_media", validBody)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))
	assert.Equal(t, "shutting_down", decodeProblem(t, rr).Error)
}

type failingSubmitter struct{ err error }

func (f failingSubmitter) Submit(context.Context, model.MediaRequest) (*engine.Submission, error) {
	return nil, f.err
}

func TestProcessMedia_InternalError(t *testing.T) {
	h := NewServer(failingSubmitter{err: errors.New("boom")}, nil, nil, Options{}).Routes()
	rr := do(t, h, http.MethodPost, "/process_media", validBody)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	p := decodeProblem(t, rr)
	assert.Equal(t, "internal_error", p.Error)
	assert.NotContains(t, p.Detail, "boom")
}

type brokenRecords struct{}

func (brokenRecords) Get(context.Context, string) (ledger.Record, error) {
	return ledger.Record{}, errors.New("connection refused")
}

func TestGetRequest(t *testing.T) {
	env := newTestEnv(t)

	rr := do(t, env.handler, http.MethodGet, "/api/v1/requests/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeProblem(t, rr).Error)

	noLedger := NewServer(env.engine, nil, nil, Options{}).Routes()
	rr = do(t, noLedger, http.MethodGet, "/api/v1/requests/x", "")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)

	broken := NewServer(env.engine, brokenRecords{}, nil, Options{}).Routes()
	rr = do(t, broken, http.MethodGet, "/api/v1/requests/x", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "ledger_unavailable", decodeProblem(t, rr).Error)
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/openapi.yaml"} {
		rr := do(t, env.handler, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	rr := do(t, env.handler, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	rr = do(t, env.handler, http.MethodGet, "/process_media", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
