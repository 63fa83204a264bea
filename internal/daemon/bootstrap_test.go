// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediamix/internal/config"
	"github.com/ManuGH/mediamix/internal/engine"
	"github.com/ManuGH/mediamix/internal/ledger"
	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/pipeline"
	"github.com/ManuGH/mediamix/internal/testutil"
)

const requestBody = `{
  "task_name": "launch",
  "video_blocks": {"a": ["https://cdn.example.com/1.mp4", "https://cdn.example.com/2.mp4"]},
  "audio_blocks": {"m": ["https://cdn.example.com/bg.mp3"]},
  "text_to_speech": [{"text": "Welcome", "voice": "Rachel"}]
}`

func localConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.WorkDir = filepath.Join(t.TempDir(), "work")
	require.NoError(t, os.MkdirAll(cfg.WorkDir, 0o750))
	cfg.Storage.Backend = "local"
	cfg.Storage.Local.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Ingress.RatePerMinute = 0
	return cfg
}

func fakes() Overrides {
	return Overrides{
		Fetcher:     &testutil.Fetcher{},
		Synthesizer: &testutil.Synthesizer{},
		Compositor:  &testutil.Compositor{},
	}
}

func buildForTest(t *testing.T, cfg config.AppConfig) *Components {
	t.Helper()
	c, err := Build(context.Background(), cfg, fakes())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Engine.Shutdown(ctx)
		_ = c.Close(ctx)
	})
	return c
}

func submit(t *testing.T, h http.Handler) engine.Submission {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/process_media", strings.NewReader(requestBody))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var sub engine.Submission
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sub))
	return sub
}

func waitFinished(t *testing.T, l *ledger.Ledger, id string) ledger.Record {
	t.Helper()
	var rec ledger.Record
	require.Eventually(t, func() bool {
		var err error
		rec, err = l.Get(context.Background(), id)
		return err == nil && rec.State == ledger.StateFinished
	}, 5*time.Second, 10*time.Millisecond)
	return rec
}

func TestEngineConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.WorkDir = "/var/lib/mediamix"
	cfg.Ingress.AllowedHosts = []string{"cdn.example.com"}
	cfg.Ingress.MaxUnits = 50
	cfg.Processing.MaxInFlight = 8
	cfg.Storage.Drive.RootFolderID = "drive-root"

	want := engine.Config{
		Validate:    model.ValidateOptions{AllowedHosts: []string{"cdn.example.com"}, MaxUnits: 50},
		MaxInFlight: 8,
		Pipeline: pipeline.Config{
			WorkRoot:         "/var/lib/mediamix",
			RootFolderID:     "drive-root",
			BackgroundVolume: cfg.Processing.BackgroundVolume,
			VideoCodec:       cfg.Processing.VideoCodec,
			AudioCodec:       cfg.Processing.AudioCodec,
		},
	}
	if diff := cmp.Diff(want, EngineConfig(cfg)); diff != "" {
		t.Errorf("EngineConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_LocalStorageEndToEnd(t *testing.T) {
	cfg := localConfig(t)
	c := buildForTest(t, cfg)

	sub := submit(t, c.Handler)
	assert.Equal(t, 2, sub.TotalVideos)

	rec := waitFinished(t, c.Ledger, sub.RequestID)
	require.NotNil(t, rec.Summary)
	assert.Equal(t, 2, rec.Summary.SuccessCount)

	for i := 1; i <= 2; i++ {
		_, err := os.Stat(filepath.Join(cfg.Storage.Local.Dir, "launch", pipeline.OutputName(i)))
		assert.NoError(t, err)
	}

	rr := httptest.NewRecorder()
	c.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestBuild_RedisLockAndLedger(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := localConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.Storage.FolderLock = "redis"
	cfg.Ledger.Backend = "redis"
	c := buildForTest(t, cfg)

	sub := submit(t, c.Handler)
	waitFinished(t, c.Ledger, sub.RequestID)

	keys := mr.Keys()
	assert.Contains(t, keys, "mediamix:ledger:"+sub.RequestID)
	assert.Greater(t, mr.TTL("mediamix:ledger:"+sub.RequestID), time.Duration(0))

	rr := httptest.NewRecorder()
	c.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	mr.Close()
	rr = httptest.NewRecorder()
	c.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestBuild_SQLiteLedger(t *testing.T) {
	cfg := localConfig(t)
	cfg.Ledger.Backend = "sqlite"
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "ledger.db")
	c := buildForTest(t, cfg)

	sub := submit(t, c.Handler)
	waitFinished(t, c.Ledger, sub.RequestID)
	assert.Equal(t, "sqlite", c.Ledger.Name())
}

func TestBuild_Errors(t *testing.T) {
	cfg := localConfig(t)
	cfg.Storage.Backend = "ftp"
	_, err := Build(context.Background(), cfg, fakes())
	require.ErrorContains(t, err, "unknown backend")

	cfg = localConfig(t)
	cfg.Ledger.Backend = "etcd"
	_, err = Build(context.Background(), cfg, fakes())
	require.ErrorContains(t, err, "unknown backend")
}

func TestBuild_VoiceCache(t *testing.T) {
	build := func(t *testing.T, cfg config.AppConfig) *Components {
		t.Helper()
		ov := fakes()
		ov.Synthesizer = nil
		c, err := Build(context.Background(), cfg, ov)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close(context.Background()) })
		return c
	}

	t.Run("memory", func(t *testing.T) {
		c := build(t, localConfig(t))
		assert.NotNil(t, c.voiceCache)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := localConfig(t)
		cfg.Redis.Addr = mr.Addr()
		cfg.Voiceover.VoiceCache = "redis"
		c := build(t, cfg)
		assert.Nil(t, c.voiceCache)
		assert.NotNil(t, c.redis)
	})

	t.Run("off", func(t *testing.T) {
		cfg := localConfig(t)
		cfg.Voiceover.VoiceCache = "off"
		c := build(t, cfg)
		assert.Nil(t, c.voiceCache)
	})
}
