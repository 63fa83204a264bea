// SPDX-License-Identifier: MIT

// Package daemon wires mediamix from its configuration and runs it.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/mediamix/internal/api"
	"github.com/ManuGH/mediamix/internal/api/middleware"
	"github.com/ManuGH/mediamix/internal/cache"
	"github.com/ManuGH/mediamix/internal/compose"
	"github.com/ManuGH/mediamix/internal/config"
	"github.com/ManuGH/mediamix/internal/download"
	"github.com/ManuGH/mediamix/internal/engine"
	"github.com/ManuGH/mediamix/internal/health"
	"github.com/ManuGH/mediamix/internal/ledger"
	"github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/pipeline"
	"github.com/ManuGH/mediamix/internal/storage"
	"github.com/ManuGH/mediamix/internal/telemetry"
	"github.com/ManuGH/mediamix/internal/voiceover"
)

// ServiceName identifies the process in logs and traces.
const ServiceName = "mediamix"

// Overrides replaces collaborators that would otherwise be built from the
// configuration. Zero fields use the configured implementation.
type Overrides struct {
	Fetcher        pipeline.Fetcher
	Synthesizer    voiceover.Synthesizer
	Compositor     compose.Compositor
	StorageBackend storage.Backend
	HTTPClient     *http.Client
	Emitter        log.Emitter
}

// Components is everything wired from one AppConfig.
type Components struct {
	Config  config.AppConfig
	Engine  *engine.Engine
	Ledger  *ledger.Ledger
	Store   *storage.Store
	Health  *health.Manager
	Handler http.Handler

	redis      redis.UniversalClient
	voiceCache *cache.MemoryCache
	telemetry  *telemetry.Provider
}

// EngineConfig maps the per-request settings of cfg. It is applied again on
// every reload.
func EngineConfig(cfg config.AppConfig) engine.Config {
	return engine.Config{
		Validate: model.ValidateOptions{
			AllowedHosts: cfg.Ingress.AllowedHosts,
			MaxUnits:     cfg.Ingress.MaxUnits,
		},
		MaxInFlight: cfg.Processing.MaxInFlight,
		Pipeline: pipeline.Config{
			WorkRoot:         cfg.WorkDir,
			RootFolderID:     cfg.Storage.RootFolderID(),
			BackgroundVolume: cfg.Processing.BackgroundVolume,
			VideoCodec:       cfg.Processing.VideoCodec,
			AudioCodec:       cfg.Processing.AudioCodec,
		},
	}
}

// Build constructs the components for cfg. On error everything opened so far
// is closed again.
func Build(ctx context.Context, cfg config.AppConfig, ov Overrides) (_ *Components, err error) {
	c := &Components{Config: cfg}
	defer func() {
		if err != nil {
			_ = c.Close(context.WithoutCancel(ctx))
		}
	}()

	c.telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if cfg.UsesRedis() {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	c.Ledger, err = ledger.Open(ctx, ledger.Config{
		Backend:   cfg.Ledger.Backend,
		Path:      cfg.Ledger.Path,
		Retention: cfg.Ledger.Retention,
		Redis:     c.redis,
	})
	if err != nil {
		return nil, err
	}

	client := ov.HTTPClient
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	backend := ov.StorageBackend
	if backend == nil {
		if backend, err = buildStorageBackend(ctx, cfg.Storage, client); err != nil {
			return nil, err
		}
	}
	var locker storage.Locker = storage.NewLocalLocker()
	if cfg.Storage.FolderLock == "redis" {
		locker = storage.NewRedisLocker(c.redis, storage.RedisLockerConfig{})
	}
	c.Store = storage.NewStore(backend, storage.Options{
		UploadTimeout: cfg.Storage.UploadTimeout,
		FolderTimeout: cfg.Storage.FolderTimeout,
		Locker:        locker,
	})

	deps := pipeline.Deps{
		Fetcher:     ov.Fetcher,
		Synthesizer: ov.Synthesizer,
		Compositor:  ov.Compositor,
		Uploader:    c.Store,
		Emitter:     ov.Emitter,
	}
	if deps.Fetcher == nil {
		deps.Fetcher = download.New(client, download.Options{
			Workers:  cfg.Download.Workers,
			Timeout:  cfg.Download.Timeout,
			MaxBytes: cfg.Download.MaxBytes,
			Retries:  cfg.Download.Retries,
		})
	}
	if deps.Synthesizer == nil {
		var vc cache.Cache
		switch cfg.Voiceover.VoiceCache {
		case "redis":
			vc = cache.NewRedisCache(c.redis, "mediamix:voice:")
		case "memory":
			c.voiceCache = cache.NewMemoryCache(10 * time.Minute)
			vc = c.voiceCache
		}
		deps.Synthesizer = voiceover.NewElevenLabs(voiceover.ElevenLabsConfig{
			BaseURL:       cfg.Voiceover.BaseURL,
			APIKey:        cfg.Voiceover.APIKey,
			ModelID:       cfg.Voiceover.ModelID,
			Timeout:       cfg.Voiceover.Timeout,
			RatePerSecond: cfg.Voiceover.RatePerSecond,
			Burst:         cfg.Voiceover.Burst,
			VoiceCache:    vc,
			VoiceCacheTTL: cfg.Voiceover.VoiceCacheTTL,
		}, client)
		if th := cfg.Voiceover.BreakerThreshold; th > 0 {
			breaker := voiceover.NewBreaker("elevenlabs", th, cfg.Voiceover.BreakerReset)
			deps.Synthesizer = voiceover.WithBreaker(deps.Synthesizer, breaker)
		}
	}
	if deps.Compositor == nil {
		deps.Compositor = compose.NewFFmpeg(compose.FFmpegConfig{
			FFmpegPath:  cfg.Compose.FFmpegPath,
			FFprobePath: cfg.Compose.FFprobePath,
			Timeout:     cfg.Compose.Timeout,
			KillGrace:   cfg.Compose.KillGrace,
			Preset:      cfg.Compose.Preset,
			Threads:     cfg.Compose.Threads,
		}, nil)
	}
	if deps.Emitter == nil {
		deps.Emitter = log.NewZerologEmitter(log.WithComponent("events"))
	}

	c.Engine, err = engine.New(EngineConfig(cfg), deps, c.Ledger, nil)
	if err != nil {
		return nil, err
	}

	c.Health = health.NewManager(cfg.Version)
	c.Health.RegisterChecker(health.NewFuncChecker("ledger", c.Ledger.Ping))
	c.Health.RegisterChecker(health.NewDirChecker("work_dir", cfg.WorkDir))
	if c.redis != nil {
		rc := c.redis
		c.Health.RegisterChecker(health.NewFuncChecker("redis", func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}))
	}
	if checker, ok := deps.Compositor.(interface{ Check(context.Context) error }); ok {
		c.Health.RegisterChecker(health.NewFuncChecker("ffmpeg", checker.Check))
	}

	stack := middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
		RatePerMinute:         cfg.Ingress.RatePerMinute,
		RequestTimeout:        cfg.Ingress.RequestTimeout,
	}
	if cfg.Telemetry.Enabled {
		stack.TracingService = ServiceName
	}
	c.Handler = api.NewServer(c.Engine, c.Ledger, c.Health, api.Options{
		MaxBodyBytes: cfg.Ingress.MaxBodyBytes,
		Stack:        stack,
	}).Routes()
	return c, nil
}

func buildStorageBackend(ctx context.Context, cfg config.StorageConfig, client *http.Client) (storage.Backend, error) {
	switch cfg.Backend {
	case "drive":
		return storage.NewDriveBackend(ctx, []byte(cfg.Drive.CredentialsJSON))
	case "s3":
		return storage.NewS3Backend(storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			HTTPClient:      client,
		})
	case "local":
		return storage.NewLocalBackend(cfg.Local.Dir)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// RegisterShutdownHooks hands the components to m. Hooks run in reverse, so
// in-flight requests drain before the ledger and Redis close.
func (c *Components) RegisterShutdownHooks(m Manager) {
	m.RegisterShutdownHook("close", c.Close)
	m.RegisterShutdownHook("engine", c.Engine.Shutdown)
}

// Close releases the ledger, Redis, the voice cache and the tracer provider. It does not drain
// the engine.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	if c.voiceCache != nil {
		c.voiceCache.Stop()
	}
	if c.Ledger != nil {
		if err := c.Ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ledger: %w", err))
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.telemetry != nil {
		if err := c.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
