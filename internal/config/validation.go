// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediamix/internal/model"
	"github.com/ManuGH/mediamix/internal/validate"
)

// Validate rejects configurations the daemon cannot run with. All problems are
// reported at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		v.AddError("listen", "must be host:port: "+err.Error(), cfg.Listen)
	}
	v.PositiveDuration("shutdown_grace", cfg.ShutdownGrace)
	if cfg.TLS.Enabled {
		v.NotEmpty("tls.cert_file", cfg.TLS.CertFile)
		v.NotEmpty("tls.key_file", cfg.TLS.KeyFile)
	}
	v.NotEmpty("work_dir", cfg.WorkDir)
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
		v.AddError("log.level", err.Error(), cfg.Log.Level)
	}

	if cfg.Ingress.MaxBodyBytes <= 0 {
		v.AddError("ingress.max_body_bytes", "must be positive", cfg.Ingress.MaxBodyBytes)
	}
	v.Range("ingress.max_units", cfg.Ingress.MaxUnits, 1, model.MaxUnitsCeiling)
	if cfg.Ingress.RatePerMinute < 0 {
		v.AddError("ingress.rate_per_minute", "must not be negative", cfg.Ingress.RatePerMinute)
	}
	for i, h := range cfg.Ingress.AllowedHosts {
		if _, err := validate.NormalizeHost(h); err != nil {
			v.AddError("ingress.allowed_hosts", err.Error(), i)
		}
	}
	v.PositiveDuration("ingress.request_timeout", cfg.Ingress.RequestTimeout)

	v.Range("processing.max_in_flight", cfg.Processing.MaxInFlight, 1, 256)
	v.Fraction("processing.background_volume", cfg.Processing.BackgroundVolume)
	v.NotEmpty("processing.video_codec", cfg.Processing.VideoCodec)
	v.NotEmpty("processing.audio_codec", cfg.Processing.AudioCodec)

	v.Range("download.workers", cfg.Download.Workers, 1, 64)
	v.PositiveDuration("download.timeout", cfg.Download.Timeout)
	v.Range("download.retries", cfg.Download.Retries, 0, 10)

	v.URL("voiceover.base_url", cfg.Voiceover.BaseURL, []string{"http", "https"})
	v.PositiveDuration("voiceover.timeout", cfg.Voiceover.Timeout)
	if cfg.Voiceover.RatePerSecond < 0 {
		v.AddError("voiceover.rate_per_second", "must not be negative", cfg.Voiceover.RatePerSecond)
	}
	if cfg.Voiceover.BreakerThreshold > 0 {
		v.PositiveDuration("voiceover.breaker_reset", cfg.Voiceover.BreakerReset)
	}
	v.OneOf("voiceover.voice_cache", cfg.Voiceover.VoiceCache, []string{"memory", "redis", "off"})
	if cfg.Voiceover.VoiceCache != "off" {
		v.PositiveDuration("voiceover.voice_cache_ttl", cfg.Voiceover.VoiceCacheTTL)
	}

	v.NotEmpty("compose.ffmpeg_path", cfg.Compose.FFmpegPath)
	v.NotEmpty("compose.ffprobe_path", cfg.Compose.FFprobePath)
	v.PositiveDuration("compose.timeout", cfg.Compose.Timeout)

	s := cfg.Storage
	v.OneOf("storage.backend", s.Backend, []string{"drive", "s3", "local"})
	v.OneOf("storage.folder_lock", s.FolderLock, []string{"local", "redis"})
	v.PositiveDuration("storage.upload_timeout", s.UploadTimeout)
	v.PositiveDuration("storage.folder_timeout", s.FolderTimeout)
	switch s.Backend {
	case "drive":
		v.NotEmpty("storage.drive.root_folder_id", s.Drive.RootFolderID)
	case "s3":
		v.NotEmpty("storage.s3.bucket", s.S3.Bucket)
		v.NotEmpty("storage.s3.region", s.S3.Region)
	case "local":
		v.NotEmpty("storage.local.dir", s.Local.Dir)
	}

	v.OneOf("ledger.backend", cfg.Ledger.Backend, []string{"memory", "sqlite", "badger", "redis"})
	if cfg.Ledger.Backend == "sqlite" || cfg.Ledger.Backend == "badger" {
		v.NotEmpty("ledger.path", cfg.Ledger.Path)
	}
	v.PositiveDuration("ledger.retention", cfg.Ledger.Retention)
	if cfg.UsesRedis() {
		v.NotEmpty("redis.addr", cfg.Redis.Addr)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.Fraction("telemetry.sampling_rate", cfg.Telemetry.SamplingRate)
	}

	return v.Err()
}
