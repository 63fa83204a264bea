// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() AppConfig {
	return AppConfig{
		Listen:        ":8080",
		ShutdownGrace: 30 * time.Second,
		WorkDir:       filepath.Join(os.TempDir(), "mediamix"),
		Log:           LogConfig{Level: "info"},
		Ingress: IngressConfig{
			MaxBodyBytes:   1 << 20,
			MaxUnits:       1000,
			RatePerMinute:  60,
			RequestTimeout: 30 * time.Second,
		},
		Processing: ProcessingConfig{
			MaxInFlight:      4,
			BackgroundVolume: 0.2,
			VideoCodec:       "libx264",
			AudioCodec:       "aac",
		},
		Download: DownloadConfig{
			Workers: 4,
			Timeout: 60 * time.Second,
		},
		Voiceover: VoiceoverConfig{
			BaseURL:       "https://api.elevenlabs.io",
			ModelID:       "eleven_multilingual_v2",
			Timeout:       120 * time.Second,
			RatePerSecond: 2,
			Burst:         2,

			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
			VoiceCache:       "memory",
			VoiceCacheTTL:    time.Hour,
		},
		Compose: ComposeConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			Timeout:     30 * time.Minute,
			KillGrace:   5 * time.Second,
			Preset:      "veryfast",
		},
		Storage: StorageConfig{
			Backend:       "drive",
			UploadTimeout: 10 * time.Minute,
			FolderTimeout: time.Minute,
			FolderLock:    "local",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Ledger: LedgerConfig{
			Backend:   "memory",
			Retention: time.Hour,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1,
			Environment:  "production",
		},
	}
}
