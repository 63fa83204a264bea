// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringList(key, defaultVal)
}

// mergeEnv applies MEDIAMIX_* overrides on top of cfg.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.Listen = l.envString("MEDIAMIX_LISTEN", cfg.Listen)
	cfg.ShutdownGrace = l.envDuration("MEDIAMIX_SHUTDOWN_GRACE", cfg.ShutdownGrace)
	cfg.WorkDir = l.envString("MEDIAMIX_WORK_DIR", cfg.WorkDir)
	cfg.Log.Level = l.envString("MEDIAMIX_LOG_LEVEL", cfg.Log.Level)

	cfg.TLS.Enabled = l.envBool("MEDIAMIX_TLS_ENABLED", cfg.TLS.Enabled)
	cfg.TLS.CertFile = l.envString("MEDIAMIX_TLS_CERT_FILE", cfg.TLS.CertFile)
	cfg.TLS.KeyFile = l.envString("MEDIAMIX_TLS_KEY_FILE", cfg.TLS.KeyFile)
	cfg.TLS.SelfSigned = l.envBool("MEDIAMIX_TLS_SELF_SIGNED", cfg.TLS.SelfSigned)

	in := &cfg.Ingress
	in.MaxBodyBytes = l.envInt64("MEDIAMIX_MAX_BODY_BYTES", in.MaxBodyBytes)
	in.AllowedHosts = l.envList("MEDIAMIX_ALLOWED_HOSTS", in.AllowedHosts)
	in.MaxUnits = l.envInt("MEDIAMIX_MAX_UNITS", in.MaxUnits)
	in.RatePerMinute = l.envInt("MEDIAMIX_RATE_PER_MINUTE", in.RatePerMinute)
	in.RequestTimeout = l.envDuration("MEDIAMIX_REQUEST_TIMEOUT", in.RequestTimeout)

	p := &cfg.Processing
	p.MaxInFlight = l.envInt("MEDIAMIX_MAX_IN_FLIGHT", p.MaxInFlight)
	p.BackgroundVolume = l.envFloat("MEDIAMIX_BACKGROUND_VOLUME", p.BackgroundVolume)
	p.VideoCodec = l.envString("MEDIAMIX_VIDEO_CODEC", p.VideoCodec)
	p.AudioCodec = l.envString("MEDIAMIX_AUDIO_CODEC", p.AudioCodec)

	d := &cfg.Download
	d.Workers = l.envInt("MEDIAMIX_DOWNLOAD_WORKERS", d.Workers)
	d.Timeout = l.envDuration("MEDIAMIX_DOWNLOAD_TIMEOUT", d.Timeout)
	d.MaxBytes = l.envInt64("MEDIAMIX_DOWNLOAD_MAX_BYTES", d.MaxBytes)
	d.Retries = l.envInt("MEDIAMIX_DOWNLOAD_RETRIES", d.Retries)

	v := &cfg.Voiceover
	v.BaseURL = l.envString("MEDIAMIX_ELEVENLABS_URL", v.BaseURL)
	v.APIKey = l.envString("MEDIAMIX_ELEVENLABS_API_KEY", v.APIKey)
	v.ModelID = l.envString("MEDIAMIX_ELEVENLABS_MODEL", v.ModelID)
	v.Timeout = l.envDuration("MEDIAMIX_VOICEOVER_TIMEOUT", v.Timeout)
	v.RatePerSecond = l.envFloat("MEDIAMIX_VOICEOVER_RATE", v.RatePerSecond)
	v.BreakerThreshold = l.envInt("MEDIAMIX_VOICEOVER_BREAKER_THRESHOLD", v.BreakerThreshold)
	v.BreakerReset = l.envDuration("MEDIAMIX_VOICEOVER_BREAKER_RESET", v.BreakerReset)
	v.VoiceCache = l.envString("MEDIAMIX_VOICE_CACHE", v.VoiceCache)
	v.VoiceCacheTTL = l.envDuration("MEDIAMIX_VOICE_CACHE_TTL", v.VoiceCacheTTL)

	c := &cfg.Compose
	c.FFmpegPath = l.envString("MEDIAMIX_FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = l.envString("MEDIAMIX_FFPROBE_PATH", c.FFprobePath)
	c.Timeout = l.envDuration("MEDIAMIX_COMPOSE_TIMEOUT", c.Timeout)
	c.Preset = l.envString("MEDIAMIX_FFMPEG_PRESET", c.Preset)
	c.Threads = l.envInt("MEDIAMIX_FFMPEG_THREADS", c.Threads)

	s := &cfg.Storage
	s.Backend = l.envString("MEDIAMIX_STORAGE_BACKEND", s.Backend)
	s.UploadTimeout = l.envDuration("MEDIAMIX_UPLOAD_TIMEOUT", s.UploadTimeout)
	s.FolderLock = l.envString("MEDIAMIX_FOLDER_LOCK", s.FolderLock)
	s.Drive.CredentialsJSON = l.envString("MEDIAMIX_DRIVE_CREDENTIALS_JSON", s.Drive.CredentialsJSON)
	s.Drive.CredentialsFile = l.envString("MEDIAMIX_DRIVE_CREDENTIALS_FILE", s.Drive.CredentialsFile)
	s.Drive.RootFolderID = l.envString("MEDIAMIX_DRIVE_ROOT_FOLDER_ID", s.Drive.RootFolderID)
	s.S3.Bucket = l.envString("MEDIAMIX_S3_BUCKET", s.S3.Bucket)
	s.S3.Region = l.envString("MEDIAMIX_S3_REGION", s.S3.Region)
	s.S3.Endpoint = l.envString("MEDIAMIX_S3_ENDPOINT", s.S3.Endpoint)
	s.S3.ForcePathStyle = l.envBool("MEDIAMIX_S3_FORCE_PATH_STYLE", s.S3.ForcePathStyle)
	s.S3.AccessKeyID = l.envString("MEDIAMIX_S3_ACCESS_KEY_ID", s.S3.AccessKeyID)
	s.S3.SecretAccessKey = l.envString("MEDIAMIX_S3_SECRET_ACCESS_KEY", s.S3.SecretAccessKey)
	s.S3.Prefix = l.envString("MEDIAMIX_S3_PREFIX", s.S3.Prefix)
	s.Local.Dir = l.envString("MEDIAMIX_LOCAL_STORAGE_DIR", s.Local.Dir)

	cfg.Redis.Addr = l.envString("MEDIAMIX_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString("MEDIAMIX_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt("MEDIAMIX_REDIS_DB", cfg.Redis.DB)

	cfg.Ledger.Backend = l.envString("MEDIAMIX_LEDGER_BACKEND", cfg.Ledger.Backend)
	cfg.Ledger.Path = l.envString("MEDIAMIX_LEDGER_PATH", cfg.Ledger.Path)
	cfg.Ledger.Retention = l.envDuration("MEDIAMIX_LEDGER_RETENTION", cfg.Ledger.Retention)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("MEDIAMIX_TRACING_ENABLED", t.Enabled)
	t.Exporter = l.envString("MEDIAMIX_TRACING_EXPORTER", t.Exporter)
	t.Endpoint = l.envString("MEDIAMIX_TRACING_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat("MEDIAMIX_TRACING_SAMPLING_RATE", t.SamplingRate)
	t.Environment = l.envString("MEDIAMIX_ENVIRONMENT", t.Environment)
}
