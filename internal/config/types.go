// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the complete daemon configuration. The YAML keys are the file
// format; every field also has a MEDIAMIX_* environment override.
type AppConfig struct {
	Version string `yaml:"-"`

	Listen        string        `yaml:"listen"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
	WorkDir       string        `yaml:"work_dir"`

	TLS        TLSConfig        `yaml:"tls"`
	Log        LogConfig        `yaml:"log"`
	Ingress    IngressConfig    `yaml:"ingress"`
	Processing ProcessingConfig `yaml:"processing"`
	Download   DownloadConfig   `yaml:"download"`
	Voiceover  VoiceoverConfig  `yaml:"voiceover"`
	Compose    ComposeConfig    `yaml:"compose"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// TLSConfig enables HTTPS on the listener.
type TLSConfig struct {
	Enabled    bool     `yaml:"enabled"`
	CertFile   string   `yaml:"cert_file"`
	KeyFile    string   `yaml:"key_file"`
	SelfSigned bool     `yaml:"self_signed"`
	Hosts      []string `yaml:"hosts"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// IngressConfig bounds what the HTTP ingress accepts.
type IngressConfig struct {
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedHosts   []string      `yaml:"allowed_hosts"`
	MaxUnits       int           `yaml:"max_units"`
	RatePerMinute  int           `yaml:"rate_per_minute"` // 0 disables
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type ProcessingConfig struct {
	MaxInFlight      int     `yaml:"max_in_flight"`
	BackgroundVolume float64 `yaml:"background_volume"`
	VideoCodec       string  `yaml:"video_codec"`
	AudioCodec       string  `yaml:"audio_codec"`
}

type DownloadConfig struct {
	Workers  int           `yaml:"workers"`
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"max_bytes"`
	Retries  int           `yaml:"retries"`
}

type VoiceoverConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	ModelID       string        `yaml:"model_id"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	// BreakerThreshold consecutive service failures open the circuit; 0 disables it.
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
	// VoiceCache is memory, redis or off.
	VoiceCache    string        `yaml:"voice_cache"`
	VoiceCacheTTL time.Duration `yaml:"voice_cache_ttl"`
}

type ComposeConfig struct {
	FFmpegPath  string        `yaml:"ffmpeg_path"`
	FFprobePath string        `yaml:"ffprobe_path"`
	Timeout     time.Duration `yaml:"timeout"`
	KillGrace   time.Duration `yaml:"kill_grace"`
	Preset      string        `yaml:"preset"`
	Threads     int           `yaml:"threads"`
}

// StorageConfig selects the upload backend.
type StorageConfig struct {
	Backend       string        `yaml:"backend"` // drive, s3 or local
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	FolderTimeout time.Duration `yaml:"folder_timeout"`
	FolderLock    string        `yaml:"folder_lock"` // local or redis

	Drive DriveConfig `yaml:"drive"`
	S3    S3Config    `yaml:"s3"`
	Local LocalConfig `yaml:"local"`
}

type DriveConfig struct {
	CredentialsJSON string `yaml:"credentials_json"`
	CredentialsFile string `yaml:"credentials_file"`
	RootFolderID    string `yaml:"root_folder_id"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"` // root "folder" of the per-task folders
}

type LocalConfig struct {
	Dir string `yaml:"dir"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LedgerConfig struct {
	Backend   string        `yaml:"backend"` // memory, sqlite, badger or redis
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc or http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
}

// RootFolderID returns the remote parent of the per-task folders for the
// selected backend.
func (c StorageConfig) RootFolderID() string {
	switch c.Backend {
	case "drive":
		return c.Drive.RootFolderID
	case "s3":
		return c.S3.Prefix
	default:
		return ""
	}
}

// UsesRedis reports whether any component needs a Redis client.
func (c AppConfig) UsesRedis() bool {
	return c.Storage.FolderLock == "redis" || c.Ledger.Backend == "redis" ||
		c.Voiceover.VoiceCache == "redis"
}
