// SPDX-License-Identifier: MIT

package daemon

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediamix/internal/config"
	mmtls "github.com/ManuGH/mediamix/internal/tls"
)

// ServerConfig holds the HTTP server settings of the Manager.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
	// TLS serves HTTPS when set.
	TLS *tls.Config
}

// ServerConfigFrom derives server settings from the application config. The
// write timeout leaves room for the request timeout middleware to answer first.
func ServerConfigFrom(cfg config.AppConfig) ServerConfig {
	return ServerConfig{
		ListenAddr:      cfg.Listen,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    cfg.Ingress.RequestTimeout + 5*time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.ShutdownGrace,
	}
}

// ServerTLSFrom loads the listener certificate, or returns nil when TLS is
// disabled.
func ServerTLSFrom(cfg config.AppConfig, logger zerolog.Logger) (*tls.Config, error) {
	if !cfg.TLS.Enabled {
		return nil, nil
	}
	return mmtls.ServerConfig(mmtls.Config{
		CertPath:   cfg.TLS.CertFile,
		KeyPath:    cfg.TLS.KeyFile,
		SelfSigned: cfg.TLS.SelfSigned,
		Hosts:      cfg.TLS.Hosts,
		Logger:     logger,
	})
}

var (
	ErrMissingLogger     = errors.New("daemon: logger is required")
	ErrMissingAPIHandler = errors.New("daemon: API handler is required")
	ErrMissingManager    = errors.New("daemon: app has no manager")
	// ErrManagerNotStarted is returned by Shutdown before Start bound the listener.
	ErrManagerNotStarted = errors.New("daemon: manager not started")
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler is the HTTP handler for the API server
	APIHandler http.Handler
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
