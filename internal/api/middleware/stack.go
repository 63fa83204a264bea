// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP middleware stack of the ingress server.
package middleware

import (
	"time"

	"github.com/go-chi/chi/v5"
)

// StackConfig configures the canonical HTTP ingress middleware stack.
type StackConfig struct {
	EnableSecurityHeaders bool

	// Observability
	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// RatePerMinute limits requests per client IP; 0 disables.
	RatePerMinute int
	// RequestTimeout bounds handler execution; 0 disables.
	RequestTimeout time.Duration
}

// NewRouter constructs a chi router with the canonical middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders)
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	// Logging wraps handlers, captures full latency
	if cfg.EnableLogging {
		r.Use(AccessLog)
	}
	if cfg.RatePerMinute > 0 {
		r.Use(RateLimit(RateLimitConfig{RequestLimit: cfg.RatePerMinute, WindowSize: time.Minute}))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(Timeout(cfg.RequestTimeout))
	}
}
