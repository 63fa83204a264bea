// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the HTTP ingress: request submission, request lookup,
// probes, metrics and the OpenAPI contract.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/mediamix/internal/api/middleware"
	"github.com/ManuGH/mediamix/internal/engine"
	"github.com/ManuGH/mediamix/internal/health"
	"github.com/ManuGH/mediamix/internal/ledger"
	"github.com/ManuGH/mediamix/internal/model"
)

// DefaultMaxBodyBytes caps the submission body when Options leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// Submitter accepts media requests.
type Submitter interface {
	Submit(ctx context.Context, req model.MediaRequest) (*engine.Submission, error)
}

// RecordReader looks up request records.
type RecordReader interface {
	Get(ctx context.Context, requestID string) (ledger.Record, error)
}

// Options configures the server.
type Options struct {
	MaxBodyBytes int64
	Stack        middleware.StackConfig
}

// Server is the HTTP ingress.
type Server struct {
	submitter Submitter
	records   RecordReader
	health    *health.Manager
	opts      Options
}

// NewServer wires the handlers. records and health may be nil.
func NewServer(submitter Submitter, records RecordReader, hm *health.Manager, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if hm == nil {
		hm = health.NewManager("")
	}
	return &Server{submitter: submitter, records: records, health: hm, opts: opts}
}

// Routes returns the router with the middleware stack applied.
func (s *Server) Routes() http.Handler {
	r := middleware.NewRouter(s.opts.Stack)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", serveOpenAPI)

	r.Post("/process_media", s.handleProcessMedia)
	r.Post("/process_media/", s.handleProcessMedia)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/requests/{id}", s.handleGetRequest)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed here")
	})
	return r
}
