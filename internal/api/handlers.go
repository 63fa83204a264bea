// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/mediamix/internal/engine"
	"github.com/ManuGH/mediamix/internal/ledger"
	"github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/metrics"
	"github.com/ManuGH/mediamix/internal/model"
)

// handleProcessMedia accepts a media request and answers 202 as soon as its
// units are dispatched. Processing continues after the response.
func (s *Server) handleProcessMedia(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	dec := json.NewDecoder(body)

	var req model.MediaRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordRequestRejected("too_large")
			writeProblem(w, r, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		metrics.RecordRequestRejected("malformed")
		writeProblem(w, r, http.StatusBadRequest, "malformed_request", err.Error())
		return
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		metrics.RecordRequestRejected("malformed")
		writeProblem(w, r, http.StatusBadRequest, "malformed_request", "trailing content after request body")
		return
	}

	sub, err := s.submitter.Submit(r.Context(), req)
	if err != nil {
		var verr *model.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, r, http.StatusUnprocessableEntity, Problem{
				Error:     "validation_failed",
				Detail:    "the media request is invalid",
				Problems:  verr.Problems,
				RequestID: log.RequestIDFromContext(r.Context()),
			})
		case errors.Is(err, engine.ErrShuttingDown):
			w.Header().Set("Retry-After", "30")
			writeProblem(w, r, http.StatusServiceUnavailable, "shutting_down", "the service is shutting down")
		default:
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Error().Err(err).Str("event", "api.submit_failed").Msg("media request not accepted")
			writeProblem(w, r, http.StatusInternalServerError, "internal_error", "the request could not be started")
		}
		return
	}

	w.Header().Set("Location", "/api/v1/requests/"+sub.RequestID)
	writeJSON(w, r, http.StatusAccepted, sub)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeProblem(w, r, http.StatusNotImplemented, "ledger_disabled", "request records are not kept")
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := s.records.Get(r.Context(), id)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, "not_found", "unknown or expired request id")
	case err != nil:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str("event", "api.record_failed").Str("lookup_id", id).Msg("request record lookup failed")
		writeProblem(w, r, http.StatusServiceUnavailable, "ledger_unavailable", "request records are unavailable")
	default:
		writeJSON(w, r, http.StatusOK, rec)
	}
}
