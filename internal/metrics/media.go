// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for media assembly runs.
// No request_id or task_name labels: label values are bounded enums only.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Requests

	requestsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediamix_requests_accepted_total",
		Help: "Total number of accepted media requests",
	})

	requestsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_requests_rejected_total",
		Help: "Total number of rejected media requests by reason",
	}, []string{"reason"}) // reason=validation|shutdown|internal

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediamix_requests_in_flight",
		Help: "Media requests dispatched but not yet summarized",
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mediamix_request_duration_seconds",
		Help:    "Wall time from acceptance to summary",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	// Units

	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_units_total",
		Help: "Terminal work units by status",
	}, []string{"status"}) // status=success|failed

	unitsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mediamix_units_in_flight",
		Help: "Work units currently executing a pipeline",
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mediamix_stage_duration_seconds",
		Help:    "Duration of pipeline stages by outcome",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 16),
	}, []string{"stage", "outcome"}) // outcome=ok|error

	unitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_unit_failures_total",
		Help: "Failed work units by stage and error kind",
	}, []string{"stage", "kind"})

	// Stage internals

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_downloads_total",
		Help: "Source downloads by outcome",
	}, []string{"outcome"}) // outcome=success|error|timeout

	downloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediamix_download_bytes_total",
		Help: "Bytes committed by the downloader",
	})

	synthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_synthesis_requests_total",
		Help: "Text-to-speech calls by outcome",
	}, []string{"outcome"}) // outcome=success|error|voice_not_found

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_uploads_total",
		Help: "Uploads by backend and outcome",
	}, []string{"backend", "outcome"})

	foldersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_folders_created_total",
		Help: "Remote folders created by backend",
	}, []string{"backend"})

	ffmpegRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_ffmpeg_runs_total",
		Help: "ffmpeg and ffprobe invocations by tool and outcome",
	}, []string{"tool", "outcome"})

	procSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_proc_signals_total",
		Help: "Signals sent to external tool process groups",
	}, []string{"signal", "result"})

	ledgerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_ledger_errors_total",
		Help: "Ledger write failures by backend and operation",
	}, []string{"backend", "op"})

	configReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_config_reloads_total",
		Help: "Configuration reload attempts by outcome",
	}, []string{"outcome"})
)

// RecordRequestAccepted counts an accepted request and marks it in flight.
func RecordRequestAccepted() {
	requestsAccepted.Inc()
	requestsInFlight.Inc()
}

// RecordRequestRejected counts a rejected request.
func RecordRequestRejected(reason string) {
	requestsRejected.WithLabelValues(reason).Inc()
}

// RecordRequestFinished observes the total duration of a summarized request.
func RecordRequestFinished(d time.Duration) {
	requestsInFlight.Dec()
	requestDuration.Observe(d.Seconds())
}

// UnitStarted marks a unit in flight.
func UnitStarted() { unitsInFlight.Inc() }

// UnitFinished records a unit's terminal status.
func UnitFinished(status string) {
	unitsInFlight.Dec()
	unitsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func ObserveStage(stage string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// RecordUnitFailure counts a failed unit by the stage it failed in.
func RecordUnitFailure(stage, kind string) {
	unitFailures.WithLabelValues(stage, kind).Inc()
}

// RecordDownload records one transfer.
func RecordDownload(outcome string, bytes int64) {
	downloadsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		downloadBytes.Add(float64(bytes))
	}
}

// RecordSynthesis records one text-to-speech call.
func RecordSynthesis(outcome string) {
	synthesisTotal.WithLabelValues(outcome).Inc()
}

// RecordUpload records one upload.
func RecordUpload(backend, outcome string) {
	uploadsTotal.WithLabelValues(backend, outcome).Inc()
}

// RecordFolderCreated counts a remote folder creation.
func RecordFolderCreated(backend string) {
	foldersCreated.WithLabelValues(backend).Inc()
}

// RecordFFmpegRun records one ffmpeg or ffprobe process.
func RecordFFmpegRun(tool string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ffmpegRuns.WithLabelValues(tool, outcome).Inc()
}

// RecordProcSignal counts a signal sent to a process group.
func RecordProcSignal(signal, result string) {
	procSignals.WithLabelValues(signal, result).Inc()
}

// RecordLedgerError counts a failed ledger write.
func RecordLedgerError(backend, op string) {
	ledgerErrors.WithLabelValues(backend, op).Inc()
}

// RecordConfigReload counts a reload attempt.
func RecordConfigReload(success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	configReloads.WithLabelValues(outcome).Inc()
}

var (
	circuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mediamix_circuit_breaker_state",
		Help: "Circuit breaker state (1 for the current state)",
	}, []string{"breaker", "state"})

	circuitTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediamix_circuit_breaker_trips_total",
		Help: "Circuit breaker openings by reason",
	}, []string{"breaker", "reason"})
)

var breakerStates = []string{"closed", "open", "half-open"}

// SetCircuitBreakerState marks state as the current state of breaker.
func SetCircuitBreakerState(breaker, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		circuitState.WithLabelValues(breaker, s).Set(v)
	}
}

// RecordCircuitBreakerTrip counts an opening of breaker.
func RecordCircuitBreakerTrip(breaker, reason string) {
	circuitTrips.WithLabelValues(breaker, reason).Inc()
}
