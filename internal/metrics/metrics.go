// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shamikatamazon/cmcd/internal/fetch"
)

var (
	// Fetch Metrics
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cmcd_fetch_duration_seconds",
			Help:    "Duration of sample store fetches in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend", "op"},
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_fetch_errors_total",
			Help: "Total number of failed sample store fetches",
		},
		[]string{"backend", "op", "error_type"}, // validation, upstream, other
	)

	FetchSamples = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_fetch_samples_total",
			Help: "Total number of samples returned by fetches",
		},
		[]string{"backend"},
	)

	// Analysis Metrics
	AnalysisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_analysis_operations_total",
			Help: "Total number of analysis operations by outcome",
		},
		[]string{"operation", "status"}, // ok, no_data, validation, unavailable, internal
	)

	DetectedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_detected_events_total",
			Help: "Total number of buffer events and playback errors detected",
		},
		[]string{"kind"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cmcd_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cmcd_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cmcd_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cmcd_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Ingest Metrics
	IngestLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_ingest_lines_total",
			Help: "Total number of CloudFront log lines by result",
		},
		[]string{"result"}, // accepted, rejected, no_session, duplicate
	)

	IngestPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_ingest_published_total",
			Help: "Total number of samples published to the broker",
		},
		[]string{"result"}, // success, failure
	)

	IngestFlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cmcd_ingest_flush_duration_seconds",
			Help:    "Duration of appender flushes to a sink",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"sink"},
	)

	IngestFlushSamples = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_ingest_flush_samples_total",
			Help: "Total number of samples flushed to a sink",
		},
		[]string{"sink"},
	)

	IngestFlushErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmcd_ingest_flush_errors_total",
			Help: "Total number of failed appender flushes",
		},
		[]string{"sink"},
	)

	IngestBufferedSamples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cmcd_ingest_buffered_samples",
			Help: "Samples waiting in the appender buffer",
		},
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cmcd_app_info",
			Help: "Application information (always 1)",
		},
		[]string{"version", "go_version", "backend"},
	)
)

// Operation outcome labels.
const (
	StatusOK          = "ok"
	StatusNoData      = "no_data"
	StatusValidation  = "validation"
	StatusUnavailable = "unavailable"
	StatusInternal    = "internal"
)

// ErrorStatus maps an operation error to its outcome label.
func ErrorStatus(err error) string {
	var ve *fetch.ValidationError
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &ve):
		return StatusValidation
	case fetch.IsUpstreamUnavailable(err):
		return StatusUnavailable
	default:
		return StatusInternal
	}
}

// RecordFetch records one store fetch.
func RecordFetch(backend, op string, duration time.Duration, samples int, err error) {
	FetchDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
	if err != nil {
		errorType := "other"
		switch ErrorStatus(err) {
		case StatusValidation:
			errorType = "validation"
		case StatusUnavailable:
			errorType = "upstream"
		}
		FetchErrors.WithLabelValues(backend, op, errorType).Inc()
		return
	}
	FetchSamples.WithLabelValues(backend).Add(float64(samples))
}

// RecordOperation records the outcome of an analysis operation.
func RecordOperation(operation string, noData bool, err error) {
	status := ErrorStatus(err)
	if err == nil && noData {
		status = StatusNoData
	}
	AnalysisOperations.WithLabelValues(operation, status).Inc()
}

// RecordDetected adds n events of kind.
func RecordDetected(kind string, n int) {
	if n > 0 {
		DetectedEvents.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordIngestLines records parsed line outcomes for one request.
func RecordIngestLines(accepted, rejected, noSession, duplicates int) {
	IngestLines.WithLabelValues("accepted").Add(float64(accepted))
	IngestLines.WithLabelValues("rejected").Add(float64(rejected))
	IngestLines.WithLabelValues("no_session").Add(float64(noSession))
	IngestLines.WithLabelValues("duplicate").Add(float64(duplicates))
}

// RecordIngestPublish records one broker publish.
func RecordIngestPublish(err error) {
	if err != nil {
		IngestPublished.WithLabelValues("failure").Inc()
		return
	}
	IngestPublished.WithLabelValues("success").Inc()
}

// RecordIngestFlush records one appender flush to sink.
func RecordIngestFlush(sink string, duration time.Duration, samples int, err error) {
	IngestFlushDuration.WithLabelValues(sink).Observe(duration.Seconds())
	if err != nil {
		IngestFlushErrors.WithLabelValues(sink).Inc()
		return
	}
	IngestFlushSamples.WithLabelValues(sink).Add(float64(samples))
}

// SetAppInfo publishes the build information gauge.
func SetAppInfo(version, goVersion, backend string) {
	AppInfo.WithLabelValues(version, goVersion, backend).Set(1)
}
