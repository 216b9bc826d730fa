// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package metrics provides Prometheus metrics for the CMCD analytics service.

Every collector is registered with the default registry through promauto and
exported at /metrics by the HTTP server.

# Available Metrics

Fetch:
  - cmcd_fetch_duration_seconds{backend,op}: store round-trip time (histogram)
  - cmcd_fetch_errors_total{backend,op,error_type}: failed fetches
  - cmcd_fetch_samples_total{backend}: samples returned

Analysis:
  - cmcd_analysis_operations_total{operation,status}: status is ok, no_data,
    validation, unavailable or internal
  - cmcd_detected_events_total{kind}: low_buffer, sudden_drop and the four
    playback error types

Circuit breakers:
  - cmcd_circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - cmcd_circuit_breaker_requests_total{name,result}
  - cmcd_circuit_breaker_state_transitions_total{name,from_state,to_state}

Ingest:
  - cmcd_ingest_lines_total{result}
  - cmcd_ingest_published_total{result}
  - cmcd_ingest_flush_duration_seconds{sink}, cmcd_ingest_flush_samples_total{sink}

API:
  - cmcd_api_requests_total{method,endpoint,status_code}
  - cmcd_api_request_duration_seconds{method,endpoint}
  - cmcd_api_active_requests

# Usage

	start := time.Now()
	samples, err := fetcher.Fetch(ctx, req)
	metrics.RecordFetch("influxdb", "fetch", time.Since(start), len(samples), err)

Label values are bounded: endpoints use chi route patterns, never raw paths.
*/
package metrics
