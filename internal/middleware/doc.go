// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package middleware provides chi-compatible HTTP middleware for the REST API.

Components:

  - RequestID: X-Request-ID propagation into the logging context
  - AccessLog: one structured log line per request
  - PrometheusMetrics: request count and latency keyed by route pattern
  - Compression: gzip for clients that accept it

The router applies them outermost first:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Compression)
*/
package middleware
