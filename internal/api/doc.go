// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package api serves the CMCD analysis operations, CloudFront log ingest and
health probes over HTTP using the Chi router.

Routes:

	GET  /api/v1/cmcd/bitrate                  average_bitrate
	GET  /api/v1/cmcd/sessions/{sessionID}     session_details
	GET  /api/v1/cmcd/buffer-events            buffer_events
	GET  /api/v1/cmcd/playback-errors          playback_errors
	GET  /api/v1/cmcd/ids                      list_ids
	GET  /api/v1/cmcd/edges                    edge_stats
	POST /api/v1/cmcd/query                    cmcd_query (InfluxDB only)
	POST /api/v1/ingest/cloudfront             newline-separated real-time log lines
	GET  /api/v1/health/live
	GET  /api/v1/health/ready
	GET  /metrics

Every JSON response uses the APIResponse envelope. Operation errors map to
status codes by kind:

	*fetch.ValidationError           400 VALIDATION_ERROR
	fetch.ErrUpstreamUnavailable     503 SERVICE_UNAVAILABLE
	session with no samples          404 NOT_FOUND
	anything else                    500 INTERNAL_ERROR

Empty windows on the list endpoints are 200 with empty arrays.
*/
package api
