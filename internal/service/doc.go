// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package service binds a sample store to the buffer-health analyzers.

Each operation validates its parameters, fetches the samples it needs through
a fetch.Fetcher and runs the pure analysis functions over them. The REST API
and the MCP tool server both call these operations, so they share parameter
names, defaults and error classification.

Operations:

	average_bitrate   BitrateStatistic for a window, optionally one session or content
	session_details   SessionDetails for one session, grouped by category
	buffer_events     low_buffer and sudden_drop events with counts
	playback_errors   classified PlaybackErrors with per-type and per-severity counts
	list_ids          distinct session and content IDs in first-seen order
	edge_stats        per edge location bitrate and buffer health
	cmcd_query        caller-supplied Flux (InfluxDB only)

Errors:

  - *fetch.ValidationError for a rejected parameter, named by its json name
  - errors matching fetch.ErrUpstreamUnavailable when the store fails

An empty window is not an error. Bitrate and session details report it with
their NoData flag, the list operations with empty slices.
*/
package service
