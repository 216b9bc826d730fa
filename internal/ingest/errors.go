// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package ingest

import "errors"

var (
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("publisher is closed")

	// ErrAppenderClosed is returned by Append after Close.
	ErrAppenderClosed = errors.New("appender is closed")

	// ErrNoSink is returned when an appender is built without sinks.
	ErrNoSink = errors.New("at least one sink is required")
)
