// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package models

import "time"

// BufferEventKind identifies why a buffer event was emitted.
type BufferEventKind string

const (
	// BufferEventLowBuffer marks a level below the configured threshold.
	BufferEventLowBuffer BufferEventKind = "low_buffer"

	// BufferEventSuddenDrop marks a large relative drop between consecutive levels.
	BufferEventSuddenDrop BufferEventKind = "sudden_drop"
)

// BufferEvent is a point in a timeline where buffer health degraded.
type BufferEvent struct {
	Timestamp             time.Time       `json:"timestamp"`
	SessionID             string          `json:"session_id,omitempty"`
	Kind                  BufferEventKind `json:"kind"`
	BufferLevelMs         int64           `json:"buffer_level_ms"`
	PreviousBufferLevelMs *int64          `json:"previous_buffer_level_ms,omitempty"`
	DropRatio             *float64        `json:"drop_ratio,omitempty"`
}

// ErrorType identifies a classified playback anomaly.
type ErrorType string

const (
	ErrorTypeBufferUnderrun   ErrorType = "buffer_underrun"
	ErrorTypeSuddenBufferDrop ErrorType = "sudden_buffer_drop"
	ErrorTypeStartupDelay     ErrorType = "startup_delay"
	ErrorTypeBitrateDrop      ErrorType = "bitrate_drop"
)

// Severity ranks the impact of a playback error.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ErrorDetails carries the numeric evidence behind a PlaybackError.
// Only the fields relevant to the error type are set.
type ErrorDetails struct {
	PreviousValue *float64 `json:"previous_value,omitempty"`
	CurrentValue  *float64 `json:"current_value,omitempty"`
	DropRatio     *float64 `json:"drop_ratio,omitempty"`
	DelayMs       *int64   `json:"delay_ms,omitempty"`
	ThresholdMs   *int64   `json:"threshold_ms,omitempty"`
	BufferLevelMs *int64   `json:"buffer_level_ms,omitempty"`
	Unit          string   `json:"unit,omitempty"`
}

// PlaybackError is a classified anomaly found in a timeline.
type PlaybackError struct {
	Timestamp time.Time    `json:"timestamp"`
	SessionID string       `json:"session_id,omitempty"`
	ErrorType ErrorType    `json:"error_type"`
	Severity  Severity     `json:"severity"`
	Details   ErrorDetails `json:"details"`
}

// BitrateStatistic aggregates the defined bitrate values of a sample set.
// NoData is set, and the numeric pointers are nil, when no sample had a bitrate.
type BitrateStatistic struct {
	GroupKey    string   `json:"group_key,omitempty"`
	AverageKbps *float64 `json:"average_kbps"`
	MinKbps     *float64 `json:"min_kbps"`
	MaxKbps     *float64 `json:"max_kbps"`
	SampleCount int      `json:"sample_count"`
	NoData      bool     `json:"no_data"`
}

// IDListing holds the distinct identifiers observed in a fetch, in first-seen order.
type IDListing struct {
	SessionIDs         []string `json:"session_ids"`
	ContentIDs         []string `json:"content_ids"`
	Limit              int      `json:"limit"`
	SessionIDTruncated bool     `json:"session_ids_truncated"`
	ContentIDTruncated bool     `json:"content_ids_truncated"`
}

// SeriesPoint is a single timestamped value in a session detail series.
type SeriesPoint struct {
	Time  time.Time   `json:"time"`
	Value interface{} `json:"value"`
}

// SessionDetails summarizes a session timeline with series grouped by category:
// buffer, bitrate, timing and network.
type SessionDetails struct {
	SessionID     string                              `json:"session_id"`
	NoData        bool                                `json:"no_data"`
	StartTime     *time.Time                          `json:"start_time,omitempty"`
	EndTime       *time.Time                          `json:"end_time,omitempty"`
	SampleCount   int                                 `json:"sample_count"`
	ContentIDs    []string                            `json:"content_ids,omitempty"`
	EdgeLocations []string                            `json:"edge_locations,omitempty"`
	Metrics       map[string]map[string][]SeriesPoint `json:"metrics"`
}

// EdgeLocationStat summarizes playback health served from one CDN edge.
type EdgeLocationStat struct {
	EdgeLocation   string           `json:"edge_location"`
	SampleCount    int              `json:"sample_count"`
	SessionCount   int              `json:"session_count"`
	LowBufferCount int              `json:"low_buffer_count"`
	Bitrate        BitrateStatistic `json:"bitrate"`
}

// BufferEvents is the result of the buffer_events operation.
type BufferEvents struct {
	Events          []BufferEvent `json:"events"`
	Total           int           `json:"total"`
	LowBufferCount  int           `json:"low_buffer_count"`
	SuddenDropCount int           `json:"sudden_drop_count"`
	ThresholdMs     int64         `json:"threshold_ms"`
}

// PlaybackErrors is the result of the playback_errors operation. ByType and
// BySeverity count Errors.
type PlaybackErrors struct {
	Errors     []PlaybackError   `json:"errors"`
	Total      int               `json:"total"`
	ByType     map[ErrorType]int `json:"by_type"`
	BySeverity map[Severity]int  `json:"by_severity"`
}
