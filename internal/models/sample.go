// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package models

import (
	"math"
	"time"
)

// Sample is one CMCD telemetry observation.
//
// Optional numeric fields are pointers: nil means the beacon did not carry
// the key, or carried a value that failed boundary validation. Analyzers
// never see negative, NaN or infinite values.
type Sample struct {
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
	ContentID    string    `json:"content_id,omitempty"`
	EdgeLocation string    `json:"edge_location,omitempty"`

	BufferLevelMs  *int64   `json:"buffer_level_ms,omitempty"`  // cmcd_bl
	BitrateKbps    *float64 `json:"bitrate_kbps,omitempty"`     // cmcd_br
	TopBitrateKbps *float64 `json:"top_bitrate_kbps,omitempty"` // cmcd_tb
	StartupDelayMs *int64   `json:"startup_delay_ms,omitempty"` // cmcd_su

	ThroughputKbps    *float64 `json:"throughput_kbps,omitempty"`     // cmcd_mtp
	SegmentDurationMs *int64   `json:"segment_duration_ms,omitempty"` // cmcd_d
	BufferStarved     bool     `json:"buffer_starved,omitempty"`      // cmcd_bs
}

// HasBufferLevel reports whether the sample carries a buffer level.
func (s *Sample) HasBufferLevel() bool {
	return s.BufferLevelMs != nil
}

// HasBitrate reports whether the sample carries an encoded bitrate.
func (s *Sample) HasBitrate() bool {
	return s.BitrateKbps != nil
}

// Normalize drops values that cannot be valid telemetry. It is applied once
// at the fetch boundary so analyzers only ever check for presence.
func (s *Sample) Normalize() {
	s.BufferLevelMs = nonNegativeInt(s.BufferLevelMs)
	s.StartupDelayMs = nonNegativeInt(s.StartupDelayMs)
	s.SegmentDurationMs = nonNegativeInt(s.SegmentDurationMs)
	s.BitrateKbps = finiteNonNegative(s.BitrateKbps)
	s.TopBitrateKbps = finiteNonNegative(s.TopBitrateKbps)
	s.ThroughputKbps = finiteNonNegative(s.ThroughputKbps)
}

func nonNegativeInt(v *int64) *int64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func finiteNonNegative(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return nil
	}
	return v
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// SessionTimeline is the ordered sample sequence of one playback session.
// Samples are sorted by timestamp ascending; ties keep fetch order.
type SessionTimeline struct {
	SessionID string   `json:"session_id"`
	Samples   []Sample `json:"samples"`
}

// Empty reports whether the timeline has no samples in range.
func (t SessionTimeline) Empty() bool {
	return len(t.Samples) == 0
}
