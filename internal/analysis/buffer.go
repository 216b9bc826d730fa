// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/models"
)

// BufferConfig configures the buffer event detector.
type BufferConfig struct {
	// ThresholdMs is the level below which a sample is a low_buffer event.
	// It also gates sudden_drop: the previous level must exceed it.
	ThresholdMs int64 `json:"threshold_ms"`

	// SuddenDropRatio is the minimum (previous-current)/previous ratio for a sudden_drop.
	SuddenDropRatio float64 `json:"sudden_drop_ratio"`
}

// DefaultBufferConfig returns the detector defaults.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		ThresholdMs:     500,
		SuddenDropRatio: 0.5,
	}
}

// Validate checks the configuration.
func (c BufferConfig) Validate() error {
	if c.ThresholdMs < 0 {
		return fetch.NewValidationError("threshold_ms", "must be >= 0, got %d", c.ThresholdMs)
	}
	if c.SuddenDropRatio <= 0 || c.SuddenDropRatio > 1 {
		return fetch.NewValidationError("sudden_drop_ratio", "must be in (0, 1], got %g", c.SuddenDropRatio)
	}
	return nil
}

// BufferDetector finds low_buffer and sudden_drop events in a timeline.
type BufferDetector struct {
	config BufferConfig
}

// NewBufferDetector validates cfg and returns a detector.
func NewBufferDetector(cfg BufferConfig) (*BufferDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BufferDetector{config: cfg}, nil
}

// Config returns the detector configuration.
func (d *BufferDetector) Config() BufferConfig {
	return d.config
}

// Detect walks samples in timestamp order and emits buffer events.
//
// For each sample with a buffer level, a low_buffer event is emitted when the
// level is below the threshold (an empty buffer always counts), and a
// sudden_drop event when the previous level for the same session exceeded the
// threshold and fell by at least SuddenDropRatio. Samples without a level are
// skipped and do not reset the previous value.
func (d *BufferDetector) Detect(samples []models.Sample) []models.BufferEvent {
	ordered := orderedCopy(samples)
	prev := make(map[string]int64)
	events := make([]models.BufferEvent, 0)

	for i := range ordered {
		s := &ordered[i]
		if s.BufferLevelMs == nil {
			continue
		}
		level := *s.BufferLevelMs

		if isLowBuffer(level, d.config.ThresholdMs) {
			events = append(events, models.BufferEvent{
				Timestamp:     s.Timestamp,
				SessionID:     s.SessionID,
				Kind:          models.BufferEventLowBuffer,
				BufferLevelMs: level,
			})
		}

		if p, ok := prev[s.SessionID]; ok {
			if ratio, drop := suddenDrop(p, level, d.config.ThresholdMs, d.config.SuddenDropRatio); drop {
				events = append(events, models.BufferEvent{
					Timestamp:             s.Timestamp,
					SessionID:             s.SessionID,
					Kind:                  models.BufferEventSuddenDrop,
					BufferLevelMs:         level,
					PreviousBufferLevelMs: models.Int64Ptr(p),
					DropRatio:             models.Float64Ptr(ratio),
				})
			}
		}

		prev[s.SessionID] = level
	}

	return events
}

// isLowBuffer reports whether level is below threshold. A threshold of zero
// degenerates to "only an empty buffer counts".
func isLowBuffer(level, thresholdMs int64) bool {
	return level < thresholdMs || level == 0
}

// suddenDrop reports the drop ratio from previous to current and whether it
// qualifies: previous must exceed thresholdMs and the ratio must reach minRatio.
func suddenDrop(previous, current, thresholdMs int64, minRatio float64) (float64, bool) {
	if previous <= thresholdMs || previous <= 0 || current >= previous {
		return 0, false
	}
	ratio := dropRatio(float64(previous), float64(current))
	return ratio, ratio >= minRatio
}

func dropRatio(previous, current float64) float64 {
	return (previous - current) / previous
}
