// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"github.com/goccy/go-json"

	"github.com/shamikatamazon/cmcd/internal/models"
)

// UnderrunRule flags a buffer that empties after having been comfortably filled.
type UnderrunRule struct {
	config UnderrunConfig
}

// NewUnderrunRule creates the rule with the given configuration.
func NewUnderrunRule(cfg UnderrunConfig) *UnderrunRule {
	return &UnderrunRule{config: cfg}
}

// Type returns the error type produced by this rule.
func (r *UnderrunRule) Type() models.ErrorType {
	return models.ErrorTypeBufferUnderrun
}

// Enabled returns whether the rule runs.
func (r *UnderrunRule) Enabled() bool {
	return r.config.Enabled
}

// SetEnabled enables or disables the rule.
func (r *UnderrunRule) SetEnabled(enabled bool) {
	r.config.Enabled = enabled
}

// Config returns the current configuration.
func (r *UnderrunRule) Config() UnderrunConfig {
	return r.config
}

// Configure merges raw JSON over the current configuration.
func (r *UnderrunRule) Configure(raw json.RawMessage) error {
	next, err := configure(r.config, raw)
	if err != nil {
		return err
	}
	r.config = next
	return nil
}

// Evaluate emits a high severity buffer_underrun for each sample whose level
// is zero or under the floor while the previous level of the same session
// was at least MinPreviousMs.
func (r *UnderrunRule) Evaluate(samples []models.Sample) []models.PlaybackError {
	cfg := r.config
	prev := make(map[string]int64)
	var out []models.PlaybackError

	for i := range samples {
		s := &samples[i]
		if s.BufferLevelMs == nil {
			continue
		}
		level := *s.BufferLevelMs

		if p, ok := prev[s.SessionID]; ok && (level == 0 || level < cfg.FloorMs) && p >= cfg.MinPreviousMs && p > level {
			out = append(out, models.PlaybackError{
				Timestamp: s.Timestamp,
				SessionID: s.SessionID,
				ErrorType: models.ErrorTypeBufferUnderrun,
				Severity:  models.SeverityHigh,
				Details: models.ErrorDetails{
					PreviousValue: models.Float64Ptr(float64(p)),
					CurrentValue:  models.Float64Ptr(float64(level)),
					ThresholdMs:   models.Int64Ptr(cfg.FloorMs),
					Unit:          "ms",
				},
			})
		}
		prev[s.SessionID] = level
	}

	return out
}
