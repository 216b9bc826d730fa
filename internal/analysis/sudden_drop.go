// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"github.com/goccy/go-json"

	"github.com/shamikatamazon/cmcd/internal/models"
)

// SuddenDropRule grades the buffer detector's sudden_drop condition by magnitude.
type SuddenDropRule struct {
	config SuddenDropConfig
}

// NewSuddenDropRule creates the rule with the given configuration.
func NewSuddenDropRule(cfg SuddenDropConfig) *SuddenDropRule {
	return &SuddenDropRule{config: cfg}
}

// Type returns the error type produced by this rule.
func (r *SuddenDropRule) Type() models.ErrorType {
	return models.ErrorTypeSuddenBufferDrop
}

// Enabled returns whether the rule runs.
func (r *SuddenDropRule) Enabled() bool {
	return r.config.Enabled
}

// SetEnabled enables or disables the rule.
func (r *SuddenDropRule) SetEnabled(enabled bool) {
	r.config.Enabled = enabled
}

// Config returns the current configuration.
func (r *SuddenDropRule) Config() SuddenDropConfig {
	return r.config
}

// Configure merges raw JSON over the current configuration.
func (r *SuddenDropRule) Configure(raw json.RawMessage) error {
	next, err := configure(r.config, raw)
	if err != nil {
		return err
	}
	r.config = next
	return nil
}

// Evaluate emits sudden_buffer_drop errors: high at HighRatio and above,
// medium from MediumRatio. Smaller drops are not errors.
func (r *SuddenDropRule) Evaluate(samples []models.Sample) []models.PlaybackError {
	cfg := r.config
	prev := make(map[string]int64)
	var out []models.PlaybackError

	for i := range samples {
		s := &samples[i]
		if s.BufferLevelMs == nil {
			continue
		}
		level := *s.BufferLevelMs

		if p, ok := prev[s.SessionID]; ok {
			if ratio, drop := suddenDrop(p, level, cfg.ThresholdMs, cfg.MediumRatio); drop {
				severity := models.SeverityMedium
				if ratio >= cfg.HighRatio {
					severity = models.SeverityHigh
				}
				out = append(out, models.PlaybackError{
					Timestamp: s.Timestamp,
					SessionID: s.SessionID,
					ErrorType: models.ErrorTypeSuddenBufferDrop,
					Severity:  severity,
					Details: models.ErrorDetails{
						PreviousValue: models.Float64Ptr(float64(p)),
						CurrentValue:  models.Float64Ptr(float64(level)),
						DropRatio:     models.Float64Ptr(ratio),
						Unit:          "ms",
					},
				})
			}
		}
		prev[s.SessionID] = level
	}

	return out
}
