// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"github.com/goccy/go-json"

	"github.com/shamikatamazon/cmcd/internal/models"
)

// StartupDelayRule flags slow playback starts.
type StartupDelayRule struct {
	config StartupDelayConfig
}

// NewStartupDelayRule creates the rule with the given configuration.
func NewStartupDelayRule(cfg StartupDelayConfig) *StartupDelayRule {
	return &StartupDelayRule{config: cfg}
}

// Type returns the error type produced by this rule.
func (r *StartupDelayRule) Type() models.ErrorType {
	return models.ErrorTypeStartupDelay
}

// Enabled returns whether the rule runs.
func (r *StartupDelayRule) Enabled() bool {
	return r.config.Enabled
}

// SetEnabled enables or disables the rule.
func (r *StartupDelayRule) SetEnabled(enabled bool) {
	r.config.Enabled = enabled
}

// Config returns the current configuration.
func (r *StartupDelayRule) Config() StartupDelayConfig {
	return r.config
}

// Configure merges raw JSON over the current configuration.
func (r *StartupDelayRule) Configure(raw json.RawMessage) error {
	next, err := configure(r.config, raw)
	if err != nil {
		return err
	}
	r.config = next
	return nil
}

// Evaluate emits startup_delay errors for delays above MediumMs, escalated
// to high above HighMs.
func (r *StartupDelayRule) Evaluate(samples []models.Sample) []models.PlaybackError {
	cfg := r.config
	var out []models.PlaybackError

	for i := range samples {
		s := &samples[i]
		if s.StartupDelayMs == nil || *s.StartupDelayMs <= cfg.MediumMs {
			continue
		}
		delay := *s.StartupDelayMs

		severity := models.SeverityMedium
		threshold := cfg.MediumMs
		if delay > cfg.HighMs {
			severity = models.SeverityHigh
			threshold = cfg.HighMs
		}

		out = append(out, models.PlaybackError{
			Timestamp: s.Timestamp,
			SessionID: s.SessionID,
			ErrorType: models.ErrorTypeStartupDelay,
			Severity:  severity,
			Details: models.ErrorDetails{
				DelayMs:     models.Int64Ptr(delay),
				ThresholdMs: models.Int64Ptr(threshold),
				Unit:        "ms",
			},
		})
	}

	return out
}
