// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"github.com/goccy/go-json"

	"github.com/shamikatamazon/cmcd/internal/models"
)

// BitrateDropRule flags rendition downswitches between consecutive beacons.
type BitrateDropRule struct {
	config BitrateDropConfig
}

// NewBitrateDropRule creates the rule with the given configuration.
func NewBitrateDropRule(cfg BitrateDropConfig) *BitrateDropRule {
	return &BitrateDropRule{config: cfg}
}

// Type returns the error type produced by this rule.
func (r *BitrateDropRule) Type() models.ErrorType {
	return models.ErrorTypeBitrateDrop
}

// Enabled returns whether the rule runs.
func (r *BitrateDropRule) Enabled() bool {
	return r.config.Enabled
}

// SetEnabled enables or disables the rule.
func (r *BitrateDropRule) SetEnabled(enabled bool) {
	r.config.Enabled = enabled
}

// Config returns the current configuration.
func (r *BitrateDropRule) Config() BitrateDropConfig {
	return r.config
}

// Configure merges raw JSON over the current configuration.
func (r *BitrateDropRule) Configure(raw json.RawMessage) error {
	next, err := configure(r.config, raw)
	if err != nil {
		return err
	}
	r.config = next
	return nil
}

// Evaluate compares each defined bitrate with the previous defined bitrate of
// the same session. A fall of DropRatio or more is medium, or high when the
// sample's buffer level is below LowBufferMs.
func (r *BitrateDropRule) Evaluate(samples []models.Sample) []models.PlaybackError {
	cfg := r.config
	prev := make(map[string]float64)
	var out []models.PlaybackError

	for i := range samples {
		s := &samples[i]
		if s.BitrateKbps == nil {
			continue
		}
		current := *s.BitrateKbps

		if p, ok := prev[s.SessionID]; ok && p > 0 && current < p {
			ratio := dropRatio(p, current)
			if ratio >= cfg.DropRatio {
				severity := models.SeverityMedium
				details := models.ErrorDetails{
					PreviousValue: models.Float64Ptr(p),
					CurrentValue:  models.Float64Ptr(current),
					DropRatio:     models.Float64Ptr(ratio),
					Unit:          "kbps",
				}
				if s.BufferLevelMs != nil {
					details.BufferLevelMs = models.Int64Ptr(*s.BufferLevelMs)
					if *s.BufferLevelMs < cfg.LowBufferMs {
						severity = models.SeverityHigh
					}
				}
				out = append(out, models.PlaybackError{
					Timestamp: s.Timestamp,
					SessionID: s.SessionID,
					ErrorType: models.ErrorTypeBitrateDrop,
					Severity:  severity,
					Details:   details,
				})
			}
		}
		prev[s.SessionID] = current
	}

	return out
}
