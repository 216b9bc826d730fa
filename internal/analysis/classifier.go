// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"sort"

	"github.com/shamikatamazon/cmcd/internal/models"
)

// Classifier runs the playback error rules over a sample set.
//
// A Classifier is not safe for concurrent reconfiguration. Build one per
// request, or configure it once at startup and only call Classify afterwards.
type Classifier struct {
	rules []Rule
}

// NewClassifier validates cfg and registers the four rules in a fixed order:
// buffer_underrun, sudden_buffer_drop, startup_delay, bitrate_drop.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		rules: []Rule{
			NewUnderrunRule(cfg.Underrun),
			NewSuddenDropRule(cfg.SuddenDrop),
			NewStartupDelayRule(cfg.StartupDelay),
			NewBitrateDropRule(cfg.BitrateDrop),
		},
	}, nil
}

// Rules returns the registered rules in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Rule returns the rule producing errType, or nil.
func (c *Classifier) Rule(errType models.ErrorType) Rule {
	for _, r := range c.rules {
		if r.Type() == errType {
			return r
		}
	}
	return nil
}

// Classify orders a copy of samples by timestamp, runs every enabled rule and
// merges the matches. The result is sorted by timestamp; errors sharing a
// timestamp keep rule registration order. It is never nil.
func (c *Classifier) Classify(samples []models.Sample) []models.PlaybackError {
	ordered := orderedCopy(samples)
	out := make([]models.PlaybackError, 0)

	for _, r := range c.rules {
		if !r.Enabled() {
			continue
		}
		out = append(out, r.Evaluate(ordered)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
