// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/shamikatamazon/cmcd/internal/models"
)

// Rule classifies one kind of playback error.
//
// Evaluate expects samples in timestamp order and returns errors in the same
// order. Rules keep no state between calls.
type Rule interface {
	Type() models.ErrorType
	Enabled() bool
	SetEnabled(enabled bool)
	Configure(raw json.RawMessage) error
	Evaluate(samples []models.Sample) []models.PlaybackError
}

// UnderrunConfig configures the buffer underrun rule.
type UnderrunConfig struct {
	Enabled bool `json:"enabled"`

	// FloorMs is the near-zero floor. A level below it, or exactly zero, is an underrun
	// candidate.
	FloorMs int64 `json:"floor_ms"`

	// MinPreviousMs is how full the buffer must have been at the previous
	// sample for the fall to count as an underrun rather than a buffer that
	// was already empty.
	MinPreviousMs int64 `json:"min_previous_ms"`
}

// DefaultUnderrunConfig returns sensible defaults.
func DefaultUnderrunConfig() UnderrunConfig {
	return UnderrunConfig{
		Enabled:       true,
		FloorMs:       100,
		MinPreviousMs: 250,
	}
}

// Validate checks the configuration.
func (c UnderrunConfig) Validate() error {
	if c.FloorMs < 0 {
		return fmt.Errorf("floor_ms must be >= 0")
	}
	if c.MinPreviousMs <= c.FloorMs {
		return fmt.Errorf("min_previous_ms must be greater than floor_ms")
	}
	return nil
}

// SuddenDropConfig configures the sudden buffer drop rule.
type SuddenDropConfig struct {
	Enabled bool `json:"enabled"`

	// ThresholdMs gates the rule: the previous level must exceed it.
	ThresholdMs int64 `json:"threshold_ms"`

	// MediumRatio is the minimum drop ratio reported, with medium severity.
	MediumRatio float64 `json:"medium_ratio"`

	// HighRatio escalates the drop to high severity.
	HighRatio float64 `json:"high_ratio"`
}

// DefaultSuddenDropConfig returns sensible defaults.
func DefaultSuddenDropConfig() SuddenDropConfig {
	return SuddenDropConfig{
		Enabled:     true,
		ThresholdMs: 500,
		MediumRatio: 0.5,
		HighRatio:   0.8,
	}
}

// Validate checks the configuration.
func (c SuddenDropConfig) Validate() error {
	if c.ThresholdMs < 0 {
		return fmt.Errorf("threshold_ms must be >= 0")
	}
	if c.MediumRatio <= 0 || c.MediumRatio > 1 {
		return fmt.Errorf("medium_ratio must be in (0, 1]")
	}
	if c.HighRatio < c.MediumRatio || c.HighRatio > 1 {
		return fmt.Errorf("high_ratio must be in [medium_ratio, 1]")
	}
	return nil
}

// StartupDelayConfig configures the startup delay rule.
type StartupDelayConfig struct {
	Enabled bool `json:"enabled"`

	// MediumMs is the high-water mark; delays above it are medium severity.
	MediumMs int64 `json:"medium_ms"`

	// HighMs escalates delays above it to high severity.
	HighMs int64 `json:"high_ms"`
}

// DefaultStartupDelayConfig returns sensible defaults.
func DefaultStartupDelayConfig() StartupDelayConfig {
	return StartupDelayConfig{
		Enabled:  true,
		MediumMs: 2000,
		HighMs:   5000,
	}
}

// Validate checks the configuration.
func (c StartupDelayConfig) Validate() error {
	if c.MediumMs < 0 {
		return fmt.Errorf("medium_ms must be >= 0")
	}
	if c.HighMs < c.MediumMs {
		return fmt.Errorf("high_ms must be >= medium_ms")
	}
	return nil
}

// BitrateDropConfig configures the bitrate drop rule.
type BitrateDropConfig struct {
	Enabled bool `json:"enabled"`

	// DropRatio is the minimum relative fall between consecutive bitrates.
	DropRatio float64 `json:"drop_ratio"`

	// LowBufferMs escalates a drop to high severity when the same sample's
	// buffer level is below it.
	LowBufferMs int64 `json:"low_buffer_ms"`
}

// DefaultBitrateDropConfig returns sensible defaults.
func DefaultBitrateDropConfig() BitrateDropConfig {
	return BitrateDropConfig{
		Enabled:     true,
		DropRatio:   0.5,
		LowBufferMs: 500,
	}
}

// Validate checks the configuration.
func (c BitrateDropConfig) Validate() error {
	if c.DropRatio <= 0 || c.DropRatio > 1 {
		return fmt.Errorf("drop_ratio must be in (0, 1]")
	}
	if c.LowBufferMs < 0 {
		return fmt.Errorf("low_buffer_ms must be >= 0")
	}
	return nil
}

// Config holds every analyzer threshold.
type Config struct {
	Buffer       BufferConfig       `json:"buffer"`
	Underrun     UnderrunConfig     `json:"underrun"`
	SuddenDrop   SuddenDropConfig   `json:"sudden_drop"`
	StartupDelay StartupDelayConfig `json:"startup_delay"`
	BitrateDrop  BitrateDropConfig  `json:"bitrate_drop"`
}

// DefaultConfig returns the documented defaults for every component.
func DefaultConfig() Config {
	return Config{
		Buffer:       DefaultBufferConfig(),
		Underrun:     DefaultUnderrunConfig(),
		SuddenDrop:   DefaultSuddenDropConfig(),
		StartupDelay: DefaultStartupDelayConfig(),
		BitrateDrop:  DefaultBitrateDropConfig(),
	}
}

// Validate checks every component configuration.
func (c Config) Validate() error {
	if err := c.Buffer.Validate(); err != nil {
		return err
	}
	if err := c.Underrun.Validate(); err != nil {
		return fmt.Errorf("underrun: %w", err)
	}
	if err := c.SuddenDrop.Validate(); err != nil {
		return fmt.Errorf("sudden_drop: %w", err)
	}
	if err := c.StartupDelay.Validate(); err != nil {
		return fmt.Errorf("startup_delay: %w", err)
	}
	if err := c.BitrateDrop.Validate(); err != nil {
		return fmt.Errorf("bitrate_drop: %w", err)
	}
	return nil
}

// configure decodes raw over a copy of current and validates the result.
func configure[T interface{ Validate() error }](current T, raw json.RawMessage) (T, error) {
	next := current
	if err := json.Unmarshal(raw, &next); err != nil {
		return current, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := next.Validate(); err != nil {
		return current, err
	}
	return next, nil
}
