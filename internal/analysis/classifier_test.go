// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"math"
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"github.com/shamikatamazon/cmcd/internal/models"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultConfig())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestClassifier_BitrateDropMedium(t *testing.T) {
	t.Parallel()

	errs := newClassifier(t).Classify([]models.Sample{
		brSample("s1", 0, 4000),
		brSample("s1", 1, 2000),
	})

	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %+v", len(errs), errs)
	}
	e := errs[0]
	if e.ErrorType != models.ErrorTypeBitrateDrop || e.Severity != models.SeverityMedium {
		t.Errorf("error = %s/%s, want bitrate_drop/medium", e.ErrorType, e.Severity)
	}
	if !e.Timestamp.Equal(at(1)) {
		t.Errorf("timestamp = %v, want %v", e.Timestamp, at(1))
	}
	if e.Details.DropRatio == nil || math.Abs(*e.Details.DropRatio-0.5) > 1e-9 {
		t.Errorf("drop ratio = %v, want 0.5", e.Details.DropRatio)
	}
}

func TestClassifier_UnderrunHigh(t *testing.T) {
	t.Parallel()

	errs := newClassifier(t).Classify([]models.Sample{
		bufSample("s1", 0, 500),
		bufSample("s1", 1, 0),
	})

	underruns := errorsOfType(errs, models.ErrorTypeBufferUnderrun)
	if len(underruns) != 1 {
		t.Fatalf("got %d underruns, want 1: %+v", len(underruns), errs)
	}
	if underruns[0].Severity != models.SeverityHigh || !underruns[0].Timestamp.Equal(at(1)) {
		t.Errorf("underrun = %+v", underruns[0])
	}
}

func TestUnderrunRule_Evaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []models.Sample
		want    int
	}{
		{
			name:    "first sample has no previous",
			samples: []models.Sample{bufSample("s1", 0, 0)},
		},
		{
			name:    "previous already low",
			samples: []models.Sample{bufSample("s1", 0, 200), bufSample("s1", 1, 0)},
		},
		{
			name:    "falls under floor",
			samples: []models.Sample{bufSample("s1", 0, 250), bufSample("s1", 1, 99)},
			want:    1,
		},
		{
			name:    "at floor is not an underrun",
			samples: []models.Sample{bufSample("s1", 0, 3000), bufSample("s1", 1, 100)},
		},
		{
			name:    "staying empty reports once",
			samples: []models.Sample{bufSample("s1", 0, 3000), bufSample("s1", 1, 0), bufSample("s1", 2, 0)},
			want:    1,
		},
		{
			name:    "other session does not count as previous",
			samples: []models.Sample{bufSample("s1", 0, 3000), bufSample("s2", 1, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewUnderrunRule(DefaultUnderrunConfig()).Evaluate(tt.samples)
			if len(got) != tt.want {
				t.Errorf("got %d errors, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestSuddenDropRule_Severity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous int64
		current  int64
		want     models.Severity
	}{
		{name: "ratio 0.9 is high", previous: 1000, current: 100, want: models.SeverityHigh},
		{name: "ratio 0.8 is high", previous: 1000, current: 200, want: models.SeverityHigh},
		{name: "ratio 0.6 is medium", previous: 1000, current: 400, want: models.SeverityMedium},
		{name: "ratio 0.5 is medium", previous: 1000, current: 500, want: models.SeverityMedium},
		{name: "ratio 0.4 is not an error", previous: 1000, current: 600},
		{name: "previous under threshold", previous: 400, current: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewSuddenDropRule(DefaultSuddenDropConfig()).Evaluate([]models.Sample{
				bufSample("s1", 0, tt.previous),
				bufSample("s1", 1, tt.current),
			})
			if tt.want == "" {
				if len(got) != 0 {
					t.Errorf("got %+v, want no error", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("got %d errors, want 1", len(got))
			}
			if got[0].Severity != tt.want {
				t.Errorf("severity = %s, want %s", got[0].Severity, tt.want)
			}
		})
	}
}

func TestStartupDelayRule_Severity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delay int64
		want  models.Severity
	}{
		{delay: 1500},
		{delay: 2000},
		{delay: 2001, want: models.SeverityMedium},
		{delay: 5000, want: models.SeverityMedium},
		{delay: 5001, want: models.SeverityHigh},
	}

	rule := NewStartupDelayRule(DefaultStartupDelayConfig())
	for _, tt := range tests {
		got := rule.Evaluate([]models.Sample{{Timestamp: at(0), SessionID: "s1", StartupDelayMs: models.Int64Ptr(tt.delay)}})
		if tt.want == "" {
			if len(got) != 0 {
				t.Errorf("delay %d: got %+v, want none", tt.delay, got)
			}
			continue
		}
		if len(got) != 1 || got[0].Severity != tt.want {
			t.Errorf("delay %d: got %+v, want one %s error", tt.delay, got, tt.want)
			continue
		}
		if got[0].Details.DelayMs == nil || *got[0].Details.DelayMs != tt.delay {
			t.Errorf("delay %d: details = %+v", tt.delay, got[0].Details)
		}
	}
}

func TestBitrateDropRule_LowBufferEscalates(t *testing.T) {
	t.Parallel()

	rule := NewBitrateDropRule(DefaultBitrateDropConfig())
	got := rule.Evaluate([]models.Sample{
		{Timestamp: at(0), SessionID: "s1", BitrateKbps: models.Float64Ptr(6000), BufferLevelMs: models.Int64Ptr(4000)},
		{Timestamp: at(1), SessionID: "s1", BitrateKbps: models.Float64Ptr(1500), BufferLevelMs: models.Int64Ptr(300)},
	})

	if len(got) != 1 {
		t.Fatalf("got %d errors, want 1", len(got))
	}
	if got[0].Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", got[0].Severity)
	}
	if got[0].Details.BufferLevelMs == nil || *got[0].Details.BufferLevelMs != 300 {
		t.Errorf("buffer level evidence = %v, want 300", got[0].Details.BufferLevelMs)
	}
}

func TestClassifier_MultipleErrorsAtOneTimestamp(t *testing.T) {
	t.Parallel()

	samples := []models.Sample{
		{Timestamp: at(0), SessionID: "s1", BufferLevelMs: models.Int64Ptr(3000), BitrateKbps: models.Float64Ptr(5000)},
		{Timestamp: at(1), SessionID: "s1", BufferLevelMs: models.Int64Ptr(0), BitrateKbps: models.Float64Ptr(1000), StartupDelayMs: models.Int64Ptr(6000)},
	}

	errs := newClassifier(t).Classify(samples)

	want := []models.ErrorType{
		models.ErrorTypeBufferUnderrun,
		models.ErrorTypeSuddenBufferDrop,
		models.ErrorTypeStartupDelay,
		models.ErrorTypeBitrateDrop,
	}
	if len(errs) != len(want) {
		t.Fatalf("got %d errors, want %d: %+v", len(errs), len(want), errs)
	}
	for i, e := range errs {
		if e.ErrorType != want[i] {
			t.Errorf("errs[%d] = %s, want %s", i, e.ErrorType, want[i])
		}
		if e.Severity != models.SeverityHigh {
			t.Errorf("errs[%d] severity = %s, want high", i, e.Severity)
		}
	}
}

func TestClassifier_DisableRule(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.BitrateDrop.Enabled = false
	c, err := NewClassifier(cfg)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}

	samples := []models.Sample{brSample("s1", 0, 4000), brSample("s1", 1, 1000)}
	if got := c.Classify(samples); len(got) != 0 {
		t.Errorf("disabled rule still reported: %+v", got)
	}

	c.Rule(models.ErrorTypeBitrateDrop).SetEnabled(true)
	if got := c.Classify(samples); len(got) != 1 {
		t.Errorf("re-enabled rule reported %d errors, want 1", len(got))
	}
}

func TestClassifier_EmptyAndIdempotent(t *testing.T) {
	t.Parallel()

	c := newClassifier(t)
	if got := c.Classify(nil); got == nil || len(got) != 0 {
		t.Errorf("Classify(nil) = %#v, want empty slice", got)
	}

	samples := []models.Sample{
		bufSample("s1", 2, 0),
		bufSample("s1", 0, 4000),
		brSample("s2", 1, 8000),
		brSample("s2", 3, 1000),
	}
	first := c.Classify(samples)
	second := c.Classify(samples)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Classify is not idempotent")
	}
	for i := 1; i < len(first); i++ {
		if first[i].Timestamp.Before(first[i-1].Timestamp) {
			t.Fatalf("errors out of order at %d", i)
		}
	}
}

func TestRule_Configure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rule    Rule
		raw     string
		wantErr bool
	}{
		{name: "underrun valid", rule: NewUnderrunRule(DefaultUnderrunConfig()), raw: `{"floor_ms":50,"min_previous_ms":1000}`},
		{name: "underrun previous under floor", rule: NewUnderrunRule(DefaultUnderrunConfig()), raw: `{"floor_ms":500,"min_previous_ms":100}`, wantErr: true},
		{name: "sudden drop high under medium", rule: NewSuddenDropRule(DefaultSuddenDropConfig()), raw: `{"high_ratio":0.3}`, wantErr: true},
		{name: "startup high under medium", rule: NewStartupDelayRule(DefaultStartupDelayConfig()), raw: `{"medium_ms":3000,"high_ms":1000}`, wantErr: true},
		{name: "bitrate ratio zero", rule: NewBitrateDropRule(DefaultBitrateDropConfig()), raw: `{"drop_ratio":0}`, wantErr: true},
		{name: "malformed json", rule: NewBitrateDropRule(DefaultBitrateDropConfig()), raw: `{"drop_ratio":`, wantErr: true},
		{name: "disable through config", rule: NewStartupDelayRule(DefaultStartupDelayConfig()), raw: `{"enabled":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.rule.Configure(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Configure() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRule_ConfigureKeepsPreviousOnError(t *testing.T) {
	t.Parallel()

	rule := NewStartupDelayRule(DefaultStartupDelayConfig())
	if err := rule.Configure(json.RawMessage(`{"medium_ms":9000}`)); err == nil {
		t.Fatal("expected error for medium_ms above high_ms")
	}
	if got := rule.Config(); got != DefaultStartupDelayConfig() {
		t.Errorf("config changed after failed Configure: %+v", got)
	}

	if err := rule.Configure(json.RawMessage(`{"medium_ms":1000}`)); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := rule.Config(); got.MediumMs != 1000 || got.HighMs != 5000 {
		t.Errorf("partial configure = %+v, want medium 1000 high 5000", got)
	}
}

func TestNewClassifier_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SuddenDrop.MediumRatio = 2
	if _, err := NewClassifier(cfg); err == nil {
		t.Fatal("expected error for medium_ratio above 1")
	}
}
