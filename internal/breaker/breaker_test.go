// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/shamikatamazon/cmcd/internal/metrics"
)

func testConfig(name string) Config {
	cfg := DefaultConfig(name)
	cfg.MinRequests = 4
	cfg.Timeout = time.Hour
	return cfg
}

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	t.Parallel()

	b := New(testConfig("test-opens"))
	boom := errors.New("connection refused")

	for i := 0; i < 4; i++ {
		if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want %v", i, err, boom)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", b.State())
	}

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	if !IsOpen(err) {
		t.Errorf("error = %v, want open-state rejection", err)
	}
	if called {
		t.Error("function ran while breaker was open")
	}

	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-opens")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues("test-opens", "rejected")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
}

func TestBreakerStaysClosedBelowMinimum(t *testing.T) {
	t.Parallel()

	b := New(testConfig("test-minimum"))
	for i := 0; i < 3; i++ {
		_ = b.Do(func() error { return errors.New("fail") })
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}

func TestBreakerIsSuccessful(t *testing.T) {
	t.Parallel()

	ignored := errors.New("bad request")
	cfg := testConfig("test-successful")
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, ignored) }
	b := New(cfg)

	for i := 0; i < 10; i++ {
		_ = b.Do(func() error { return ignored })
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed for ignored errors", b.State())
	}
}

func TestExecuteReturnsResult(t *testing.T) {
	t.Parallel()

	b := New(testConfig("test-result"))
	got, err := b.Execute(func() (any, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got.(int) != 42 {
		t.Errorf("Execute() = %v, want 42", got)
	}
	if b.Name() != "test-result" {
		t.Errorf("Name() = %q", b.Name())
	}
}

func TestStateValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		want  float64
	}{
		{gobreaker.StateClosed, 0},
		{gobreaker.StateHalfOpen, 1},
		{gobreaker.StateOpen, 2},
	}
	for _, tt := range tests {
		if got := StateValue(tt.state); got != tt.want {
			t.Errorf("StateValue(%v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}
