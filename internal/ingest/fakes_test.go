// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shamikatamazon/cmcd/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSink struct {
	name string

	mu      sync.Mutex
	written []models.Sample
	batches []int
	failing bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) WriteSamples(_ context.Context, samples []models.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("sink unavailable")
	}
	f.written = append(f.written, samples...)
	f.batches = append(f.batches, len(samples))
	return nil
}

func (f *fakeSink) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func (f *fakeSink) sessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	for i, s := range f.written {
		out[i] = s.SessionID
	}
	return out
}

type forwarded struct {
	id     string
	sample models.Sample
}

type fakeForwarder struct {
	mu   sync.Mutex
	got  []forwarded
	fail map[string]bool // session IDs to refuse
}

func (f *fakeForwarder) Forward(_ context.Context, id string, s models.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[s.SessionID] {
		return errors.New("broker unavailable")
	}
	f.got = append(f.got, forwarded{id: id, sample: s})
	return nil
}

func sample(session string, bl int64) models.Sample {
	return models.Sample{Timestamp: t0, SessionID: session, BufferLevelMs: models.Int64Ptr(bl)}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
