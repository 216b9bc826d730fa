// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/models"
)

// testDBSemaphore limits concurrent DuckDB instances; each one spins up its
// own thread pool through CGO.
var testDBSemaphore = make(chan struct{}, 2)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := Open(config.DuckDBConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	db.now = func() time.Time { return now }
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func at(d time.Duration) time.Time {
	return now.Add(-d)
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(config.DuckDBConfig{}); err == nil {
		t.Error("Open() with empty path succeeded")
	}
}

func TestPingAndName(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if db.Name() != BackendName {
		t.Errorf("Name() = %q", db.Name())
	}
}

func TestInsertSamples_SkipsEmpty(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	n, err := db.InsertSamples(ctx, []models.Sample{
		{Timestamp: at(time.Minute), SessionID: "s1", BufferLevelMs: models.Int64Ptr(900)},
		{Timestamp: at(time.Minute), SessionID: "s1"},
		{Timestamp: at(time.Minute), SessionID: "s1", BitrateKbps: models.Float64Ptr(-3)},
		{Timestamp: at(time.Minute), SessionID: "s2", BufferStarved: true},
	})
	if err != nil {
		t.Fatalf("InsertSamples() error = %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	count, err := db.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestFetch_WindowFiltersAndOrder(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	samples := []models.Sample{
		{Timestamp: at(30 * time.Minute), SessionID: "s1", ContentID: "movie-1", BufferLevelMs: models.Int64Ptr(300)},
		{Timestamp: at(45 * time.Minute), SessionID: "s1", ContentID: "movie-1", BufferLevelMs: models.Int64Ptr(1000), BitrateKbps: models.Float64Ptr(4500)},
		{Timestamp: at(30 * time.Minute), SessionID: "s2", ContentID: "movie-2", BufferLevelMs: models.Int64Ptr(50), EdgeLocation: "IAD89-C1"},
		{Timestamp: at(3 * time.Hour), SessionID: "s1", ContentID: "movie-1", BufferLevelMs: models.Int64Ptr(2000)},
	}
	if err := db.WriteSamples(ctx, samples); err != nil {
		t.Fatalf("WriteSamples() error = %v", err)
	}

	got, err := db.Fetch(ctx, fetch.Request{TimeRange: "-1h"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (3h-old sample outside window)", len(got))
	}
	if !got[0].Timestamp.Equal(at(45 * time.Minute)) {
		t.Errorf("first = %v, want oldest in window", got[0].Timestamp)
	}
	// Equal timestamps keep insertion order.
	if got[1].SessionID != "s1" || got[2].SessionID != "s2" {
		t.Errorf("tie order = %s, %s", got[1].SessionID, got[2].SessionID)
	}
	if got[2].EdgeLocation != "IAD89-C1" || *got[2].BufferLevelMs != 50 {
		t.Errorf("round trip = %+v", got[2])
	}
	if got[0].BitrateKbps == nil || *got[0].BitrateKbps != 4500 || got[1].BitrateKbps != nil {
		t.Errorf("bitrate nullability lost: %v %v", got[0].BitrateKbps, got[1].BitrateKbps)
	}

	got, err = db.Fetch(ctx, fetch.Request{TimeRange: "-24h", SessionID: " s1 ", ContentID: "movie-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("session filter len = %d, want 3", len(got))
	}
	for _, s := range got {
		if s.SessionID != "s1" {
			t.Errorf("foreign session %q", s.SessionID)
		}
	}
}

func TestFetch_Projection(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.WriteSamples(ctx, []models.Sample{
		{Timestamp: at(time.Minute), SessionID: "s1", BufferLevelMs: models.Int64Ptr(700), BitrateKbps: models.Float64Ptr(3000)},
		{Timestamp: at(2 * time.Minute), SessionID: "s1", StartupDelayMs: models.Int64Ptr(1800)},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := db.Fetch(ctx, fetch.Request{Fields: []fetch.Field{fetch.FieldBitrate}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].BufferLevelMs != nil || got[0].BitrateKbps == nil {
		t.Errorf("projection = %+v", got[0])
	}
}

func TestFetch_EmptyIsNotNil(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	got, err := db.Fetch(context.Background(), fetch.Request{})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Fetch() = %v, want empty slice", got)
	}
}

func TestFetch_InvalidRange(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	_, err := db.Fetch(context.Background(), fetch.Request{TimeRange: "yesterday"})
	if !fetch.IsValidation(err) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	t.Parallel()

	testDBSemaphore <- struct{}{}
	defer func() { <-testDBSemaphore }()

	db, err := Open(config.DuckDBConfig{Path: ":memory:", Threads: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = db.Fetch(context.Background(), fetch.Request{})
	if !fetch.IsUpstreamUnavailable(err) {
		t.Errorf("Fetch() error = %v, want upstream unavailable", err)
	}
	var ue *fetch.UpstreamError
	if !errors.As(err, &ue) || ue.Backend != BackendName {
		t.Errorf("UpstreamError = %+v", ue)
	}
	if err := db.Ping(context.Background()); !fetch.IsUpstreamUnavailable(err) {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestSampleQuery(t *testing.T) {
	t.Parallel()

	q, args := sampleQuery(now, fetch.Request{
		SessionID: "s1",
		Fields:    []fetch.Field{fetch.FieldBufferLevel, fetch.FieldBufferStarved, "bogus"},
	})
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}
	for _, want := range []string{"session_id = ?", "(buffer_level_ms IS NOT NULL OR buffer_starved)", "ORDER BY ts, seq"} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
	if strings.Contains(q, "s1") {
		t.Error("session value spliced into SQL")
	}
}

func TestIsTransactionConflict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("TransactionContext Error: Transaction conflict: cannot update"), true},
		{errors.New("Conflict on update!"), true},
		{errors.New("Catalog Error: table missing"), false},
	}
	for _, tt := range tests {
		if got := isTransactionConflict(tt.err); got != tt.want {
			t.Errorf("isTransactionConflict(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
