// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shamikatamazon/cmcd/internal/analysis"
	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/influx"
	"github.com/shamikatamazon/cmcd/internal/metrics"
	"github.com/shamikatamazon/cmcd/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeFetcher filters its samples by session like a real store and records
// every request it receives.
type fakeFetcher struct {
	mu       sync.Mutex
	samples  []models.Sample
	err      error
	requests []fetch.Request
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(_ context.Context, req fetch.Request) ([]models.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Sample, 0, len(f.samples))
	for _, s := range f.samples {
		if req.SessionID != "" && s.SessionID != req.SessionID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeFetcher) lastRequest() fetch.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeRaw struct {
	query string
}

func (f *fakeRaw) RawQuery(_ context.Context, flux string) (influx.RawResult, error) {
	f.query = flux
	return influx.RawResult{Records: []influx.RawRecord{{Field: "cmcd_br", Value: 1.0}}, Count: 1}, nil
}

func sample(session string, sec int) models.Sample {
	return models.Sample{Timestamp: t0.Add(time.Duration(sec) * time.Second), SessionID: session}
}

func withBuffer(s models.Sample, level int64) models.Sample {
	s.BufferLevelMs = models.Int64Ptr(level)
	return s
}

func withBitrate(s models.Sample, kbps float64) models.Sample {
	s.BitrateKbps = models.Float64Ptr(kbps)
	return s
}

func newService(t *testing.T, f *fakeFetcher, opts ...Option) *Service {
	t.Helper()
	svc, err := New(f, analysis.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func wantValidation(t *testing.T, err error, param string) {
	t.Helper()
	var ve *fetch.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError(%s)", err, param)
	}
	if ve.Param != param {
		t.Errorf("ValidationError.Param = %q, want %q", ve.Param, param)
	}
}

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, analysis.DefaultConfig()); err == nil {
		t.Error("nil fetcher accepted")
	}
	cfg := analysis.DefaultConfig()
	cfg.Buffer.SuddenDropRatio = 2
	if _, err := New(&fakeFetcher{}, cfg); err == nil {
		t.Error("invalid analysis config accepted")
	}
}

func TestSessionDetails_UnknownSessionIsNoData(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{samples: []models.Sample{withBuffer(sample("s1", 0), 900)}}
	svc := newService(t, f)
	counter := metrics.AnalysisOperations.WithLabelValues(OpSessionDetails, metrics.StatusNoData)
	before := testutil.ToFloat64(counter)

	details, err := svc.SessionDetails(context.Background(), SessionDetailsParams{SessionID: "nonexistent"})
	if err != nil {
		t.Fatalf("SessionDetails() error = %v", err)
	}
	if !details.NoData || details.SessionID != "nonexistent" || details.SampleCount != 0 {
		t.Errorf("details = %+v, want NoData", details)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("no_data operations recorded = %v, want 1", got)
	}
}

func TestSessionDetails_EmptySessionIsValidation(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "   "} {
		f := &fakeFetcher{}
		svc := newService(t, f)
		_, err := svc.SessionDetails(context.Background(), SessionDetailsParams{SessionID: id})
		wantValidation(t, err, "session_id")
		if f.calls() != 0 {
			t.Errorf("session_id %q reached the store", id)
		}
	}
}

func TestSessionDetails(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{samples: []models.Sample{
		withBuffer(sample("s1", 2), 400),
		withBuffer(sample("s2", 0), 100),
		withBuffer(sample("s1", 1), 800),
	}}
	svc := newService(t, f)

	details, err := svc.SessionDetails(context.Background(), SessionDetailsParams{SessionID: " s1 ", TimeRange: "-1h"})
	if err != nil {
		t.Fatal(err)
	}
	if details.NoData || details.SampleCount != 2 {
		t.Fatalf("details = %+v", details)
	}
	if !details.StartTime.Equal(t0.Add(time.Second)) {
		t.Errorf("StartTime = %v", details.StartTime)
	}
	if req := f.lastRequest(); req.SessionID != "s1" || req.TimeRange != "-1h" {
		t.Errorf("request = %+v", req)
	}
}

func TestBufferEvents(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{samples: []models.Sample{
		withBuffer(sample("s1", 0), 1000),
		withBuffer(sample("s1", 1), 200),
	}}
	svc := newService(t, f)

	res, err := svc.BufferEvents(context.Background(), BufferEventsParams{})
	if err != nil {
		t.Fatalf("BufferEvents() error = %v", err)
	}
	if res.Total != 2 || res.LowBufferCount != 1 || res.SuddenDropCount != 1 || res.ThresholdMs != 500 {
		t.Errorf("result = %+v", res)
	}
	for _, e := range res.Events {
		if !e.Timestamp.Equal(t0.Add(time.Second)) {
			t.Errorf("event %s at %v, want t=1", e.Kind, e.Timestamp)
		}
		if e.Kind == models.BufferEventSuddenDrop && (e.DropRatio == nil || *e.DropRatio != 0.8) {
			t.Errorf("drop ratio = %v, want 0.8", e.DropRatio)
		}
	}
	if req := f.lastRequest(); len(req.Fields) != 1 || req.Fields[0] != fetch.FieldBufferLevel {
		t.Errorf("projection = %v", req.Fields)
	}
}

func TestBufferEvents_ThresholdOverride(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{samples: []models.Sample{
		withBuffer(sample("s1", 0), 1000),
		withBuffer(sample("s1", 1), 200),
	}}
	svc := newService(t, f)

	res, err := svc.BufferEvents(context.Background(), BufferEventsParams{ThresholdMs: int64p(0)})
	if err != nil {
		t.Fatal(err)
	}
	// Only an empty buffer is low at threshold zero.
	if res.LowBufferCount != 0 || res.SuddenDropCount != 1 || res.ThresholdMs != 0 {
		t.Errorf("result = %+v", res)
	}

	_, err = svc.BufferEvents(context.Background(), BufferEventsParams{ThresholdMs: int64p(-1)})
	wantValidation(t, err, "threshold_ms")
}

func TestPlaybackErrors(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{samples: []models.Sample{
		withBitrate(sample("s1", 0), 4000),
		withBitrate(sample("s1", 1), 2000),
		withBuffer(sample("s2", 0), 500),
		withBuffer(sample("s2", 1), 0),
	}}
	svc := newService(t, f)

	res, err := svc.PlaybackErrors(context.Background(), PlaybackErrorsParams{})
	if err != nil {
		t.Fatalf("PlaybackErrors() error = %v", err)
	}
	if res.ByType[models.ErrorTypeBitrateDrop] != 1 || res.ByType[models.ErrorTypeBufferUnderrun] != 1 {
		t.Errorf("by_type = %v", res.ByType)
	}
	if res.Total != len(res.Errors) {
		t.Errorf("total = %d, errors = %d", res.Total, len(res.Errors))
	}
	for _, e := range res.Errors {
		switch e.ErrorType {
		case models.ErrorTypeBitrateDrop:
			if e.Severity != models.SeverityMedium {
				t.Errorf("bitrate_drop severity = %s", e.Severity)
			}
		case models.ErrorTypeBufferUnderrun:
			if e.Severity != models.SeverityHigh {
				t.Errorf("buffer_underrun severity = %s", e.Severity)
			}
		}
	}
}

func TestPlaybackErrors_EmptyWindow(t *testing.T) {
	t.Parallel()

	svc := newService(t, &fakeFetcher{})
	res, err := svc.PlaybackErrors(context.Background(), PlaybackErrorsParams{SessionID: "s9"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Errors == nil || res.Total != 0 || res.ByType == nil || res.BySeverity == nil {
		t.Errorf("empty result = %+v, want empty non-nil collections", res)
	}
}

func TestAverageBitrate(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{samples: []models.Sample{
		withBitrate(sample("s1", 0), 1000),
		withBitrate(sample("s1", 1), 3000),
		sample("s1", 2),
	}}
	svc := newService(t, f)

	stat, err := svc.AverageBitrate(context.Background(), BitrateParams{ContentID: " movie-1 "})
	if err != nil {
		t.Fatal(err)
	}
	if stat.NoData || *stat.AverageKbps != 2000 || stat.SampleCount != 2 {
		t.Errorf("stat = %+v", stat)
	}
	req := f.lastRequest()
	if req.ContentID != "movie-1" || len(req.Fields) != 1 || req.Fields[0] != fetch.FieldBitrate {
		t.Errorf("request = %+v", req)
	}

	empty, err := newService(t, &fakeFetcher{}).AverageBitrate(context.Background(), BitrateParams{})
	if err != nil || !empty.NoData || empty.AverageKbps != nil {
		t.Errorf("empty window = %+v, %v", empty, err)
	}
}

func TestListIDs(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{samples: []models.Sample{sample("b", 0), sample("a", 1), sample("b", 2), sample("c", 3)}}
	svc := newService(t, f)

	listing, err := svc.ListIDs(context.Background(), ListIDsParams{})
	if err != nil {
		t.Fatal(err)
	}
	if listing.Limit != analysis.DefaultListLimit || len(listing.SessionIDs) != 3 || listing.SessionIDs[0] != "b" {
		t.Errorf("listing = %+v", listing)
	}

	listing, err = svc.ListIDs(context.Background(), ListIDsParams{Limit: intp(2)})
	if err != nil {
		t.Fatal(err)
	}
	if !listing.SessionIDTruncated || len(listing.SessionIDs) != 2 {
		t.Errorf("limited listing = %+v", listing)
	}

	_, err = svc.ListIDs(context.Background(), ListIDsParams{Limit: intp(0)})
	wantValidation(t, err, "limit")
}

func TestEdgeStats(t *testing.T) {
	t.Parallel()

	a := withBuffer(sample("s1", 0), 100)
	a.EdgeLocation = "IAD89-C1"
	b := withBuffer(sample("s2", 1), 900)
	f := &fakeFetcher{samples: []models.Sample{a, b}}
	svc := newService(t, f)

	stats, err := svc.EdgeStats(context.Background(), EdgeStatsParams{})
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 || stats[0].EdgeLocation != "IAD89-C1" || stats[1].EdgeLocation != analysis.UnknownEdge {
		t.Fatalf("stats = %+v", stats)
	}
	if stats[0].LowBufferCount != 1 || stats[1].LowBufferCount != 0 {
		t.Errorf("low buffer counts = %d, %d", stats[0].LowBufferCount, stats[1].LowBufferCount)
	}
}

func TestInvalidTimeRangeNeverFetches(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	svc := newService(t, f)
	ctx := context.Background()

	_, err := svc.AverageBitrate(ctx, BitrateParams{TimeRange: "yesterday"})
	wantValidation(t, err, "time_range")
	_, err = svc.BufferEvents(ctx, BufferEventsParams{TimeRange: "-1h) |> drop("})
	wantValidation(t, err, "time_range")
	_, err = svc.EdgeStats(ctx, EdgeStatsParams{TimeRange: "+1h"})
	wantValidation(t, err, "time_range")

	if f.calls() != 0 {
		t.Errorf("invalid requests made %d fetches", f.calls())
	}
}

func TestUpstreamFailurePropagates(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp 10.0.0.1:8086: i/o timeout")
	f := &fakeFetcher{err: &fetch.UpstreamError{Backend: "fake", Op: "fetch", Err: cause}}
	svc := newService(t, f)

	_, err := svc.PlaybackErrors(context.Background(), PlaybackErrorsParams{})
	if !fetch.IsUpstreamUnavailable(err) || !errors.Is(err, cause) {
		t.Errorf("error = %v, want upstream unavailable wrapping the cause", err)
	}
}

func TestQuery(t *testing.T) {
	t.Parallel()

	svc := newService(t, &fakeFetcher{})
	_, err := svc.Query(context.Background(), QueryParams{Query: "buckets()"})
	wantValidation(t, err, "query")
	if svc.SupportsQuery() {
		t.Error("SupportsQuery() without a raw querier")
	}

	raw := &fakeRaw{}
	svc = newService(t, &fakeFetcher{}, WithRawQuerier(raw))
	res, err := svc.Query(context.Background(), QueryParams{Query: "  buckets()\n"})
	if err != nil {
		t.Fatal(err)
	}
	if raw.query != "buckets()" || res.Count != 1 {
		t.Errorf("query = %q, result = %+v", raw.query, res)
	}

	_, err = svc.Query(context.Background(), QueryParams{Query: " "})
	wantValidation(t, err, "query")
}
