// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"testing"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/models"
)

func TestBuildTimeline(t *testing.T) {
	t.Parallel()

	samples := []models.Sample{
		{Timestamp: at(3), SessionID: "s1", ContentID: "first"},
		{Timestamp: at(1), SessionID: "s2"},
		{Timestamp: at(1), SessionID: "s1", ContentID: "second"},
		{Timestamp: at(3), SessionID: "s1", ContentID: "third"},
	}

	tl, err := BuildTimeline(" s1 ", samples)
	if err != nil {
		t.Fatalf("BuildTimeline: %v", err)
	}
	if tl.SessionID != "s1" {
		t.Errorf("SessionID = %q, want trimmed s1", tl.SessionID)
	}

	want := []string{"second", "first", "third"}
	if len(tl.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(tl.Samples), len(want))
	}
	for i, w := range want {
		if tl.Samples[i].ContentID != w {
			t.Errorf("Samples[%d] = %q, want %q (stable order)", i, tl.Samples[i].ContentID, w)
		}
	}
}

func TestBuildTimeline_RequiresSessionID(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "   "} {
		_, err := BuildTimeline(id, nil)
		if !fetch.IsValidation(err) {
			t.Errorf("BuildTimeline(%q) error = %v, want ValidationError", id, err)
		}
	}
}

func TestSummarizeTimeline_NoData(t *testing.T) {
	t.Parallel()

	tl, err := BuildTimeline("nonexistent", nil)
	if err != nil {
		t.Fatalf("BuildTimeline: %v", err)
	}
	details := SummarizeTimeline(tl)

	if !details.NoData {
		t.Error("NoData = false, want true")
	}
	if details.StartTime != nil || details.SampleCount != 0 {
		t.Errorf("empty details carry values: %+v", details)
	}
	for _, cat := range []string{CategoryBuffer, CategoryBitrate, CategoryTiming, CategoryNetwork} {
		if _, ok := details.Metrics[cat]; !ok {
			t.Errorf("category %q missing", cat)
		}
	}
}

func TestSummarizeTimeline_Categories(t *testing.T) {
	t.Parallel()

	tl, err := BuildTimeline("s1", []models.Sample{
		{
			Timestamp:      at(0),
			SessionID:      "s1",
			ContentID:      "movie",
			EdgeLocation:   "IAD89-C1",
			BufferLevelMs:  models.Int64Ptr(1200),
			BitrateKbps:    models.Float64Ptr(3000),
			TopBitrateKbps: models.Float64Ptr(6000),
			StartupDelayMs: models.Int64Ptr(900),
		},
		{
			Timestamp:      at(4),
			SessionID:      "s1",
			ContentID:      "movie",
			EdgeLocation:   "IAD89-C2",
			BufferLevelMs:  models.Int64Ptr(0),
			BufferStarved:  true,
			ThroughputKbps: models.Float64Ptr(12000),
		},
	})
	if err != nil {
		t.Fatalf("BuildTimeline: %v", err)
	}

	d := SummarizeTimeline(tl)
	if d.NoData || d.SampleCount != 2 {
		t.Fatalf("details = %+v", d)
	}
	if !d.StartTime.Equal(at(0)) || !d.EndTime.Equal(at(4)) {
		t.Errorf("range = %v..%v", d.StartTime, d.EndTime)
	}
	if len(d.ContentIDs) != 1 || len(d.EdgeLocations) != 2 {
		t.Errorf("content %v edges %v", d.ContentIDs, d.EdgeLocations)
	}

	checks := []struct {
		category string
		series   string
		points   int
	}{
		{CategoryBuffer, "buffer_level_ms", 2},
		{CategoryBuffer, "buffer_starved", 1},
		{CategoryBitrate, "bitrate_kbps", 1},
		{CategoryBitrate, "top_bitrate_kbps", 1},
		{CategoryTiming, "startup_delay_ms", 1},
		{CategoryNetwork, "throughput_kbps", 1},
		{CategoryNetwork, "edge_location", 2},
	}
	for _, c := range checks {
		if got := len(d.Metrics[c.category][c.series]); got != c.points {
			t.Errorf("%s/%s has %d points, want %d", c.category, c.series, got, c.points)
		}
	}
}
