// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package cmcd

import (
	"testing"
	"time"
)

func beacon(data map[string]map[string]string) *Beacon {
	return &Beacon{
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ClientIP:     "203.0.113.7",
		Status:       "206",
		TimeTaken:    12,
		EdgeLocation: " LHR62-C2 ",
		Data:         data,
	}
}

func TestBeacon_Sample(t *testing.T) {
	t.Parallel()

	b := beacon(map[string]map[string]string{
		"request": {"bl": "2100", "mtp": "25400", "su": "1800"},
		"object":  {"br": "3200", "d": "4004", "tb": "6000"},
		"session": {"sid": " s-1 ", "cid": "movie-9"},
		"status":  {"bs": "true"},
	})
	s := b.Sample()

	if s.SessionID != "s-1" || s.ContentID != "movie-9" || s.EdgeLocation != "LHR62-C2" {
		t.Errorf("ids = %q %q %q", s.SessionID, s.ContentID, s.EdgeLocation)
	}
	if s.BufferLevelMs == nil || *s.BufferLevelMs != 2100 {
		t.Errorf("BufferLevelMs = %v", s.BufferLevelMs)
	}
	if s.BitrateKbps == nil || *s.BitrateKbps != 3200 {
		t.Errorf("BitrateKbps = %v", s.BitrateKbps)
	}
	if s.TopBitrateKbps == nil || *s.TopBitrateKbps != 6000 {
		t.Errorf("TopBitrateKbps = %v", s.TopBitrateKbps)
	}
	if s.StartupDelayMs == nil || *s.StartupDelayMs != 1800 {
		t.Errorf("StartupDelayMs = %v", s.StartupDelayMs)
	}
	if s.ThroughputKbps == nil || *s.ThroughputKbps != 25400 {
		t.Errorf("ThroughputKbps = %v", s.ThroughputKbps)
	}
	if s.SegmentDurationMs == nil || *s.SegmentDurationMs != 4004 {
		t.Errorf("SegmentDurationMs = %v", s.SegmentDurationMs)
	}
	if !s.BufferStarved {
		t.Error("BufferStarved = false")
	}
}

func TestBeacon_SampleDropsNonNumeric(t *testing.T) {
	t.Parallel()

	b := beacon(map[string]map[string]string{
		"request": {"su": "true", "bl": "-5", "br": "fast"},
	})
	s := b.Sample()
	if s.StartupDelayMs != nil {
		t.Errorf("flag su mapped to delay %v", *s.StartupDelayMs)
	}
	if s.BufferLevelMs != nil || s.BitrateKbps != nil {
		t.Errorf("invalid values kept: %+v", s)
	}
	if s.SessionID != "" {
		t.Errorf("SessionID = %q", s.SessionID)
	}
}

func TestBeacon_HeaderWinsOverQuery(t *testing.T) {
	t.Parallel()

	b := beacon(map[string]map[string]string{
		TypeQuery: {"bl": "100"},
		"request": {"bl": "900"},
	})
	if v, _ := b.Value("bl"); v != "900" {
		t.Errorf("Value(bl) = %q, want header value", v)
	}
}

func TestBeacon_Measures(t *testing.T) {
	t.Parallel()

	b := beacon(map[string]map[string]string{
		"request": {"bl": "2100", "su": "true", "mtp": "25400"},
		"session": {"sid": "abc"},
		"custom":  {"x": "7"},
	})
	got := b.Measures()

	wantNames := []string{"time_taken", "cmcd_bl", "cmcd_mtp", "cmcd_x"}
	if len(got) != len(wantNames) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(wantNames), got)
	}
	for i, m := range got {
		if m.Name != wantNames[i] {
			t.Errorf("measure %d = %s, want %s", i, m.Name, wantNames[i])
		}
	}

	if got[0].Value != 12 || got[0].Dimensions["status"] != "206" {
		t.Errorf("time_taken = %+v", got[0])
	}
	if _, ok := got[0].Dimensions["cmcd_type"]; ok {
		t.Error("time_taken carries cmcd_type")
	}
	if got[1].Value != 2100 || got[1].Dimensions["cmcd_type"] != "request" || got[1].Dimensions["client_ip"] != "203.0.113.7" {
		t.Errorf("cmcd_bl = %+v", got[1])
	}
	if got[3].Dimensions["cmcd_type"] != "custom" {
		t.Errorf("unknown type dimension = %v", got[3].Dimensions)
	}
}
