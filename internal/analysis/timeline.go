// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"sort"
	"strings"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/models"
)

// Series categories used by SummarizeTimeline.
const (
	CategoryBuffer  = "buffer"
	CategoryBitrate = "bitrate"
	CategoryTiming  = "timing"
	CategoryNetwork = "network"
)

// BuildTimeline restricts samples to sessionID and orders them by timestamp.
// The sort is stable so samples sharing a timestamp keep their fetch order.
// An empty result is a valid "no data in range" outcome, not an error.
func BuildTimeline(sessionID string, samples []models.Sample) (models.SessionTimeline, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return models.SessionTimeline{}, fetch.NewValidationError("session_id", "is required")
	}

	matched := make([]models.Sample, 0, len(samples))
	for i := range samples {
		if samples[i].SessionID == sessionID {
			matched = append(matched, samples[i])
		}
	}
	sortByTime(matched)

	return models.SessionTimeline{SessionID: sessionID, Samples: matched}, nil
}

// SummarizeTimeline groups a timeline's values into buffer, bitrate, timing
// and network series for presentation.
func SummarizeTimeline(tl models.SessionTimeline) models.SessionDetails {
	details := models.SessionDetails{
		SessionID: tl.SessionID,
		Metrics: map[string]map[string][]models.SeriesPoint{
			CategoryBuffer:  {},
			CategoryBitrate: {},
			CategoryTiming:  {},
			CategoryNetwork: {},
		},
	}
	if tl.Empty() {
		details.NoData = true
		return details
	}

	first := tl.Samples[0].Timestamp
	last := tl.Samples[len(tl.Samples)-1].Timestamp
	details.StartTime = &first
	details.EndTime = &last
	details.SampleCount = len(tl.Samples)

	contentSeen := make(map[string]struct{})
	edgeSeen := make(map[string]struct{})

	for i := range tl.Samples {
		s := &tl.Samples[i]

		if s.ContentID != "" {
			if _, ok := contentSeen[s.ContentID]; !ok {
				contentSeen[s.ContentID] = struct{}{}
				details.ContentIDs = append(details.ContentIDs, s.ContentID)
			}
		}
		if s.EdgeLocation != "" {
			if _, ok := edgeSeen[s.EdgeLocation]; !ok {
				edgeSeen[s.EdgeLocation] = struct{}{}
				details.EdgeLocations = append(details.EdgeLocations, s.EdgeLocation)
			}
			appendPoint(details.Metrics[CategoryNetwork], "edge_location", s, s.EdgeLocation)
		}

		if s.BufferLevelMs != nil {
			appendPoint(details.Metrics[CategoryBuffer], "buffer_level_ms", s, *s.BufferLevelMs)
		}
		if s.BufferStarved {
			appendPoint(details.Metrics[CategoryBuffer], "buffer_starved", s, true)
		}
		if s.BitrateKbps != nil {
			appendPoint(details.Metrics[CategoryBitrate], "bitrate_kbps", s, *s.BitrateKbps)
		}
		if s.TopBitrateKbps != nil {
			appendPoint(details.Metrics[CategoryBitrate], "top_bitrate_kbps", s, *s.TopBitrateKbps)
		}
		if s.StartupDelayMs != nil {
			appendPoint(details.Metrics[CategoryTiming], "startup_delay_ms", s, *s.StartupDelayMs)
		}
		if s.SegmentDurationMs != nil {
			appendPoint(details.Metrics[CategoryTiming], "segment_duration_ms", s, *s.SegmentDurationMs)
		}
		if s.ThroughputKbps != nil {
			appendPoint(details.Metrics[CategoryNetwork], "throughput_kbps", s, *s.ThroughputKbps)
		}
	}

	return details
}

func appendPoint(category map[string][]models.SeriesPoint, name string, s *models.Sample, v interface{}) {
	category[name] = append(category[name], models.SeriesPoint{Time: s.Timestamp, Value: v})
}

// sortByTime stable-sorts samples in place by timestamp.
func sortByTime(samples []models.Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
}

// orderedCopy returns a timestamp-ordered copy, leaving the caller's slice untouched.
func orderedCopy(samples []models.Sample) []models.Sample {
	out := make([]models.Sample, len(samples))
	copy(out, samples)
	sortByTime(out)
	return out
}
