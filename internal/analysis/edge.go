// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"github.com/shamikatamazon/cmcd/internal/models"
)

// UnknownEdge groups samples that carry no edge location.
const UnknownEdge = "unknown"

// EdgeStats summarizes samples per CDN edge location in first-seen order.
// LowBufferCount uses the same low-buffer test as the buffer detector.
func EdgeStats(samples []models.Sample, thresholdMs int64) []models.EdgeLocationStat {
	edgeOf := func(s *models.Sample) string {
		if s.EdgeLocation == "" {
			return UnknownEdge
		}
		return s.EdgeLocation
	}

	bitrates := AggregateBitrateBy(samples, edgeOf)
	out := make([]models.EdgeLocationStat, len(bitrates))
	index := make(map[string]int, len(bitrates))
	sessions := make([]map[string]struct{}, len(bitrates))
	for i, b := range bitrates {
		index[b.GroupKey] = i
		sessions[i] = make(map[string]struct{})
		out[i] = models.EdgeLocationStat{EdgeLocation: b.GroupKey, Bitrate: b}
	}

	for i := range samples {
		s := &samples[i]
		pos := index[edgeOf(s)]
		stat := &out[pos]
		stat.SampleCount++
		if s.SessionID != "" {
			sessions[pos][s.SessionID] = struct{}{}
		}
		if s.BufferLevelMs != nil && isLowBuffer(*s.BufferLevelMs, thresholdMs) {
			stat.LowBufferCount++
		}
	}

	for i := range out {
		out[i].SessionCount = len(sessions[i])
	}
	return out
}
