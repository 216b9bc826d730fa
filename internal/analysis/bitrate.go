// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"github.com/shamikatamazon/cmcd/internal/models"
)

// AggregateBitrate computes the bitrate statistic over every sample that has
// a defined bitrate. Samples without one are excluded, not counted as zero.
func AggregateBitrate(samples []models.Sample) models.BitrateStatistic {
	var acc bitrateAccumulator
	for i := range samples {
		acc.add(samples[i].BitrateKbps)
	}
	return acc.result("")
}

// AggregateBitrateBy groups samples by key and aggregates each group.
// Groups are returned in the order their key was first seen.
func AggregateBitrateBy(samples []models.Sample, key func(*models.Sample) string) []models.BitrateStatistic {
	index := make(map[string]int)
	var keys []string
	var accs []bitrateAccumulator

	for i := range samples {
		k := key(&samples[i])
		pos, ok := index[k]
		if !ok {
			pos = len(keys)
			index[k] = pos
			keys = append(keys, k)
			accs = append(accs, bitrateAccumulator{})
		}
		accs[pos].add(samples[i].BitrateKbps)
	}

	out := make([]models.BitrateStatistic, len(keys))
	for i, k := range keys {
		out[i] = accs[i].result(k)
	}
	return out
}

type bitrateAccumulator struct {
	count    int
	sum      float64
	min, max float64
}

func (a *bitrateAccumulator) add(v *float64) {
	if v == nil {
		return
	}
	if a.count == 0 || *v < a.min {
		a.min = *v
	}
	if a.count == 0 || *v > a.max {
		a.max = *v
	}
	a.sum += *v
	a.count++
}

func (a *bitrateAccumulator) result(group string) models.BitrateStatistic {
	if a.count == 0 {
		return models.BitrateStatistic{GroupKey: group, NoData: true}
	}

	avg := a.sum / float64(a.count)
	// Floating-point summation can land a hair outside [min, max] when all
	// values are equal; clamp so min <= avg <= max always holds.
	if avg < a.min {
		avg = a.min
	}
	if avg > a.max {
		avg = a.max
	}

	return models.BitrateStatistic{
		GroupKey:    group,
		AverageKbps: models.Float64Ptr(avg),
		MinKbps:     models.Float64Ptr(a.min),
		MaxKbps:     models.Float64Ptr(a.max),
		SampleCount: a.count,
	}
}
