// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package influx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/models"
)

// Row is one Flux record reduced to the columns the service reads.
type Row struct {
	Time        time.Time
	Measurement string
	Field       string
	Value       interface{}

	// Values holds every column of the record, tags included.
	Values map[string]interface{}
}

func (r Row) tag(name string) string {
	v, ok := r.Values[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

type sampleKey struct {
	ts      int64
	session string
	content string
	edge    string
}

// Pivot folds field-per-row records into one Sample per
// (time, session, content, edge), in first-arrival order. Values that are
// not numeric, negative, NaN or infinite are dropped.
func Pivot(rows []Row, schema Schema) []models.Sample {
	index := make(map[sampleKey]int)
	samples := make([]models.Sample, 0)

	for _, row := range rows {
		key := sampleKey{
			ts:      row.Time.UnixNano(),
			session: strings.TrimSpace(row.tag(schema.SessionTag)),
			content: strings.TrimSpace(row.tag(schema.ContentTag)),
			edge:    strings.TrimSpace(row.tag(schema.EdgeTag)),
		}
		i, ok := index[key]
		if !ok {
			i = len(samples)
			index[key] = i
			samples = append(samples, models.Sample{
				Timestamp:    row.Time,
				SessionID:    key.session,
				ContentID:    key.content,
				EdgeLocation: key.edge,
			})
		}
		applyField(&samples[i], fetch.Field(row.Field), row.Value)
	}

	for i := range samples {
		samples[i].Normalize()
	}
	return samples
}

func applyField(s *models.Sample, field fetch.Field, value interface{}) {
	if field == fetch.FieldBufferStarved {
		s.BufferStarved = s.BufferStarved || truthy(value)
		return
	}

	f, ok := toFloat(value)
	if !ok {
		return
	}
	switch field {
	case fetch.FieldBufferLevel:
		s.BufferLevelMs = toMillis(f)
	case fetch.FieldBitrate:
		s.BitrateKbps = models.Float64Ptr(f)
	case fetch.FieldTopBitrate:
		s.TopBitrateKbps = models.Float64Ptr(f)
	case fetch.FieldStartup:
		s.StartupDelayMs = toMillis(f)
	case fetch.FieldThroughput:
		s.ThroughputKbps = models.Float64Ptr(f)
	case fetch.FieldSegmentDuration:
		s.SegmentDurationMs = toMillis(f)
	}
}

// toMillis rounds f, rejecting values outside the int64 range.
func toMillis(f float64) *int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt64/2 {
		return nil
	}
	return models.Int64Ptr(int64(math.Round(f)))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	default:
		f, ok := toFloat(v)
		return ok && f != 0
	}
}
