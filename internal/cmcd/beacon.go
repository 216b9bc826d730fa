// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package cmcd

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shamikatamazon/cmcd/internal/models"
)

// CMCD keys mapped onto a Sample.
const (
	KeySessionID     = "sid"
	KeyContentID     = "cid"
	KeyBufferLength  = "bl"
	KeyBitrate       = "br"
	KeyTopBitrate    = "tb"
	KeyStartup       = "su"
	KeyThroughput    = "mtp"
	KeyDuration      = "d"
	KeyBufferStarved = "bs"
)

// MeasureTimeTaken names the per-line request duration measure.
const MeasureTimeTaken = "time_taken"

const measureNamePrefix = "cmcd_"

// typeOrder fixes which type wins when a key appears under more than one.
// Header data takes precedence over the query argument.
var typeOrder = []string{"request", "object", "status", "session", TypeQuery}

// Types returns the CMCD types present, in lookup order.
func (b *Beacon) Types() []string {
	known := make(map[string]bool, len(typeOrder))
	out := make([]string, 0, len(b.Data))
	for _, t := range typeOrder {
		known[t] = true
		if _, ok := b.Data[t]; ok {
			out = append(out, t)
		}
	}
	var extra []string
	for t := range b.Data {
		if !known[t] {
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Value returns the value of key from the first type that carries it.
func (b *Beacon) Value(key string) (string, bool) {
	for _, t := range b.Types() {
		if v, ok := b.Data[t][key]; ok {
			return v, true
		}
	}
	return "", false
}

// Sample maps the beacon onto a Sample. Values that are not numbers are
// left absent.
func (b *Beacon) Sample() models.Sample {
	s := models.Sample{
		Timestamp:    b.Timestamp,
		EdgeLocation: strings.TrimSpace(b.EdgeLocation),
	}
	if v, ok := b.Value(KeySessionID); ok {
		s.SessionID = strings.TrimSpace(v)
	}
	if v, ok := b.Value(KeyContentID); ok {
		s.ContentID = strings.TrimSpace(v)
	}

	s.BufferLevelMs = b.intValue(KeyBufferLength)
	s.BitrateKbps = b.floatValue(KeyBitrate)
	s.TopBitrateKbps = b.floatValue(KeyTopBitrate)
	s.StartupDelayMs = b.intValue(KeyStartup)
	s.ThroughputKbps = b.floatValue(KeyThroughput)
	s.SegmentDurationMs = b.intValue(KeyDuration)

	if v, ok := b.Value(KeyBufferStarved); ok {
		s.BufferStarved = v == "true" || v == "1"
	}

	s.Normalize()
	return s
}

func (b *Beacon) intValue(key string) *int64 {
	v, ok := b.Value(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return nil
		}
		n = int64(f + 0.5)
	}
	return models.Int64Ptr(n)
}

func (b *Beacon) floatValue(key string) *float64 {
	v, ok := b.Value(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return models.Float64Ptr(f)
}

// Measure is one flattened time-series record.
type Measure struct {
	Time       time.Time
	Name       string
	Value      int64
	Dimensions map[string]string
}

// Measures flattens the beacon: one time_taken record, then one record per
// integer CMCD value named cmcd_<key>, ordered by type then key.
// Every record carries the client_ip, edge_location and status dimensions;
// CMCD records add cmcd_type.
func (b *Beacon) Measures() []Measure {
	base := map[string]string{
		"client_ip":     b.ClientIP,
		"edge_location": b.EdgeLocation,
		"status":        b.Status,
	}
	out := []Measure{{
		Time:       b.Timestamp,
		Name:       MeasureTimeTaken,
		Value:      b.TimeTaken,
		Dimensions: base,
	}}

	for _, t := range b.Types() {
		kv := b.Data[t]
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if !isDigits(kv[k]) {
				continue
			}
			n, err := strconv.ParseInt(kv[k], 10, 64)
			if err != nil {
				continue
			}
			dims := make(map[string]string, len(base)+1)
			for dk, dv := range base {
				dims[dk] = dv
			}
			dims["cmcd_type"] = t
			out = append(out, Measure{
				Time:       b.Timestamp,
				Name:       measureNamePrefix + k,
				Value:      n,
				Dimensions: dims,
			})
		}
	}
	return out
}
