// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package influx

import (
	"context"
	"strings"
	"time"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/metrics"
)

// MaxRawQueryBytes bounds caller-supplied Flux.
const MaxRawQueryBytes = 64 << 10

// RawRecord is one record of a caller-supplied query.
type RawRecord struct {
	Measurement string                 `json:"measurement,omitempty"`
	Field       string                 `json:"field,omitempty"`
	Value       interface{}            `json:"value"`
	Time        *time.Time             `json:"time,omitempty"`
	Tags        map[string]string      `json:"tags,omitempty"`
	RawValues   map[string]interface{} `json:"raw_values"`
}

// RawResult is the answer to RawQuery.
type RawResult struct {
	Records []RawRecord `json:"records"`
	Count   int         `json:"count"`
}

// RawQuery runs caller-supplied Flux and returns every record. Columns that
// are neither reserved (leading underscore) nor result/table are reported as
// tags.
func (c *Client) RawQuery(ctx context.Context, flux string) (res RawResult, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordFetch(BackendName, "raw_query", time.Since(start), res.Count, err)
	}()

	flux = strings.TrimSpace(flux)
	if flux == "" {
		return RawResult{}, fetch.NewValidationError("query", "is required")
	}
	if len(flux) > MaxRawQueryBytes {
		return RawResult{}, fetch.NewValidationError("query", "exceeds %d bytes", MaxRawQueryBytes)
	}

	rows, err := c.query(ctx, "raw_query", flux)
	if err != nil {
		return RawResult{}, err
	}

	records := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRawRecord(row))
	}
	return RawResult{Records: records, Count: len(records)}, nil
}

func toRawRecord(row Row) RawRecord {
	rec := RawRecord{
		Measurement: row.Measurement,
		Field:       row.Field,
		Value:       row.Value,
		RawValues:   row.Values,
	}
	if rec.RawValues == nil {
		rec.RawValues = map[string]interface{}{}
	}
	if !row.Time.IsZero() {
		t := row.Time
		rec.Time = &t
	}
	for k, v := range row.Values {
		if strings.HasPrefix(k, "_") || k == "result" || k == "table" {
			continue
		}
		if s, ok := v.(string); ok {
			if rec.Tags == nil {
				rec.Tags = make(map[string]string)
			}
			rec.Tags[k] = s
		}
	}
	return rec
}
