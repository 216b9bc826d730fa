// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package influx

import (
	"context"
	"fmt"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/models"
)

var _ fetch.SampleWriter = (*PointWriter)(nil)

// PointSink accepts line-protocol points. api.WriteAPIBlocking satisfies it.
type PointSink interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// PointWriter stores samples as one point per sample in the resolved bucket.
type PointWriter struct {
	sink   PointSink
	schema Schema
}

// NewPointWriter writes into the client's resolved bucket.
func NewPointWriter(ctx context.Context, c *Client) (*PointWriter, error) {
	if c.sdk == nil {
		return nil, fmt.Errorf("influx: point writer needs a connected client")
	}
	bucket, err := c.ResolveBucket(ctx)
	if err != nil {
		return nil, err
	}
	var sink api.WriteAPIBlocking = c.sdk.WriteAPIBlocking(c.cfg.Org, bucket)
	return &PointWriter{sink: sink, schema: c.schema}, nil
}

// NewPointWriterWithSink writes through an arbitrary sink.
func NewPointWriterWithSink(sink PointSink, schema Schema) *PointWriter {
	return &PointWriter{sink: sink, schema: schema}
}

// Name labels the sink in metrics.
func (w *PointWriter) Name() string {
	return BackendName
}

// WriteSamples writes samples in one blocking batch. Samples carrying no
// CMCD field are skipped.
func (w *PointWriter) WriteSamples(ctx context.Context, samples []models.Sample) error {
	points := make([]*write.Point, 0, len(samples))
	for i := range samples {
		if p := w.Point(&samples[i]); p != nil {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return nil
	}
	if err := w.sink.WritePoint(ctx, points...); err != nil {
		return upstream("write", err)
	}
	return nil
}

// Point converts s to a line-protocol point, or nil if s has no fields.
func (w *PointWriter) Point(s *models.Sample) *write.Point {
	fields := make(map[string]interface{})
	if s.BufferLevelMs != nil {
		fields[string(fetch.FieldBufferLevel)] = *s.BufferLevelMs
	}
	if s.BitrateKbps != nil {
		fields[string(fetch.FieldBitrate)] = *s.BitrateKbps
	}
	if s.TopBitrateKbps != nil {
		fields[string(fetch.FieldTopBitrate)] = *s.TopBitrateKbps
	}
	if s.StartupDelayMs != nil {
		fields[string(fetch.FieldStartup)] = *s.StartupDelayMs
	}
	if s.ThroughputKbps != nil {
		fields[string(fetch.FieldThroughput)] = *s.ThroughputKbps
	}
	if s.SegmentDurationMs != nil {
		fields[string(fetch.FieldSegmentDuration)] = *s.SegmentDurationMs
	}
	if s.BufferStarved {
		fields[string(fetch.FieldBufferStarved)] = true
	}
	if len(fields) == 0 {
		return nil
	}

	tags := make(map[string]string, 3)
	if s.SessionID != "" {
		tags[w.schema.SessionTag] = s.SessionID
	}
	if s.ContentID != "" {
		tags[w.schema.ContentTag] = s.ContentID
	}
	if s.EdgeLocation != "" {
		tags[w.schema.EdgeTag] = s.EdgeLocation
	}
	return write.NewPoint(w.schema.Measurement, tags, fields, s.Timestamp)
}
