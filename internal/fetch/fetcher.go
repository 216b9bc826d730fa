// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Package fetch defines the contract between the analyzers and the stores
// that hold CMCD telemetry.
//
// A Fetcher resolves a relative time range and optional session/content
// filters into an ordered slice of validated samples. It returns an empty
// slice, not an error, when nothing matches, and an *UpstreamError when the
// store is unreachable or rejects the credentials. Fetchers may retry or
// trip a breaker internally; callers never retry.
package fetch

import (
	"context"
	"strings"

	"github.com/shamikatamazon/cmcd/internal/models"
)

// Field names a CMCD measurement field as stored in the time-series bucket.
type Field string

const (
	FieldBufferLevel     Field = "cmcd_bl"
	FieldBitrate         Field = "cmcd_br"
	FieldBufferStarved   Field = "cmcd_bs"
	FieldSegmentDuration Field = "cmcd_d"
	FieldThroughput      Field = "cmcd_mtp"
	FieldStartup         Field = "cmcd_su"
	FieldTopBitrate      Field = "cmcd_tb"
)

// AllFields lists every field the analyzers understand.
var AllFields = []Field{
	FieldBufferLevel,
	FieldBitrate,
	FieldBufferStarved,
	FieldSegmentDuration,
	FieldThroughput,
	FieldStartup,
	FieldTopBitrate,
}

// Request scopes a fetch. Fields is an optional projection; empty means all.
type Request struct {
	TimeRange string
	SessionID string
	ContentID string
	Fields    []Field
}

// Resolve validates the request and returns its parsed time range.
func (r *Request) Resolve() (TimeRange, error) {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.ContentID = strings.TrimSpace(r.ContentID)
	return ParseTimeRange(r.TimeRange)
}

// Fetcher retrieves samples from a telemetry store.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]models.Sample, error)
	Name() string
}

// Pinger is implemented by fetchers that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SampleWriter persists samples. Implemented by the stores used as ingest sinks.
type SampleWriter interface {
	WriteSamples(ctx context.Context, samples []models.Sample) error
}
