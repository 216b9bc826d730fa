// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package influx

import (
	"strings"

	"github.com/shamikatamazon/cmcd/internal/fetch"
)

// Schema names the measurement and tags samples are stored under.
type Schema struct {
	Measurement string
	SessionTag  string
	ContentTag  string
	EdgeTag     string
}

// DefaultSchema matches the CloudFront real-time log Lambda output.
func DefaultSchema() Schema {
	return Schema{
		Measurement: "cloudfront_logs",
		SessionTag:  "session_id",
		ContentTag:  "content_id",
		EdgeTag:     "edge_location",
	}
}

var fluxEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`${`, `\${`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Quote returns s as a Flux string literal.
func Quote(s string) string {
	return `"` + fluxEscaper.Replace(s) + `"`
}

// FluxBuilder assembles a pipe-forward Flux query. Every caller-supplied
// string passes through Quote; the range start must be a parsed TimeRange.
type FluxBuilder struct {
	b strings.Builder
}

// From starts a query on bucket.
func From(bucket string) *FluxBuilder {
	fb := &FluxBuilder{}
	fb.b.WriteString("from(bucket: ")
	fb.b.WriteString(Quote(bucket))
	fb.b.WriteString(")")
	return fb
}

func (fb *FluxBuilder) pipe(stage string) *FluxBuilder {
	fb.b.WriteString("\n  |> ")
	fb.b.WriteString(stage)
	return fb
}

// Range restricts the query to a validated relative window.
func (fb *FluxBuilder) Range(tr fetch.TimeRange) *FluxBuilder {
	return fb.pipe("range(start: " + tr.Raw + ")")
}

// Equal keeps rows whose column equals value.
func (fb *FluxBuilder) Equal(column, value string) *FluxBuilder {
	return fb.pipe("filter(fn: (r) => r[" + Quote(column) + "] == " + Quote(value) + ")")
}

// In keeps rows whose column equals any of values. An empty list is a no-op.
func (fb *FluxBuilder) In(column string, values []string) *FluxBuilder {
	if len(values) == 0 {
		return fb
	}
	col := "r[" + Quote(column) + "]"
	terms := make([]string, len(values))
	for i, v := range values {
		terms[i] = col + " == " + Quote(v)
	}
	return fb.pipe("filter(fn: (r) => " + strings.Join(terms, " or ") + ")")
}

// Group removes grouping so rows come back as a single table.
func (fb *FluxBuilder) Group() *FluxBuilder {
	return fb.pipe("group()")
}

// SortByTime orders rows by _time ascending.
func (fb *FluxBuilder) SortByTime() *FluxBuilder {
	return fb.pipe(`sort(columns: ["_time"])`)
}

// String returns the query text.
func (fb *FluxBuilder) String() string {
	return fb.b.String()
}

// SampleQuery builds the fetch query for req against bucket.
func SampleQuery(bucket string, tr fetch.TimeRange, req fetch.Request, schema Schema) string {
	fields := req.Fields
	if len(fields) == 0 {
		fields = fetch.AllFields
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}

	fb := From(bucket).
		Range(tr).
		Equal("_measurement", schema.Measurement).
		In("_field", names)
	if req.SessionID != "" {
		fb.Equal(schema.SessionTag, req.SessionID)
	}
	if req.ContentID != "" {
		fb.Equal(schema.ContentTag, req.ContentID)
	}
	return fb.Group().SortByTime().String()
}
