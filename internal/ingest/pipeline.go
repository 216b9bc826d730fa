// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shamikatamazon/cmcd/internal/cmcd"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/metrics"
)

// MaxReportedErrors caps LineError entries in a Result.
const MaxReportedErrors = 10

// maxLineBytes bounds one log line; real-time log lines are a few KiB.
const maxLineBytes = 256 << 10

// LineError describes one rejected line.
type LineError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// Result reports the outcome of one ingest request.
type Result struct {
	Lines      int         `json:"lines"`
	Accepted   int         `json:"accepted"`
	Rejected   int         `json:"rejected"`
	NoSession  int         `json:"no_session"`
	Duplicates int         `json:"duplicates"`
	Errors     []LineError `json:"errors"`
}

func (r *Result) reject(line int, err error) {
	r.Rejected++
	if len(r.Errors) < MaxReportedErrors {
		r.Errors = append(r.Errors, LineError{Line: line, Error: err.Error()})
	}
}

// Deduplicator remembers beacon IDs. Seen records id and reports whether it
// was already present; Forget undoes a record.
type Deduplicator interface {
	Seen(id string) bool
	Forget(id string)
}

// Pipeline parses log lines and forwards the resulting samples.
type Pipeline struct {
	forwarder Forwarder
	dedup     Deduplicator
	log       *logging.IngestLogger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithDeduplicator drops lines whose beacon ID was already forwarded.
// CloudFront redelivers real-time log records, and a retried upload
// repeats whole batches.
func WithDeduplicator(d Deduplicator) PipelineOption {
	return func(p *Pipeline) {
		p.dedup = d
	}
}

// NewPipeline returns a pipeline forwarding to f: a Publisher when the
// broker is enabled, the Appender otherwise.
func NewPipeline(f Forwarder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{forwarder: f, log: logging.NewIngestLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest reads newline-separated log lines from r. Blank lines are skipped.
// Bad lines are counted and never abort the batch; the returned error is
// reserved for failures reading r or a canceled ctx.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader) (Result, error) {
	res := Result{Errors: []LineError{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return p.finish(ctx, res), err
		}
		res.Lines++
		p.ingestLine(ctx, &res, lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return p.finish(ctx, res), fmt.Errorf("read log lines: %w", err)
	}
	return p.finish(ctx, res), nil
}

func (p *Pipeline) ingestLine(ctx context.Context, res *Result, lineNo int, line string) {
	b, err := cmcd.ParseLogLine(line)
	if err != nil {
		p.log.LogLineRejected(ctx, lineNo, err)
		res.reject(lineNo, err)
		return
	}

	s := b.Sample()
	if s.SessionID == "" {
		res.NoSession++
		return
	}

	id := b.ID.String()
	if p.dedup != nil && p.dedup.Seen(id) {
		res.Duplicates++
		return
	}

	if err := p.forwarder.Forward(ctx, id, s); err != nil {
		if p.dedup != nil {
			p.dedup.Forget(id)
		}
		p.log.LogLineRejected(ctx, lineNo, err)
		res.reject(lineNo, err)
		return
	}
	res.Accepted++
}

func (p *Pipeline) finish(ctx context.Context, res Result) Result {
	metrics.RecordIngestLines(res.Accepted, res.Rejected, res.NoSession, res.Duplicates)
	p.log.LogBatchParsed(ctx, res.Lines, res.Accepted, res.Rejected)
	return res
}
