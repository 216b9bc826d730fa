// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// IngestLogger logs the beacon ingest pipeline with consistent field names.
type IngestLogger struct {
	logger zerolog.Logger
}

// NewIngestLogger returns an IngestLogger tagged component=ingest.
func NewIngestLogger() *IngestLogger {
	return &IngestLogger{logger: WithComponent("ingest")}
}

// NewIngestLoggerWithLogger wraps logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewIngestLoggerWithLogger(logger zerolog.Logger) *IngestLogger {
	return &IngestLogger{logger: logger}
}

func (l *IngestLogger) from(ctx context.Context) *zerolog.Logger {
	lg := l.logger
	if id := RequestIDFromContext(ctx); id != "" {
		lg = lg.With().Str("request_id", id).Logger()
	}
	return &lg
}

// LogLineRejected records a log line the parser could not use.
func (l *IngestLogger) LogLineRejected(ctx context.Context, lineNo int, err error) {
	l.from(ctx).Debug().Int("line", lineNo).Err(err).Msg("log line rejected")
}

// LogBatchParsed records the outcome of parsing one request body.
func (l *IngestLogger) LogBatchParsed(ctx context.Context, lines, samples, rejected int) {
	l.from(ctx).Info().
		Int("lines", lines).
		Int("samples", samples).
		Int("rejected", rejected).
		Msg("log batch parsed")
}

// LogSamplePublished records a sample published to the broker.
func (l *IngestLogger) LogSamplePublished(ctx context.Context, msgID, topic string) {
	l.from(ctx).Debug().Str("msg_id", msgID).Str("topic", topic).Msg("sample published")
}

// LogPublishFailed records a failed publish.
func (l *IngestLogger) LogPublishFailed(ctx context.Context, topic string, err error) {
	l.from(ctx).Error().Str("topic", topic).Err(err).Msg("sample publish failed")
}

// LogBatchFlush records a flush of buffered samples to sink.
func (l *IngestLogger) LogBatchFlush(sink string, count int, elapsed time.Duration, err error) {
	ev := l.logger.Debug()
	if err != nil {
		ev = l.logger.Error().Err(err)
	}
	ev.Str("sink", sink).Int("count", count).Dur("elapsed", elapsed).Msg("sample batch flushed")
}

// LogSubscriptionStarted records a subscriber attaching to topic.
func (l *IngestLogger) LogSubscriptionStarted(topic, durable string) {
	l.logger.Info().Str("topic", topic).Str("durable", durable).Msg("subscription started")
}
