// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shamikatamazon/cmcd/internal/analysis"
	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/influx"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/metrics"
	"github.com/shamikatamazon/cmcd/internal/models"
)

// Operation names, shared by the tool and REST surfaces.
const (
	OpAverageBitrate = "average_bitrate"
	OpSessionDetails = "session_details"
	OpBufferEvents   = "buffer_events"
	OpPlaybackErrors = "playback_errors"
	OpListIDs        = "list_ids"
	OpEdgeStats      = "edge_stats"
	OpQuery          = "cmcd_query"
)

// RawQuerier runs caller-supplied Flux. Only the InfluxDB backend has one.
type RawQuerier interface {
	RawQuery(ctx context.Context, flux string) (influx.RawResult, error)
}

// Service runs the analysis operations against one store.
type Service struct {
	fetcher    fetch.Fetcher
	raw        RawQuerier
	config     analysis.Config
	classifier *analysis.Classifier
}

// Option configures a Service.
type Option func(*Service)

// WithRawQuerier enables cmcd_query.
func WithRawQuerier(q RawQuerier) Option {
	return func(s *Service) {
		s.raw = q
	}
}

// New validates cfg and returns a service reading from f.
func New(f fetch.Fetcher, cfg analysis.Config, opts ...Option) (*Service, error) {
	if f == nil {
		return nil, errors.New("service: fetcher is required")
	}
	classifier, err := analysis.NewClassifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	s := &Service{
		fetcher:    f,
		config:     cfg,
		classifier: classifier,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Backend names the store the service reads from.
func (s *Service) Backend() string {
	return s.fetcher.Name()
}

// SupportsQuery reports whether cmcd_query is available.
func (s *Service) SupportsQuery() bool {
	return s.raw != nil
}

// Ping checks the store when it supports it.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.fetcher.(fetch.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// AverageBitrate aggregates the defined bitrates in the window.
func (s *Service) AverageBitrate(ctx context.Context, p BitrateParams) (stat models.BitrateStatistic, err error) {
	defer func() { metrics.RecordOperation(OpAverageBitrate, stat.NoData, err) }()

	if err = validate(&p); err != nil {
		return models.BitrateStatistic{}, err
	}
	samples, err := s.fetch(ctx, OpAverageBitrate, fetch.Request{
		TimeRange: p.TimeRange,
		SessionID: p.SessionID,
		ContentID: p.ContentID,
		Fields:    []fetch.Field{fetch.FieldBitrate},
	})
	if err != nil {
		return models.BitrateStatistic{}, err
	}
	return analysis.AggregateBitrate(samples), nil
}

// SessionDetails returns the timeline summary of one session. A session with
// no samples in the window is reported with NoData set.
func (s *Service) SessionDetails(ctx context.Context, p SessionDetailsParams) (details models.SessionDetails, err error) {
	defer func() { metrics.RecordOperation(OpSessionDetails, details.NoData, err) }()

	if err = validate(&p); err != nil {
		return models.SessionDetails{}, err
	}
	samples, err := s.fetch(ctx, OpSessionDetails, fetch.Request{
		TimeRange: p.TimeRange,
		SessionID: p.SessionID,
	})
	if err != nil {
		return models.SessionDetails{}, err
	}

	tl, err := analysis.BuildTimeline(p.SessionID, samples)
	if err != nil {
		return models.SessionDetails{}, err
	}
	return analysis.SummarizeTimeline(tl), nil
}

// BufferEvents detects low-buffer and sudden-drop events. ThresholdMs
// overrides the configured threshold for this call only.
func (s *Service) BufferEvents(ctx context.Context, p BufferEventsParams) (res models.BufferEvents, err error) {
	defer func() { metrics.RecordOperation(OpBufferEvents, false, err) }()

	if err = validate(&p); err != nil {
		return models.BufferEvents{}, err
	}
	cfg := s.config.Buffer
	if p.ThresholdMs != nil {
		cfg.ThresholdMs = *p.ThresholdMs
	}
	detector, err := analysis.NewBufferDetector(cfg)
	if err != nil {
		return models.BufferEvents{}, err
	}

	samples, err := s.fetch(ctx, OpBufferEvents, fetch.Request{
		TimeRange: p.TimeRange,
		SessionID: p.SessionID,
		Fields:    []fetch.Field{fetch.FieldBufferLevel},
	})
	if err != nil {
		return models.BufferEvents{}, err
	}

	events := detector.Detect(samples)
	res = models.BufferEvents{
		Events:      events,
		Total:       len(events),
		ThresholdMs: cfg.ThresholdMs,
	}
	for _, e := range events {
		switch e.Kind {
		case models.BufferEventLowBuffer:
			res.LowBufferCount++
		case models.BufferEventSuddenDrop:
			res.SuddenDropCount++
		}
	}
	metrics.RecordDetected(string(models.BufferEventLowBuffer), res.LowBufferCount)
	metrics.RecordDetected(string(models.BufferEventSuddenDrop), res.SuddenDropCount)
	return res, nil
}

// PlaybackErrors runs every enabled rule over the window.
func (s *Service) PlaybackErrors(ctx context.Context, p PlaybackErrorsParams) (res models.PlaybackErrors, err error) {
	defer func() { metrics.RecordOperation(OpPlaybackErrors, false, err) }()

	if err = validate(&p); err != nil {
		return models.PlaybackErrors{}, err
	}
	samples, err := s.fetch(ctx, OpPlaybackErrors, fetch.Request{
		TimeRange: p.TimeRange,
		SessionID: p.SessionID,
		Fields:    []fetch.Field{fetch.FieldBufferLevel, fetch.FieldBitrate, fetch.FieldStartup},
	})
	if err != nil {
		return models.PlaybackErrors{}, err
	}

	found := s.classifier.Classify(samples)
	res = models.PlaybackErrors{
		Errors:     found,
		Total:      len(found),
		ByType:     make(map[models.ErrorType]int),
		BySeverity: make(map[models.Severity]int),
	}
	for _, e := range found {
		res.ByType[e.ErrorType]++
		res.BySeverity[e.Severity]++
	}
	for errType, n := range res.ByType {
		metrics.RecordDetected(string(errType), n)
	}
	return res, nil
}

// ListIDs enumerates the sessions and contents seen in the window.
func (s *Service) ListIDs(ctx context.Context, p ListIDsParams) (listing models.IDListing, err error) {
	defer func() { metrics.RecordOperation(OpListIDs, false, err) }()

	if err = validate(&p); err != nil {
		return models.IDListing{}, err
	}
	limit := analysis.DefaultListLimit
	if p.Limit != nil {
		limit = *p.Limit
	}

	samples, err := s.fetch(ctx, OpListIDs, fetch.Request{TimeRange: p.TimeRange})
	if err != nil {
		return models.IDListing{}, err
	}
	return analysis.ListIDs(samples, limit)
}

// EdgeStats summarizes each edge location seen in the window.
func (s *Service) EdgeStats(ctx context.Context, p EdgeStatsParams) (stats []models.EdgeLocationStat, err error) {
	defer func() { metrics.RecordOperation(OpEdgeStats, false, err) }()

	if err = validate(&p); err != nil {
		return nil, err
	}
	threshold := s.config.Buffer.ThresholdMs
	if p.ThresholdMs != nil {
		threshold = *p.ThresholdMs
	}

	samples, err := s.fetch(ctx, OpEdgeStats, fetch.Request{
		TimeRange: p.TimeRange,
		Fields:    []fetch.Field{fetch.FieldBufferLevel, fetch.FieldBitrate},
	})
	if err != nil {
		return nil, err
	}
	return analysis.EdgeStats(samples, threshold), nil
}

// Query runs caller-supplied Flux against InfluxDB.
func (s *Service) Query(ctx context.Context, p QueryParams) (res influx.RawResult, err error) {
	defer func() { metrics.RecordOperation(OpQuery, false, err) }()

	if s.raw == nil {
		return influx.RawResult{}, fetch.NewValidationError("query", "raw queries need the influxdb backend, this server uses %s", s.fetcher.Name())
	}
	if err = validate(&p); err != nil {
		return influx.RawResult{}, err
	}
	return s.raw.RawQuery(ctx, p.Query)
}

func (s *Service) fetch(ctx context.Context, op string, req fetch.Request) ([]models.Sample, error) {
	samples, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("operation", op).
			Str("backend", s.fetcher.Name()).
			Str("time_range", req.TimeRange).
			Msg("Sample fetch failed")
		return nil, err
	}
	logging.Ctx(ctx).Debug().
		Str("operation", op).
		Int("samples", len(samples)).
		Msg("Samples fetched")
	return samples, nil
}
