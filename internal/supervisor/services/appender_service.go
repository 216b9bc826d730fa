// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package services

import (
	"context"

	"github.com/thejerf/suture/v4"

	"github.com/shamikatamazon/cmcd/internal/logging"
)

// Appender matches *ingest.Appender.
type Appender interface {
	Start(ctx context.Context) error
	Close() error
}

// AppenderService runs the batching appender's flush loop and performs the
// final flush on shutdown.
type AppenderService struct {
	appender Appender
	name     string
}

// NewAppenderService wraps appender.
func NewAppenderService(appender Appender) *AppenderService {
	return &AppenderService{
		appender: appender,
		name:     "sample-appender",
	}
}

// Serve implements suture.Service. A closed appender cannot be restarted.
func (s *AppenderService) Serve(ctx context.Context) error {
	if err := s.appender.Start(ctx); err != nil {
		logging.Error().Err(err).Msg("Sample appender failed to start")
		return suture.ErrDoNotRestart
	}

	<-ctx.Done()

	if err := s.appender.Close(); err != nil {
		logging.Warn().Err(err).Msg("Final sample flush incomplete")
	}
	return ctx.Err()
}

// String names the service in supervisor events.
func (s *AppenderService) String() string {
	return s.name
}
