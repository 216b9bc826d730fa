// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shamikatamazon/cmcd/internal/logging"
)

// ErrSubscriptionClosed is returned when the message channel closes without
// a shutdown request, so the supervisor resubscribes.
var ErrSubscriptionClosed = errors.New("subscription closed unexpectedly")

// Consumer matches *ingest.Consumer.
type Consumer interface {
	Run(ctx context.Context) error
	Close() error
}

// SubscriberService runs the JetStream sample consumer.
type SubscriberService struct {
	consumer Consumer
	name     string
}

// NewSubscriberService wraps consumer.
func NewSubscriberService(consumer Consumer) *SubscriberService {
	return &SubscriberService{
		consumer: consumer,
		name:     "sample-subscriber",
	}
}

// Serve implements suture.Service.
func (s *SubscriberService) Serve(ctx context.Context) error {
	err := s.consumer.Run(ctx)

	if ctx.Err() != nil {
		if cerr := s.consumer.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close sample subscriber")
		}
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("sample consumer: %w", err)
	}
	return ErrSubscriptionClosed
}

// String names the service in supervisor events.
func (s *SubscriberService) String() string {
	return s.name
}
