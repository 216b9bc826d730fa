// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shamikatamazon/cmcd/internal/logging"
)

// defaultHealthInterval is how often BrokerService probes the broker.
const defaultHealthInterval = 30 * time.Second

// Broker matches *ingest.Broker.
type Broker interface {
	Healthy(ctx context.Context) bool
	Close(ctx context.Context)
}

// BrokerService owns the NATS broker (embedded server, connection and
// publisher) for the life of the tree. It watches health and closes the
// broker on shutdown; the broker itself is started before the tree so the
// ingest pipeline can publish through it.
type BrokerService struct {
	broker          Broker
	healthInterval  time.Duration
	shutdownTimeout time.Duration
	healthy         atomic.Bool
	name            string
}

// NewBrokerService wraps broker.
func NewBrokerService(broker Broker, healthInterval, shutdownTimeout time.Duration) *BrokerService {
	if healthInterval <= 0 {
		healthInterval = defaultHealthInterval
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	s := &BrokerService{
		broker:          broker,
		healthInterval:  healthInterval,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-broker",
	}
	s.healthy.Store(true)
	return s
}

// Serve implements suture.Service. It only returns on shutdown: a broker
// outage is logged, and the NATS client reconnects on its own.
func (s *BrokerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			s.broker.Close(shutdownCtx)
			return ctx.Err()

		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *BrokerService) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, s.healthInterval/2)
	defer cancel()

	ok := s.broker.Healthy(probeCtx)
	if was := s.healthy.Swap(ok); was != ok {
		if ok {
			logging.Info().Msg("NATS broker healthy again")
		} else {
			logging.Warn().Msg("NATS broker unhealthy, publishes will fail until it recovers")
		}
	}
}

// Healthy reports the last probe result.
func (s *BrokerService) Healthy() bool {
	return s.healthy.Load()
}

// String names the service in supervisor events.
func (s *BrokerService) String() string {
	return s.name
}
