// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shamikatamazon/cmcd/internal/cache"
	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/ingest"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/supervisor"
	"github.com/shamikatamazon/cmcd/internal/supervisor/services"
)

const brokerHealthInterval = 30 * time.Second

// startIngest builds the ingest path and registers its services with tree.
// With NATS enabled, parsed samples are published to JetStream and durable
// subscribers feed the appender; otherwise the pipeline appends directly.
func startIngest(ctx context.Context, cfg *config.Config, st *stores, tree *supervisor.SupervisorTree) (*ingest.Pipeline, error) {
	sinks, err := st.Sinks(ctx)
	if err != nil {
		return nil, err
	}
	appender, err := ingest.NewAppender(ingest.AppenderConfigFrom(cfg.Ingest), sinks...)
	if err != nil {
		return nil, fmt.Errorf("create appender: %w", err)
	}
	tree.AddStoreService(services.NewAppenderService(appender))

	var opts []ingest.PipelineOption
	if cfg.Ingest.DedupWindow > 0 {
		opts = append(opts, ingest.WithDeduplicator(cache.NewLRU(cfg.Ingest.DedupCapacity, cfg.Ingest.DedupWindow)))
	}

	if !cfg.NATS.Enabled {
		logging.Info().Strs("sinks", cfg.Ingest.Sinks).Dur("dedup_window", cfg.Ingest.DedupWindow).Msg("Ingest enabled without broker")
		return ingest.NewPipeline(appender, opts...), nil
	}

	broker, err := ingest.StartBroker(ctx, cfg.NATS)
	if err != nil {
		return nil, fmt.Errorf("start nats broker: %w", err)
	}
	tree.AddIngestService(services.NewBrokerService(broker, brokerHealthInterval, 10*time.Second))

	count := cfg.NATS.SubscribersCount
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		consumer, err := broker.NewConsumer(appender)
		if err != nil {
			broker.Close(ctx)
			return nil, fmt.Errorf("create consumer %d: %w", i, err)
		}
		tree.AddIngestService(services.NewSubscriberService(consumer))
	}

	logging.Info().
		Str("nats_url", broker.URL()).
		Bool("embedded", broker.Server() != nil).
		Int("subscribers", count).
		Strs("sinks", cfg.Ingest.Sinks).
		Dur("dedup_window", cfg.Ingest.DedupWindow).
		Msg("Ingest enabled with NATS JetStream")
	return ingest.NewPipeline(broker.Publisher(), opts...), nil
}
