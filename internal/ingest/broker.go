// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package ingest

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/logging"
)

// Broker holds the NATS pieces of the ingest path: the optional embedded
// server, the management connection, the ensured stream and the publisher.
type Broker struct {
	cfg       config.NATSConfig
	url       string
	server    *EmbeddedServer
	conn      *natsgo.Conn
	streams   *StreamInitializer
	publisher *Publisher
}

// StartBroker starts (or connects to) NATS, ensures the sample stream and
// creates the publisher. On error everything already started is torn down.
func StartBroker(ctx context.Context, cfg config.NATSConfig) (b *Broker, err error) {
	b = &Broker{cfg: cfg}
	defer func() {
		if err != nil {
			b.Close(context.Background())
			b = nil
		}
	}()

	if cfg.EmbeddedServer {
		b.server, err = NewEmbeddedServer(ServerConfigFrom(cfg))
		if err != nil {
			return b, err
		}
		b.url = b.server.ClientURL()
		logging.Info().Str("url", b.url).Msg("Embedded NATS server started")
	} else {
		b.url = cfg.URL
		logging.Info().Str("url", logging.RedactURL(b.url)).Msg("Using external NATS server")
	}

	b.conn, err = natsgo.Connect(b.url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return b, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(b.conn)
	if err != nil {
		return b, fmt.Errorf("create JetStream context: %w", err)
	}
	b.streams, err = NewStreamInitializer(js, StreamConfigFrom(cfg))
	if err != nil {
		return b, err
	}
	stream, err := b.streams.EnsureStream(ctx)
	if err != nil {
		return b, err
	}
	info := stream.CachedInfo()
	logging.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Dur("max_age", info.Config.MaxAge).
		Msg("JetStream stream ready")

	b.publisher, err = NewPublisher(PublisherConfigFrom(cfg, b.url), nil)
	if err != nil {
		return b, err
	}
	return b, nil
}

// Publisher returns the sample publisher.
func (b *Broker) Publisher() *Publisher { return b.publisher }

// URL returns the client URL in use.
func (b *Broker) URL() string { return b.url }

// NewConsumer creates a durable consumer of every edge topic feeding appender.
func (b *Broker) NewConsumer(appender *Appender) (*Consumer, error) {
	sub, err := NewSubscriber(SubscriberConfigFrom(b.cfg, b.url), nil)
	if err != nil {
		return nil, err
	}
	return NewConsumer(sub, WildcardTopic(b.cfg.SubjectPrefix), appender), nil
}

// Healthy reports whether the connection is up and the stream reachable.
func (b *Broker) Healthy(ctx context.Context) bool {
	if b.conn == nil || !b.conn.IsConnected() {
		return false
	}
	return b.streams != nil && b.streams.IsHealthy(ctx)
}

// Close tears down in reverse start order.
func (b *Broker) Close(ctx context.Context) {
	if b.publisher != nil {
		if err := b.publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close NATS publisher")
		}
	}
	if b.conn != nil {
		if err := b.conn.Drain(); err != nil {
			b.conn.Close()
		}
	}
	if b.server != nil {
		if err := b.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Embedded NATS shutdown did not complete")
		}
	}
}

// Server returns the embedded server, or nil when using an external one.
func (b *Broker) Server() *EmbeddedServer { return b.server }
