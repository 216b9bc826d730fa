// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/shamikatamazon/cmcd/internal/breaker"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/metrics"
	"github.com/shamikatamazon/cmcd/internal/models"
)

// Forwarder accepts parsed samples from the pipeline. id identifies the
// source line and is stable across retries of the same line.
type Forwarder interface {
	Forward(ctx context.Context, id string, s models.Sample) error
}

const unknownEdge = "unknown"

// Topic returns the subject a sample from edge is published on.
func Topic(prefix, edge string) string {
	return prefix + "." + subjectToken(edge)
}

// WildcardTopic matches every edge under prefix.
func WildcardTopic(prefix string) string {
	return prefix + ".>"
}

// subjectToken makes s safe as one NATS subject token.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return unknownEdge
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Publisher publishes samples to JetStream through a circuit breaker.
type Publisher struct {
	publisher message.Publisher
	breaker   *breaker.Breaker
	prefix    string
	log       *logging.IngestLogger

	mu     sync.RWMutex
	closed bool
}

var _ Forwarder = (*Publisher)(nil)

// NewPublisher connects a watermill JetStream publisher. The stream must
// already exist; see StreamInitializer.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLoggerWithComponent("watermill"))
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS publisher disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS publisher reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return NewPublisherWithBackend(pub, cfg.SubjectPrefix), nil
}

// NewPublisherWithBackend wraps an existing watermill publisher.
func NewPublisherWithBackend(pub message.Publisher, prefix string) *Publisher {
	return &Publisher{
		publisher: pub,
		breaker:   breaker.New(breaker.DefaultConfig("ingest-publish")),
		prefix:    prefix,
		log:       logging.NewIngestLogger(),
	}
}

// Forward publishes s. It implements Forwarder.
func (p *Publisher) Forward(ctx context.Context, id string, s models.Sample) error {
	return p.PublishSample(ctx, id, s)
}

// PublishSample publishes s as JSON on the topic for its edge location. id
// becomes the Nats-Msg-Id, so a line replayed inside the stream's duplicate
// window is stored once.
func (p *Publisher) PublishSample(ctx context.Context, id string, s models.Sample) (err error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, id)
	msg.Metadata.Set("session_id", s.SessionID)
	msg.Metadata.Set("edge_location", s.EdgeLocation)

	topic := Topic(p.prefix, s.EdgeLocation)
	err = p.breaker.Do(func() error {
		return p.publisher.Publish(topic, msg)
	})
	metrics.RecordIngestPublish(err)
	if err != nil {
		p.log.LogPublishFailed(ctx, topic, err)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.log.LogSamplePublished(ctx, id, topic)
	return nil
}

// Close shuts the publisher down. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
