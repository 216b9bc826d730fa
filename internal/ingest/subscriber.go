// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/models"
)

// NewSubscriber creates a durable, queue-grouped JetStream subscriber bound
// to the existing sample stream.
func NewSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLoggerWithComponent("watermill"))
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS subscriber disconnected", err, nil)
			}
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverAll(),
	}
	// A wildcard topic cannot name a stream, so bind to the pre-created one.
	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    autoProvision,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}

// Consumer decodes sample messages into an Appender. A message is acked once
// the sample is buffered and nacked if the appender refuses it, so JetStream
// redelivers. Undecodable payloads are acked and dropped.
type Consumer struct {
	subscriber message.Subscriber
	topic      string
	appender   *Appender
	log        *logging.IngestLogger
}

// NewConsumer returns a consumer of topic feeding appender.
func NewConsumer(sub message.Subscriber, topic string, appender *Appender) *Consumer {
	return &Consumer{
		subscriber: sub,
		topic:      topic,
		appender:   appender,
		log:        logging.NewIngestLogger(),
	}
}

// Run consumes until ctx is canceled or the subscription closes.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}
	c.log.LogSubscriptionStarted(c.topic, "")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	s, err := DecodeSample(msg.Payload)
	if err != nil {
		logging.Warn().Str("message_uuid", msg.UUID).Err(err).Msg("Dropping undecodable sample message")
		msg.Ack()
		return
	}

	if err := c.appender.Append(ctx, s); err != nil {
		if errors.Is(err, ErrAppenderClosed) {
			logging.Debug().Str("message_uuid", msg.UUID).Msg("Appender closed, message left for redelivery")
		}
		msg.Nack()
		return
	}
	msg.Ack()
}

// Close closes the underlying subscriber.
func (c *Consumer) Close() error {
	return c.subscriber.Close()
}

// DecodeSample parses a published sample payload.
func DecodeSample(payload []byte) (models.Sample, error) {
	var s models.Sample
	if err := json.Unmarshal(payload, &s); err != nil {
		return models.Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	if s.Timestamp.IsZero() {
		return models.Sample{}, errors.New("decode sample: missing timestamp")
	}
	s.Normalize()
	return s, nil
}
