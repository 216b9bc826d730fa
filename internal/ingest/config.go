// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package ingest

import (
	"time"

	"github.com/shamikatamazon/cmcd/internal/config"
)

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// ServerConfigFrom derives the embedded server settings from cfg.
func ServerConfigFrom(cfg config.NATSConfig) ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          cfg.StoreDir,
		JetStreamMaxMem:   cfg.MaxMemory,
		JetStreamMaxStore: cfg.MaxStore,
	}
}

// StreamConfig defines the sample stream.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	DuplicateWindow time.Duration
	Replicas        int
}

// StreamConfigFrom derives the stream settings from cfg.
func StreamConfigFrom(cfg config.NATSConfig) StreamConfig {
	return StreamConfig{
		Name:            cfg.StreamName,
		Subjects:        []string{WildcardTopic(cfg.SubjectPrefix)},
		MaxAge:          time.Duration(cfg.StreamRetentionDays) * 24 * time.Hour,
		MaxBytes:        cfg.MaxStore / 2,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// PublisherConfig holds publisher connection settings.
type PublisherConfig struct {
	URL             string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int
}

// PublisherConfigFrom derives publisher settings for url.
func PublisherConfigFrom(cfg config.NATSConfig, url string) PublisherConfig {
	return PublisherConfig{
		URL:             url,
		SubjectPrefix:   cfg.SubjectPrefix,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 << 20,
	}
}

// SubscriberConfig holds durable consumer settings.
type SubscriberConfig struct {
	URL              string
	StreamName       string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
}

// SubscriberConfigFrom derives consumer settings for url.
func SubscriberConfigFrom(cfg config.NATSConfig, url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		StreamName:       cfg.StreamName,
		DurableName:      cfg.DurableName,
		QueueGroup:       cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// AppenderConfig holds batching settings.
type AppenderConfig struct {
	BatchSize     int
	FlushInterval time.Duration

	// MaxPending caps the samples held per sink while it is failing.
	// The oldest are dropped beyond it.
	MaxPending int
}

// AppenderConfigFrom derives batching settings from cfg.
func AppenderConfigFrom(cfg config.IngestConfig) AppenderConfig {
	return AppenderConfig{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		MaxPending:    cfg.BatchSize * 20,
	}
}
