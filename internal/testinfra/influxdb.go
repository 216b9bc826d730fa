// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shamikatamazon/cmcd/internal/config"
)

const (
	// DefaultInfluxDBImage is the InfluxDB 2.x image the server targets.
	DefaultInfluxDBImage = "influxdb:2.7"

	// DefaultInfluxDBPort is the HTTP API port.
	DefaultInfluxDBPort = "8086"

	// Setup-mode credentials.
	DefaultInfluxOrg    = "media"
	DefaultInfluxBucket = "cmcd-metrics"
	DefaultInfluxToken  = "integration-test-token-0123456789"
)

// InfluxDBContainer is a running InfluxDB 2.7 instance.
type InfluxDBContainer struct {
	testcontainers.Container
	URL    string
	Org    string
	Bucket string
	Token  string
}

// InfluxDBOption configures the container.
type InfluxDBOption func(*influxConfig)

type influxConfig struct {
	image        string
	bucket       string
	startTimeout time.Duration
}

// WithInfluxDBImage overrides the image.
func WithInfluxDBImage(image string) InfluxDBOption {
	return func(c *influxConfig) {
		c.image = image
	}
}

// WithInfluxBucket sets the bucket created at setup.
func WithInfluxBucket(bucket string) InfluxDBOption {
	return func(c *influxConfig) {
		c.bucket = bucket
	}
}

// WithInfluxStartTimeout sets how long to wait for /health.
func WithInfluxStartTimeout(timeout time.Duration) InfluxDBOption {
	return func(c *influxConfig) {
		c.startTimeout = timeout
	}
}

// NewInfluxDBContainer starts InfluxDB in setup mode and waits for /health.
func NewInfluxDBContainer(ctx context.Context, opts ...InfluxDBOption) (*InfluxDBContainer, error) {
	cfg := &influxConfig{
		image:        DefaultInfluxDBImage,
		bucket:       DefaultInfluxBucket,
		startTimeout: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultInfluxDBPort + "/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "admin",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "integration-password",
			"DOCKER_INFLUXDB_INIT_ORG":         DefaultInfluxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      cfg.bucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": DefaultInfluxToken,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultInfluxDBPort+"/tcp"),
			wait.ForHTTP("/health").WithPort(DefaultInfluxDBPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create influxdb container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultInfluxDBPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &InfluxDBContainer{
		Container: container,
		URL:       fmt.Sprintf("http://%s:%s", host, port.Port()),
		Org:       DefaultInfluxOrg,
		Bucket:    cfg.bucket,
		Token:     DefaultInfluxToken,
	}, nil
}

// Config returns a client configuration pointing at the container with the
// default CloudFront schema.
func (c *InfluxDBContainer) Config() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		URL:                 c.URL,
		Token:               c.Token,
		Org:                 c.Org,
		Bucket:              c.Bucket,
		TimeoutMs:           10000,
		Measurement:         "cloudfront_logs",
		SessionTag:          "session_id",
		ContentTag:          "content_id",
		EdgeTag:             "edge_location",
		MaxQueriesPerSecond: 100,
		QueryBurst:          10,
	}
}
