// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package config

import (
	"fmt"
	"strings"

	"github.com/shamikatamazon/cmcd/internal/logging"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateInfluxDB(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.RateLimitDisabled {
		return nil
	}
	if c.API.RateLimitReqs <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.API.RateLimitReqs)
	}
	if c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.API.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendInfluxDB, BackendDuckDB:
		return nil
	default:
		return fmt.Errorf("STORE_BACKEND must be %s or %s, got %q", BackendInfluxDB, BackendDuckDB, c.Store.Backend)
	}
}

// influxRequired reports whether any component talks to InfluxDB.
func (c *Config) influxRequired() bool {
	if c.Store.Backend == BackendInfluxDB {
		return true
	}
	return c.Ingest.Enabled && c.hasSink(BackendInfluxDB)
}

func (c *Config) hasSink(name string) bool {
	for _, s := range c.Ingest.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c *Config) validateInfluxDB() error {
	if !c.influxRequired() {
		return nil
	}
	if c.InfluxDB.URL == "" {
		return fmt.Errorf("INFLUXDB_URL is required")
	}
	if err := validateHTTPURL(c.InfluxDB.URL, "INFLUXDB_URL"); err != nil {
		return err
	}
	if strings.TrimSpace(c.InfluxDB.Token) == "" {
		return fmt.Errorf("INFLUXDB_TOKEN is required")
	}
	if containsPlaceholder(c.InfluxDB.Token) {
		return fmt.Errorf("INFLUXDB_TOKEN looks like a placeholder, set a real token")
	}
	if strings.TrimSpace(c.InfluxDB.Org) == "" {
		return fmt.Errorf("INFLUXDB_ORG is required")
	}
	if len(c.InfluxDB.Buckets()) == 0 {
		return fmt.Errorf("INFLUXDB_BUCKET is required")
	}
	if c.InfluxDB.TimeoutMs <= 0 {
		return fmt.Errorf("INFLUXDB_TIMEOUT must be positive milliseconds, got %d", c.InfluxDB.TimeoutMs)
	}
	if c.InfluxDB.Measurement == "" {
		return fmt.Errorf("influxdb.measurement is required")
	}
	if c.InfluxDB.SessionTag == "" || c.InfluxDB.ContentTag == "" || c.InfluxDB.EdgeTag == "" {
		return fmt.Errorf("influxdb session, content and edge tag names are required")
	}
	if c.InfluxDB.MaxQueriesPerSecond <= 0 || c.InfluxDB.QueryBurst <= 0 {
		return fmt.Errorf("influxdb query rate and burst must be positive")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required with the embedded server")
	}
	if c.NATS.StreamName == "" || c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("nats stream name and subject prefix are required")
	}
	if c.NATS.StreamRetentionDays < 1 {
		return fmt.Errorf("NATS_RETENTION_DAYS must be at least 1, got %d", c.NATS.StreamRetentionDays)
	}
	if c.NATS.SubscribersCount < 1 {
		return fmt.Errorf("NATS_SUBSCRIBERS must be at least 1, got %d", c.NATS.SubscribersCount)
	}
	return nil
}

func (c *Config) validateIngest() error {
	if !c.Ingest.Enabled {
		return nil
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be at least 1, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.FlushInterval <= 0 {
		return fmt.Errorf("INGEST_FLUSH_INTERVAL must be positive, got %s", c.Ingest.FlushInterval)
	}
	if c.Ingest.DedupWindow < 0 {
		return fmt.Errorf("INGEST_DEDUP_WINDOW must not be negative, got %s", c.Ingest.DedupWindow)
	}
	if c.Ingest.DedupWindow > 0 && c.Ingest.DedupCapacity < 1 {
		return fmt.Errorf("INGEST_DEDUP_CAPACITY must be at least 1 when dedup is enabled, got %d", c.Ingest.DedupCapacity)
	}
	if len(c.Ingest.Sinks) == 0 {
		return fmt.Errorf("INGEST_SINKS must name at least one sink")
	}
	for _, s := range c.Ingest.Sinks {
		if s != BackendInfluxDB && s != BackendDuckDB {
			return fmt.Errorf("INGEST_SINKS entry %q must be %s or %s", s, BackendInfluxDB, BackendDuckDB)
		}
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	for _, r := range c.Analysis.DisabledRules {
		switch r {
		case "buffer_underrun", "sudden_buffer_drop", "startup_delay", "bitrate_drop":
		default:
			return fmt.Errorf("ANALYSIS_DISABLED_RULES: unknown rule %q", r)
		}
	}
	if err := c.Analysis.Rules().Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// containsPlaceholder catches template values copied from example configs.
func containsPlaceholder(value string) bool {
	lower := strings.ToLower(value)
	for _, p := range []string{"changeme", "your-token", "your_token", "<token>", "replace_me"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
