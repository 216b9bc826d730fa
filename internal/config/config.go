// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Package config loads service configuration with Koanf v2.
//
// Sources are layered, later ones winning:
//  1. Defaults from defaultConfig()
//  2. An optional YAML file (--config flag, CONFIG_PATH, or DefaultConfigPaths)
//  3. Mapped environment variables (see envMappings)
//
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"time"

	"github.com/shamikatamazon/cmcd/internal/analysis"
)

// Store backends.
const (
	BackendInfluxDB = "influxdb"
	BackendDuckDB   = "duckdb"
)

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
	Store    StoreConfig    `koanf:"store"`
	InfluxDB InfluxDBConfig `koanf:"influxdb"`
	DuckDB   DuckDBConfig   `koanf:"duckdb"`
	NATS     NATSConfig     `koanf:"nats"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Analysis AnalysisConfig `koanf:"analysis"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`

	// Environment is development or production.
	Environment string `koanf:"environment"`
}

// APIConfig holds REST surface settings.
type APIConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// MaxQueryBytes caps the body of POST /cmcd/query.
	MaxQueryBytes int64 `koanf:"max_query_bytes"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig selects the sample store the analysis operations read from.
type StoreConfig struct {
	Backend string `koanf:"backend"`
}

// InfluxDBConfig holds the InfluxDB 2.x connection and schema settings.
//
// Environment Variables:
//   - INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, INFLUXDB_BUCKET
//   - INFLUXDB_TIMEOUT: request timeout in milliseconds (default: 30000)
//   - VERIFY_SSL: verify the server certificate (default: true)
type InfluxDBConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
	Org   string `koanf:"org"`

	// Bucket is tried first, then each FallbackBuckets entry in order.
	Bucket          string   `koanf:"bucket"`
	FallbackBuckets []string `koanf:"fallback_buckets"`

	TimeoutMs int  `koanf:"timeout_ms"`
	VerifySSL bool `koanf:"verify_ssl"`

	Measurement string `koanf:"measurement"`
	SessionTag  string `koanf:"session_tag"`
	ContentTag  string `koanf:"content_tag"`
	EdgeTag     string `koanf:"edge_tag"`

	// MaxQueriesPerSecond and QueryBurst bound outbound Flux queries.
	MaxQueriesPerSecond float64 `koanf:"max_queries_per_second"`
	QueryBurst          int     `koanf:"query_burst"`
}

// Timeout returns TimeoutMs as a duration.
func (c InfluxDBConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Buckets returns the bucket candidates in resolution order without duplicates.
func (c InfluxDBConfig) Buckets() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range append([]string{c.Bucket}, c.FallbackBuckets...) {
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// DuckDBConfig holds the embedded sample store settings.
type DuckDBConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// NATSConfig holds the ingest broker settings.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`

	// EmbeddedServer runs a JetStream server in-process. If false, URL must
	// point at an external server with JetStream enabled.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	StreamName          string `koanf:"stream_name"`
	SubjectPrefix       string `koanf:"subject_prefix"`
	StreamRetentionDays int    `koanf:"stream_retention_days"`

	SubscribersCount int    `koanf:"subscribers_count"`
	DurableName      string `koanf:"durable_name"`
	QueueGroup       string `koanf:"queue_group"`
}

// IngestConfig holds CloudFront log ingest settings.
type IngestConfig struct {
	Enabled       bool          `koanf:"enabled"`
	BatchSize     int           `koanf:"batch_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`

	// Sinks lists where flushed samples go: influxdb, duckdb.
	Sinks []string `koanf:"sinks"`

	// MaxBodyBytes caps one ingest request body.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// DedupWindow is how long a log line is remembered for duplicate
	// suppression. Zero disables it.
	DedupWindow   time.Duration `koanf:"dedup_window"`
	DedupCapacity int           `koanf:"dedup_capacity"`
}

// AnalysisConfig exposes every analyzer threshold.
type AnalysisConfig struct {
	BufferThresholdMs int64   `koanf:"buffer_threshold_ms"`
	SuddenDropRatio   float64 `koanf:"sudden_drop_ratio"`

	UnderrunFloorMs       int64 `koanf:"underrun_floor_ms"`
	UnderrunMinPreviousMs int64 `koanf:"underrun_min_previous_ms"`

	SuddenDropMediumRatio float64 `koanf:"sudden_drop_medium_ratio"`
	SuddenDropHighRatio   float64 `koanf:"sudden_drop_high_ratio"`

	StartupMediumMs int64 `koanf:"startup_medium_ms"`
	StartupHighMs   int64 `koanf:"startup_high_ms"`

	BitrateDropRatio   float64 `koanf:"bitrate_drop_ratio"`
	BitrateLowBufferMs int64   `koanf:"bitrate_low_buffer_ms"`

	// DisabledRules holds error types to skip, e.g. "startup_delay".
	DisabledRules []string `koanf:"disabled_rules"`
}

// Rules converts the settings to an analysis.Config.
func (c AnalysisConfig) Rules() analysis.Config {
	cfg := analysis.Config{
		Buffer: analysis.BufferConfig{
			ThresholdMs:     c.BufferThresholdMs,
			SuddenDropRatio: c.SuddenDropRatio,
		},
		Underrun: analysis.UnderrunConfig{
			Enabled:       true,
			FloorMs:       c.UnderrunFloorMs,
			MinPreviousMs: c.UnderrunMinPreviousMs,
		},
		SuddenDrop: analysis.SuddenDropConfig{
			Enabled:     true,
			ThresholdMs: c.BufferThresholdMs,
			MediumRatio: c.SuddenDropMediumRatio,
			HighRatio:   c.SuddenDropHighRatio,
		},
		StartupDelay: analysis.StartupDelayConfig{
			Enabled:  true,
			MediumMs: c.StartupMediumMs,
			HighMs:   c.StartupHighMs,
		},
		BitrateDrop: analysis.BitrateDropConfig{
			Enabled:     true,
			DropRatio:   c.BitrateDropRatio,
			LowBufferMs: c.BitrateLowBufferMs,
		},
	}

	for _, r := range c.DisabledRules {
		switch r {
		case "buffer_underrun":
			cfg.Underrun.Enabled = false
		case "sudden_buffer_drop":
			cfg.SuddenDrop.Enabled = false
		case "startup_delay":
			cfg.StartupDelay.Enabled = false
		case "bitrate_drop":
			cfg.BitrateDrop.Enabled = false
		}
	}
	return cfg
}

// IsProduction reports whether Environment is production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
