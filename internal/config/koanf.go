// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/shamikatamazon/cmcd/internal/analysis"
)

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cmcd/config.yaml",
	"/etc/cmcd/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	rules := analysis.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		API: APIConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			MaxQueryBytes:   64 << 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend: BackendInfluxDB,
		},
		InfluxDB: InfluxDBConfig{
			URL:                 "http://localhost:8086",
			Bucket:              "cmcd-metrics",
			FallbackBuckets:     []string{"cmcd_metrics"},
			TimeoutMs:           30000,
			VerifySSL:           true,
			Measurement:         "cloudfront_logs",
			SessionTag:          "session_id",
			ContentTag:          "content_id",
			EdgeTag:             "edge_location",
			MaxQueriesPerSecond: 20,
			QueryBurst:          5,
		},
		DuckDB: DuckDBConfig{
			Path:      "/data/cmcd.duckdb",
			MaxMemory: "1GB",
		},
		NATS: NATSConfig{
			Enabled:             false,
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           256 << 20,
			MaxStore:            4 << 30,
			StreamName:          "CMCD_SAMPLES",
			SubjectPrefix:       "cmcd.samples",
			StreamRetentionDays: 3,
			SubscribersCount:    2,
			DurableName:         "cmcd-appender",
			QueueGroup:          "cmcd-appenders",
		},
		Ingest: IngestConfig{
			Enabled:       false,
			BatchSize:     500,
			FlushInterval: 5 * time.Second,
			Sinks:         []string{BackendInfluxDB},
			MaxBodyBytes:  8 << 20,
			DedupWindow:   10 * time.Minute,
			DedupCapacity: 100_000,
		},
		Analysis: AnalysisConfig{
			BufferThresholdMs:     rules.Buffer.ThresholdMs,
			SuddenDropRatio:       rules.Buffer.SuddenDropRatio,
			UnderrunFloorMs:       rules.Underrun.FloorMs,
			UnderrunMinPreviousMs: rules.Underrun.MinPreviousMs,
			SuddenDropMediumRatio: rules.SuddenDrop.MediumRatio,
			SuddenDropHighRatio:   rules.SuddenDrop.HighRatio,
			StartupMediumMs:       rules.StartupDelay.MediumMs,
			StartupHighMs:         rules.StartupDelay.HighMs,
			BitrateDropRatio:      rules.BitrateDrop.DropRatio,
			BitrateLowBufferMs:    rules.BitrateDrop.LowBufferMs,
			DisabledRules:         []string{},
		},
	}
}

// Load reads configuration from defaults, the YAML file at path (or the first
// file found when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as a string from the environment.
var sliceConfigPaths = []string{
	"api.cors_origins",
	"influxdb.fallback_buckets",
	"ingest.sinks",
	"analysis.disabled_rules",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config keys.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	"cors_origins":        "api.cors_origins",
	"rate_limit_requests": "api.rate_limit_reqs",
	"rate_limit_window":   "api.rate_limit_window",
	"disable_rate_limit":  "api.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"store_backend": "store.backend",

	"influxdb_url":              "influxdb.url",
	"influxdb_token":            "influxdb.token",
	"influxdb_org":              "influxdb.org",
	"influxdb_bucket":           "influxdb.bucket",
	"influxdb_fallback_buckets": "influxdb.fallback_buckets",
	"influxdb_timeout":          "influxdb.timeout_ms",
	"verify_ssl":                "influxdb.verify_ssl",
	"influxdb_measurement":      "influxdb.measurement",
	"influxdb_session_tag":      "influxdb.session_tag",
	"influxdb_content_tag":      "influxdb.content_tag",
	"influxdb_edge_tag":         "influxdb.edge_tag",
	"influxdb_max_qps":          "influxdb.max_queries_per_second",

	"duckdb_path":       "duckdb.path",
	"duckdb_max_memory": "duckdb.max_memory",

	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_store_dir":      "nats.store_dir",
	"nats_retention_days": "nats.stream_retention_days",
	"nats_subscribers":    "nats.subscribers_count",
	"nats_durable_name":   "nats.durable_name",
	"nats_queue_group":    "nats.queue_group",

	"ingest_enabled":        "ingest.enabled",
	"ingest_batch_size":     "ingest.batch_size",
	"ingest_flush_interval": "ingest.flush_interval",
	"ingest_sinks":          "ingest.sinks",
	"ingest_max_body_bytes": "ingest.max_body_bytes",
	"ingest_dedup_window":   "ingest.dedup_window",
	"ingest_dedup_capacity": "ingest.dedup_capacity",

	"analysis_buffer_threshold_ms": "analysis.buffer_threshold_ms",
	"analysis_sudden_drop_ratio":   "analysis.sudden_drop_ratio",
	"analysis_underrun_floor_ms":   "analysis.underrun_floor_ms",
	"analysis_startup_medium_ms":   "analysis.startup_medium_ms",
	"analysis_startup_high_ms":     "analysis.startup_high_ms",
	"analysis_bitrate_drop_ratio":  "analysis.bitrate_drop_ratio",
	"analysis_disabled_rules":      "analysis.disabled_rules",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
