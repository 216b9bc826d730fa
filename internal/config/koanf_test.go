// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendInfluxDB {
		t.Errorf("Store.Backend = %q, want influxdb", cfg.Store.Backend)
	}
	if cfg.InfluxDB.Bucket != "cmcd-metrics" {
		t.Errorf("InfluxDB.Bucket = %q, want cmcd-metrics", cfg.InfluxDB.Bucket)
	}
	if got := cfg.InfluxDB.Buckets(); len(got) != 2 || got[1] != "cmcd_metrics" {
		t.Errorf("InfluxDB.Buckets() = %v", got)
	}
	if cfg.InfluxDB.Timeout() != 30*time.Second {
		t.Errorf("InfluxDB.Timeout() = %v, want 30s", cfg.InfluxDB.Timeout())
	}
	if !cfg.InfluxDB.VerifySSL {
		t.Error("InfluxDB.VerifySSL should default to true")
	}
	if cfg.InfluxDB.Token != "" {
		t.Error("InfluxDB.Token must have no default")
	}
	if cfg.NATS.Enabled || cfg.Ingest.Enabled {
		t.Error("NATS and ingest should be disabled by default")
	}
	if cfg.Analysis.BufferThresholdMs != 500 || cfg.Analysis.SuddenDropRatio != 0.5 {
		t.Errorf("Analysis buffer defaults = %d/%v", cfg.Analysis.BufferThresholdMs, cfg.Analysis.SuddenDropRatio)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging defaults = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"INFLUXDB_URL", "influxdb.url"},
		{"INFLUXDB_TOKEN", "influxdb.token"},
		{"INFLUXDB_TIMEOUT", "influxdb.timeout_ms"},
		{"VERIFY_SSL", "influxdb.verify_ssl"},
		{"HTTP_PORT", "server.port"},
		{"log_level", "logging.level"},
		{"NATS_ENABLED", "nats.enabled"},
		{"ANALYSIS_DISABLED_RULES", "analysis.disabled_rules"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Run("explicit env path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv(ConfigPathEnvVar, path)

		if got := findConfigFile(); got != path {
			t.Errorf("findConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("missing env path is ignored", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		if got := findConfigFile(); got == "/non/existent/config.yaml" {
			t.Error("findConfigFile() returned a missing file")
		}
	})
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEnvVars(t *testing.T) {
	t.Setenv("INFLUXDB_URL", "https://influx.example.com:8086")
	t.Setenv("INFLUXDB_TOKEN", "tok_abcdef0123456789")
	t.Setenv("INFLUXDB_ORG", "media")
	t.Setenv("INFLUXDB_TIMEOUT", "5000")
	t.Setenv("VERIFY_SSL", "false")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ANALYSIS_DISABLED_RULES", "startup_delay, bitrate_drop")

	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InfluxDB.URL != "https://influx.example.com:8086" {
		t.Errorf("InfluxDB.URL = %q", cfg.InfluxDB.URL)
	}
	if cfg.InfluxDB.Timeout() != 5*time.Second {
		t.Errorf("InfluxDB.Timeout() = %v, want 5s", cfg.InfluxDB.Timeout())
	}
	if cfg.InfluxDB.VerifySSL {
		t.Error("VERIFY_SSL=false was not applied")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if got := cfg.Analysis.DisabledRules; len(got) != 2 || got[0] != "startup_delay" || got[1] != "bitrate_drop" {
		t.Errorf("DisabledRules = %v", got)
	}

	rules := cfg.Analysis.Rules()
	if rules.StartupDelay.Enabled || rules.BitrateDrop.Enabled {
		t.Error("disabled rules still enabled")
	}
	if !rules.Underrun.Enabled || !rules.SuddenDrop.Enabled {
		t.Error("rules not named should stay enabled")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 7070
store:
  backend: duckdb
duckdb:
  path: /tmp/test.duckdb
analysis:
  buffer_threshold_ms: 800
  sudden_drop_ratio: 0.3
logging:
  level: warn
  format: console
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendDuckDB || cfg.DuckDB.Path != "/tmp/test.duckdb" {
		t.Errorf("store = %s %s", cfg.Store.Backend, cfg.DuckDB.Path)
	}
	if cfg.Analysis.BufferThresholdMs != 800 || cfg.Analysis.SuddenDropRatio != 0.3 {
		t.Errorf("analysis = %d %v", cfg.Analysis.BufferThresholdMs, cfg.Analysis.SuddenDropRatio)
	}
	// Unset keys keep their defaults.
	if cfg.InfluxDB.Bucket != "cmcd-metrics" {
		t.Errorf("InfluxDB.Bucket = %q, want default", cfg.InfluxDB.Bucket)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: duckdb
server:
  port: 7070
logging:
  level: info
`)
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DUCKDB_PATH", "/custom/db.duckdb")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error", cfg.Logging.Level)
	}
	if cfg.DuckDB.Path != "/custom/db.duckdb" {
		t.Errorf("DuckDB.Path = %q", cfg.DuckDB.Path)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "missing token",
			env:    map[string]string{"INFLUXDB_ORG": "media"},
			errMsg: "INFLUXDB_TOKEN",
		},
		{
			name: "bad influx scheme",
			env: map[string]string{
				"INFLUXDB_URL":   "ftp://influx:8086",
				"INFLUXDB_TOKEN": "tok_abcdef0123456789",
				"INFLUXDB_ORG":   "media",
			},
			errMsg: "scheme",
		},
		{
			name:   "unknown backend",
			env:    map[string]string{"STORE_BACKEND": "sqlite"},
			errMsg: "STORE_BACKEND",
		},
		{
			name:   "ratio out of range",
			env:    map[string]string{"STORE_BACKEND": "duckdb", "ANALYSIS_SUDDEN_DROP_RATIO": "1.5"},
			errMsg: "sudden_drop_ratio",
		},
		{
			name:   "negative threshold",
			env:    map[string]string{"STORE_BACKEND": "duckdb", "ANALYSIS_BUFFER_THRESHOLD_MS": "-1"},
			errMsg: "threshold",
		},
		{
			name:   "unknown disabled rule",
			env:    map[string]string{"STORE_BACKEND": "duckdb", "ANALYSIS_DISABLED_RULES": "stall"},
			errMsg: "unknown rule",
		},
		{
			name:   "bad port",
			env:    map[string]string{"STORE_BACKEND": "duckdb", "HTTP_PORT": "70000"},
			errMsg: "HTTP_PORT",
		},
		{
			name:   "bad log level",
			env:    map[string]string{"STORE_BACKEND": "duckdb", "LOG_LEVEL": "loud"},
			errMsg: "LOG_LEVEL",
		},
		{
			name: "bad nats url",
			env: map[string]string{
				"STORE_BACKEND": "duckdb",
				"NATS_ENABLED":  "true",
				"NATS_URL":      "http://localhost:4222",
			},
			errMsg: "NATS_URL",
		},
		{
			name: "duckdb backend needs no token",
			env:  map[string]string{"STORE_BACKEND": "duckdb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(writeConfig(t, "{}\n"))
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Load() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Load() expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidateIngestDedup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		window   time.Duration
		capacity int
		errMsg   string
	}{
		{"defaults", 10 * time.Minute, 100_000, ""},
		{"disabled", 0, 0, ""},
		{"negative window", -time.Second, 10, "INGEST_DEDUP_WINDOW"},
		{"no capacity", time.Minute, 0, "INGEST_DEDUP_CAPACITY"},
	}
	for _, tt := range tests {
		cfg := defaultConfig()
		cfg.Ingest.Enabled = true
		cfg.Ingest.DedupWindow = tt.window
		cfg.Ingest.DedupCapacity = tt.capacity

		err := cfg.validateIngest()
		if tt.errMsg == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
			t.Errorf("%s: error = %v, want %q", tt.name, err, tt.errMsg)
		}
	}
}
