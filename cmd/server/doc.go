// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Command server runs the CMCD analytics REST API and, when enabled, the
// CloudFront real-time log ingest path.
//
// Startup order:
//
//  1. Configuration (Koanf v2: defaults, YAML file, environment)
//  2. Sample store: InfluxDB 2.x or DuckDB, selected by STORE_BACKEND
//  3. Ingest (INGEST_ENABLED): appender over the configured sinks, and with
//     NATS_ENABLED the JetStream broker and its subscribers
//  4. HTTP server with the Chi router
//  5. Supervisor tree; blocks until SIGINT or SIGTERM
//
// Flags:
//
//	--config PATH   YAML configuration file (default: CONFIG_PATH or ./config.yaml)
//	--version       print the build and exit
//
// Example:
//
//	export INFLUXDB_URL=http://localhost:8086
//	export INFLUXDB_TOKEN=...
//	export INFLUXDB_ORG=media
//	export INFLUXDB_BUCKET=cmcd-metrics
//	./server
package main
