// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Package ingest turns CloudFront real-time log lines into stored CMCD samples.
//
// The flow is:
//
//	POST /api/v1/ingest/cloudfront
//	        │ newline-separated log lines
//	        ▼
//	   Pipeline ── cmcd.ParseLogLine ── Beacon.Sample
//	        │
//	        ├── NATS enabled:  Publisher ──► JetStream CMCD_SAMPLES (cmcd.samples.<edge>)
//	        │                                      │
//	        │                               Consumer (durable, queue group)
//	        │                                      │
//	        └── NATS disabled: ─────────────────►  Appender
//	                                               │ batch by size / interval
//	                                               ▼
//	                                   sinks: InfluxDB PointWriter, DuckDB store
//
// A bad line never aborts a request: each request reports how many lines were
// accepted, rejected or dropped for lacking a session ID, plus the first few
// parse errors.
//
// The embedded server (EmbeddedServer) runs JetStream in-process for single
// node deployments. StreamInitializer creates or updates the stream before
// publishers and consumers attach.
package ingest
