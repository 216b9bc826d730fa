// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Package testinfra starts real backing services in Docker for integration
// tests, built only with the integration tag:
//
//	go test -tags integration ./internal/influx/...
//
// InfluxDBContainer runs InfluxDB 2.7 in setup mode with a known org,
// bucket and admin token, so tests can write CMCD points and read them back
// through the same client the server uses:
//
//	influxdb, err := testinfra.NewInfluxDBContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, influxdb)
//
//	client, err := influx.NewClient(influxdb.Config())
//
// Tests skip when Docker is unavailable. The first run pulls the image.
package testinfra
