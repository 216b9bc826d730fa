// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package main

import (
	"context"
	"fmt"

	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/database"
	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/influx"
	"github.com/shamikatamazon/cmcd/internal/ingest"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/service"
)

// stores opens each backend at most once, whether it is read by the
// analysis operations, written by ingest, or both.
type stores struct {
	cfg    *config.Config
	influx *influx.Client
	duckdb *database.DB
}

func newStores(cfg *config.Config) *stores {
	return &stores{cfg: cfg}
}

func (s *stores) influxClient() (*influx.Client, error) {
	if s.influx == nil {
		c, err := influx.NewClient(s.cfg.InfluxDB)
		if err != nil {
			return nil, fmt.Errorf("open influxdb: %w", err)
		}
		s.influx = c
		logging.Info().Str("url", logging.RedactURL(s.cfg.InfluxDB.URL)).Str("bucket", s.cfg.InfluxDB.Bucket).Msg("InfluxDB client ready")
	}
	return s.influx, nil
}

func (s *stores) duckDB() (*database.DB, error) {
	if s.duckdb == nil {
		db, err := database.Open(s.cfg.DuckDB)
		if err != nil {
			return nil, fmt.Errorf("open duckdb: %w", err)
		}
		s.duckdb = db
		logging.Info().Str("path", s.cfg.DuckDB.Path).Msg("DuckDB store ready")
	}
	return s.duckdb, nil
}

// Fetcher returns the configured read backend. raw is non-nil only for
// InfluxDB, which is the only store that accepts Flux.
func (s *stores) Fetcher() (f fetch.Fetcher, raw service.RawQuerier, err error) {
	switch s.cfg.Store.Backend {
	case config.BackendDuckDB:
		db, err := s.duckDB()
		if err != nil {
			return nil, nil, err
		}
		return db, nil, nil
	default:
		c, err := s.influxClient()
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
}

// Sinks returns the ingest destinations named in cfg.Ingest.Sinks.
func (s *stores) Sinks(ctx context.Context) ([]ingest.Sink, error) {
	sinks := make([]ingest.Sink, 0, len(s.cfg.Ingest.Sinks))
	for _, name := range s.cfg.Ingest.Sinks {
		switch name {
		case config.BackendInfluxDB:
			c, err := s.influxClient()
			if err != nil {
				return nil, err
			}
			w, err := influx.NewPointWriter(ctx, c)
			if err != nil {
				return nil, fmt.Errorf("influxdb sink: %w", err)
			}
			sinks = append(sinks, w)
		case config.BackendDuckDB:
			db, err := s.duckDB()
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, db)
		default:
			return nil, fmt.Errorf("unknown ingest sink %q", name)
		}
	}
	return sinks, nil
}

// Close releases every opened backend.
func (s *stores) Close() {
	if s.influx != nil {
		s.influx.Close()
	}
	if s.duckdb != nil {
		if err := s.duckdb.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing DuckDB")
		}
	}
}
