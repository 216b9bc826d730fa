// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package database provides the embedded DuckDB sample store.

The store keeps CMCD samples in a single table, cmcd_samples, and serves two
roles: an alternative fetch backend (store.backend: duckdb) for the analysis
operations, and an ingest sink for samples parsed from CloudFront logs.

Schema:

	cmcd_samples (
	    seq                 BIGINT   insertion sequence, breaks timestamp ties
	    ts                  TIMESTAMP (UTC)
	    session_id          VARCHAR
	    content_id          VARCHAR
	    edge_location       VARCHAR
	    buffer_level_ms     BIGINT
	    bitrate_kbps        DOUBLE
	    top_bitrate_kbps    DOUBLE
	    startup_delay_ms    BIGINT
	    throughput_kbps     DOUBLE
	    segment_duration_ms BIGINT
	    buffer_starved      BOOLEAN
	)

Fetch applies the same window, filters and ordering as the InfluxDB path, so
either backend yields the same analysis for the same data.

Use ":memory:" as the path for tests.
*/
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/logging"
)

// BackendName identifies the store in metrics and errors.
const BackendName = "duckdb"

const memoryPath = ":memory:"

// DB wraps the DuckDB connection pool.
type DB struct {
	conn *sql.DB
	cfg  config.DuckDBConfig

	// now is replaceable so tests can pin the fetch window.
	now func() time.Time
}

// Open opens (creating if needed) the store at cfg.Path and ensures the schema.
func Open(cfg config.DuckDBConfig) (*DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("duckdb path is required")
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	if cfg.Path != memoryPath {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(threads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	db := &DB{conn: conn, cfg: cfg, now: time.Now}

	ctx, cancel := schemaContext()
	defer cancel()
	if err := db.createSchema(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Str("max_memory", maxMemory).Msg("DuckDB sample store opened")
	return db, nil
}

// Name returns the backend name.
func (db *DB) Name() string { return BackendName }

// Ping checks that the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return storeError("ping", errors.New("database connection is nil"))
	}
	if err := db.conn.PingContext(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if db.cfg.Path != memoryPath {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}

// Conn exposes the underlying pool for integration tests and ad hoc queries.
func (db *DB) Conn() *sql.DB { return db.conn }

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS cmcd_samples_seq START 1`,
	`CREATE TABLE IF NOT EXISTS cmcd_samples (
		seq                 BIGINT PRIMARY KEY DEFAULT nextval('cmcd_samples_seq'),
		ts                  TIMESTAMP NOT NULL,
		session_id          VARCHAR NOT NULL DEFAULT '',
		content_id          VARCHAR NOT NULL DEFAULT '',
		edge_location       VARCHAR NOT NULL DEFAULT '',
		buffer_level_ms     BIGINT,
		bitrate_kbps        DOUBLE,
		top_bitrate_kbps    DOUBLE,
		startup_delay_ms    BIGINT,
		throughput_kbps     DOUBLE,
		segment_duration_ms BIGINT,
		buffer_starved      BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cmcd_samples_ts ON cmcd_samples(ts)`,
	`CREATE INDEX IF NOT EXISTS idx_cmcd_samples_session ON cmcd_samples(session_id, ts)`,
}

func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
