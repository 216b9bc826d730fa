// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/metrics"
	"github.com/shamikatamazon/cmcd/internal/models"
)

var (
	_ fetch.Fetcher      = (*DB)(nil)
	_ fetch.Pinger       = (*DB)(nil)
	_ fetch.SampleWriter = (*DB)(nil)
)

const maxInsertRetries = 3

// fieldColumns maps each projectable CMCD field to its column.
var fieldColumns = map[fetch.Field]string{
	fetch.FieldBufferLevel:     "buffer_level_ms",
	fetch.FieldBitrate:         "bitrate_kbps",
	fetch.FieldTopBitrate:      "top_bitrate_kbps",
	fetch.FieldStartup:         "startup_delay_ms",
	fetch.FieldThroughput:      "throughput_kbps",
	fetch.FieldSegmentDuration: "segment_duration_ms",
	fetch.FieldBufferStarved:   "buffer_starved",
}

const insertSampleSQL = `INSERT INTO cmcd_samples (
	ts, session_id, content_id, edge_location,
	buffer_level_ms, bitrate_kbps, top_bitrate_kbps, startup_delay_ms,
	throughput_kbps, segment_duration_ms, buffer_starved
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// WriteSamples appends samples to the store. It satisfies fetch.SampleWriter
// so the store can serve as an ingest sink.
func (db *DB) WriteSamples(ctx context.Context, samples []models.Sample) error {
	_, err := db.InsertSamples(ctx, samples)
	return err
}

// InsertSamples appends samples in one transaction and returns how many rows
// were written. Samples that carry no CMCD value are skipped. Transaction
// conflicts are retried with a short backoff.
func (db *DB) InsertSamples(ctx context.Context, samples []models.Sample) (int, error) {
	rows := make([]models.Sample, 0, len(samples))
	for i := range samples {
		s := samples[i]
		s.Normalize()
		if !hasValue(&s) {
			continue
		}
		rows = append(rows, s)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var lastErr error
	for attempt := 0; attempt < maxInsertRetries; attempt++ {
		err := db.insertBatch(ctx, rows)
		if err == nil {
			return len(rows), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return 0, storeError("insert", ctx.Err())
		}
		if !isTransactionConflict(err) || attempt == maxInsertRetries-1 {
			break
		}

		backoff := time.Millisecond * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return 0, storeError("insert", ctx.Err())
		}
	}
	return 0, storeError("insert", lastErr)
}

func (db *DB) insertBatch(ctx context.Context, rows []models.Sample) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertSampleSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	for i := range rows {
		s := &rows[i]
		if _, err = stmt.ExecContext(ctx,
			s.Timestamp.UTC(), s.SessionID, s.ContentID, s.EdgeLocation,
			nullInt(s.BufferLevelMs), nullFloat(s.BitrateKbps), nullFloat(s.TopBitrateKbps), nullInt(s.StartupDelayMs),
			nullFloat(s.ThroughputKbps), nullInt(s.SegmentDurationMs), s.BufferStarved,
		); err != nil {
			return fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	return nil
}

// Fetch returns the samples matching req, ordered by timestamp then
// insertion sequence.
func (db *DB) Fetch(ctx context.Context, req fetch.Request) (samples []models.Sample, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordFetch(BackendName, "fetch", time.Since(start), len(samples), err)
	}()

	tr, err := req.Resolve()
	if err != nil {
		return nil, err
	}

	query, args := sampleQuery(tr.Start(db.now()).UTC(), req)
	logging.Ctx(ctx).Debug().Str("range", tr.Raw).Msg("Fetching CMCD samples from DuckDB")

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("fetch", err)
	}
	defer closeWithLog(rows, "rows")

	samples = make([]models.Sample, 0)
	for rows.Next() {
		s, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, storeError("fetch", scanErr)
		}
		project(&s, req.Fields)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("fetch", err)
	}
	return samples, nil
}

// sampleQuery builds the windowed select. Every value is bound as a
// parameter; only column names from fieldColumns are spliced.
func sampleQuery(since time.Time, req fetch.Request) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`SELECT ts, session_id, content_id, edge_location,
	buffer_level_ms, bitrate_kbps, top_bitrate_kbps, startup_delay_ms,
	throughput_kbps, segment_duration_ms, buffer_starved
FROM cmcd_samples
WHERE ts >= ?`)
	args := []interface{}{since}

	if req.SessionID != "" {
		b.WriteString(" AND session_id = ?")
		args = append(args, req.SessionID)
	}
	if req.ContentID != "" {
		b.WriteString(" AND content_id = ?")
		args = append(args, req.ContentID)
	}
	if cond := projectionCondition(req.Fields); cond != "" {
		b.WriteString(" AND (")
		b.WriteString(cond)
		b.WriteString(")")
	}
	b.WriteString(" ORDER BY ts, seq")
	return b.String(), args
}

// projectionCondition keeps rows that carry at least one requested field,
// matching a field-filtered Flux query that yields no record otherwise.
func projectionCondition(fields []fetch.Field) string {
	var parts []string
	for _, f := range fields {
		col, ok := fieldColumns[f]
		if !ok {
			continue
		}
		if f == fetch.FieldBufferStarved {
			parts = append(parts, col)
			continue
		}
		parts = append(parts, col+" IS NOT NULL")
	}
	return strings.Join(parts, " OR ")
}

// project clears the fields that were not requested.
func project(s *models.Sample, fields []fetch.Field) {
	if len(fields) == 0 {
		return
	}
	want := make(map[fetch.Field]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	if !want[fetch.FieldBufferLevel] {
		s.BufferLevelMs = nil
	}
	if !want[fetch.FieldBitrate] {
		s.BitrateKbps = nil
	}
	if !want[fetch.FieldTopBitrate] {
		s.TopBitrateKbps = nil
	}
	if !want[fetch.FieldStartup] {
		s.StartupDelayMs = nil
	}
	if !want[fetch.FieldThroughput] {
		s.ThroughputKbps = nil
	}
	if !want[fetch.FieldSegmentDuration] {
		s.SegmentDurationMs = nil
	}
	if !want[fetch.FieldBufferStarved] {
		s.BufferStarved = false
	}
}

func scanSample(rows *sql.Rows) (models.Sample, error) {
	var (
		s           models.Sample
		bl, su, d   sql.NullInt64
		br, tb, mtp sql.NullFloat64
	)
	if err := rows.Scan(
		&s.Timestamp, &s.SessionID, &s.ContentID, &s.EdgeLocation,
		&bl, &br, &tb, &su, &mtp, &d, &s.BufferStarved,
	); err != nil {
		return s, err
	}
	s.Timestamp = s.Timestamp.UTC()
	s.BufferLevelMs = intPtr(bl)
	s.BitrateKbps = floatPtr(br)
	s.TopBitrateKbps = floatPtr(tb)
	s.StartupDelayMs = intPtr(su)
	s.ThroughputKbps = floatPtr(mtp)
	s.SegmentDurationMs = intPtr(d)
	s.Normalize()
	return s, nil
}

// Count returns the number of stored samples.
func (db *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM cmcd_samples").Scan(&n); err != nil {
		return 0, storeError("count", err)
	}
	return n, nil
}

func hasValue(s *models.Sample) bool {
	return s.BufferLevelMs != nil || s.BitrateKbps != nil || s.TopBitrateKbps != nil ||
		s.StartupDelayMs != nil || s.ThroughputKbps != nil || s.SegmentDurationMs != nil ||
		s.BufferStarved
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return models.Int64Ptr(v.Int64)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float64Ptr(v.Float64)
}
