// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"errors"
	"time"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/models"
)

var baseTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// at returns baseTime shifted by n seconds.
func at(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Second)
}

func bufSample(session string, n int, level int64) models.Sample {
	return models.Sample{Timestamp: at(n), SessionID: session, BufferLevelMs: models.Int64Ptr(level)}
}

func brSample(session string, n int, kbps float64) models.Sample {
	return models.Sample{Timestamp: at(n), SessionID: session, BitrateKbps: models.Float64Ptr(kbps)}
}

func countKind(events []models.BufferEvent, kind models.BufferEventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func errorsOfType(errs []models.PlaybackError, t models.ErrorType) []models.PlaybackError {
	var out []models.PlaybackError
	for _, e := range errs {
		if e.ErrorType == t {
			out = append(out, e)
		}
	}
	return out
}

func asValidation(err error, target **fetch.ValidationError) bool {
	return errors.As(err, target)
}
