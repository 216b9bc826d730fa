// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package analysis

import (
	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/models"
)

// DefaultListLimit is the per-kind cap applied by list_ids when none is given.
const DefaultListLimit = 100

// ListIDs returns the distinct non-empty session and content IDs in the order
// they were first seen, each truncated to limit.
func ListIDs(samples []models.Sample, limit int) (models.IDListing, error) {
	if limit <= 0 {
		return models.IDListing{}, fetch.NewValidationError("limit", "must be > 0, got %d", limit)
	}

	listing := models.IDListing{
		SessionIDs: make([]string, 0),
		ContentIDs: make([]string, 0),
		Limit:      limit,
	}
	sessions := newDistinct(limit)
	contents := newDistinct(limit)

	for i := range samples {
		sessions.add(samples[i].SessionID)
		contents.add(samples[i].ContentID)
	}

	listing.SessionIDs = append(listing.SessionIDs, sessions.values...)
	listing.ContentIDs = append(listing.ContentIDs, contents.values...)
	listing.SessionIDTruncated = sessions.truncated
	listing.ContentIDTruncated = contents.truncated
	return listing, nil
}

type distinct struct {
	limit     int
	seen      map[string]struct{}
	values    []string
	truncated bool
}

func newDistinct(limit int) *distinct {
	return &distinct{limit: limit, seen: make(map[string]struct{})}
}

func (d *distinct) add(v string) {
	if v == "" {
		return
	}
	if _, ok := d.seen[v]; ok {
		return
	}
	d.seen[v] = struct{}{}
	if len(d.values) >= d.limit {
		d.truncated = true
		return
	}
	d.values = append(d.values, v)
}
