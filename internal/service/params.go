// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package service

import (
	"strings"

	"github.com/shamikatamazon/cmcd/internal/validation"
)

// BitrateParams are the average_bitrate parameters.
type BitrateParams struct {
	TimeRange string `json:"time_range" validate:"omitempty,timerange"`
	SessionID string `json:"session_id" validate:"omitempty,sessionid"`
	ContentID string `json:"content_id" validate:"omitempty,sessionid"`
}

// SessionDetailsParams are the session_details parameters.
type SessionDetailsParams struct {
	SessionID string `json:"session_id" validate:"required,sessionid"`
	TimeRange string `json:"time_range" validate:"omitempty,timerange"`
}

// BufferEventsParams are the buffer_events parameters. A nil ThresholdMs
// uses the configured threshold.
type BufferEventsParams struct {
	TimeRange   string `json:"time_range" validate:"omitempty,timerange"`
	SessionID   string `json:"session_id" validate:"omitempty,sessionid"`
	ThresholdMs *int64 `json:"threshold_ms" validate:"omitempty,gte=0"`
}

// PlaybackErrorsParams are the playback_errors parameters.
type PlaybackErrorsParams struct {
	TimeRange string `json:"time_range" validate:"omitempty,timerange"`
	SessionID string `json:"session_id" validate:"omitempty,sessionid"`
}

// ListIDsParams are the list_ids parameters. A nil Limit means analysis.DefaultListLimit.
type ListIDsParams struct {
	TimeRange string `json:"time_range" validate:"omitempty,timerange"`
	Limit     *int   `json:"limit" validate:"omitempty,gte=1,lte=10000"`
}

// EdgeStatsParams are the edge_stats parameters.
type EdgeStatsParams struct {
	TimeRange   string `json:"time_range" validate:"omitempty,timerange"`
	ThresholdMs *int64 `json:"threshold_ms" validate:"omitempty,gte=0"`
}

// QueryParams are the cmcd_query parameters.
type QueryParams struct {
	Query string `json:"query" validate:"required"`
}

// validate trims every string field in place and runs the struct tags.
func validate(p interface{}) error {
	switch v := p.(type) {
	case *BitrateParams:
		v.TimeRange = strings.TrimSpace(v.TimeRange)
		v.SessionID = strings.TrimSpace(v.SessionID)
		v.ContentID = strings.TrimSpace(v.ContentID)
	case *SessionDetailsParams:
		v.TimeRange = strings.TrimSpace(v.TimeRange)
		v.SessionID = strings.TrimSpace(v.SessionID)
	case *BufferEventsParams:
		v.TimeRange = strings.TrimSpace(v.TimeRange)
		v.SessionID = strings.TrimSpace(v.SessionID)
	case *PlaybackErrorsParams:
		v.TimeRange = strings.TrimSpace(v.TimeRange)
		v.SessionID = strings.TrimSpace(v.SessionID)
	case *ListIDsParams:
		v.TimeRange = strings.TrimSpace(v.TimeRange)
	case *EdgeStatsParams:
		v.TimeRange = strings.TrimSpace(v.TimeRange)
	case *QueryParams:
		v.Query = strings.TrimSpace(v.Query)
	}

	if verr := validation.ValidateStruct(p); verr != nil {
		return verr.ToFetchError()
	}
	return nil
}
