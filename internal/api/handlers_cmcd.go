// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/service"
)

// CMCDBitrate handles GET /api/v1/cmcd/bitrate.
func (h *Handler) CMCDBitrate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r).WithBackend(h.svc.Backend())
	q := r.URL.Query()

	stat, err := h.svc.AverageBitrate(r.Context(), service.BitrateParams{
		TimeRange: q.Get("time_range"),
		SessionID: q.Get("session_id"),
		ContentID: q.Get("content_id"),
	})
	if err != nil {
		rw.OperationError(err)
		return
	}
	rw.Success(stat)
}

// CMCDSessionDetails handles GET /api/v1/cmcd/sessions/{sessionID}.
// A session without samples in the window is a 404.
func (h *Handler) CMCDSessionDetails(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r).WithBackend(h.svc.Backend())

	details, err := h.svc.SessionDetails(r.Context(), service.SessionDetailsParams{
		SessionID: chi.URLParam(r, "sessionID"),
		TimeRange: r.URL.Query().Get("time_range"),
	})
	if err != nil {
		rw.OperationError(err)
		return
	}
	if details.NoData {
		rw.NotFound("no samples for session " + details.SessionID)
		return
	}
	rw.Success(details)
}

// CMCDBufferEvents handles GET /api/v1/cmcd/buffer-events.
func (h *Handler) CMCDBufferEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r).WithBackend(h.svc.Backend())
	q := r.URL.Query()

	threshold, err := int64Param(q.Get("threshold_ms"), "threshold_ms")
	if err != nil {
		rw.OperationError(err)
		return
	}
	res, err := h.svc.BufferEvents(r.Context(), service.BufferEventsParams{
		TimeRange:   q.Get("time_range"),
		SessionID:   q.Get("session_id"),
		ThresholdMs: threshold,
	})
	if err != nil {
		rw.OperationError(err)
		return
	}
	rw.Success(res)
}

// CMCDPlaybackErrors handles GET /api/v1/cmcd/playback-errors.
func (h *Handler) CMCDPlaybackErrors(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r).WithBackend(h.svc.Backend())
	q := r.URL.Query()

	res, err := h.svc.PlaybackErrors(r.Context(), service.PlaybackErrorsParams{
		TimeRange: q.Get("time_range"),
		SessionID: q.Get("session_id"),
	})
	if err != nil {
		rw.OperationError(err)
		return
	}
	rw.Success(res)
}

// CMCDListIDs handles GET /api/v1/cmcd/ids.
func (h *Handler) CMCDListIDs(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r).WithBackend(h.svc.Backend())
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		rw.OperationError(err)
		return
	}
	listing, err := h.svc.ListIDs(r.Context(), service.ListIDsParams{
		TimeRange: q.Get("time_range"),
		Limit:     limit,
	})
	if err != nil {
		rw.OperationError(err)
		return
	}
	rw.Success(listing)
}

// CMCDEdgeStats handles GET /api/v1/cmcd/edges.
func (h *Handler) CMCDEdgeStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r).WithBackend(h.svc.Backend())
	q := r.URL.Query()

	threshold, err := int64Param(q.Get("threshold_ms"), "threshold_ms")
	if err != nil {
		rw.OperationError(err)
		return
	}
	stats, err := h.svc.EdgeStats(r.Context(), service.EdgeStatsParams{
		TimeRange:   q.Get("time_range"),
		ThresholdMs: threshold,
	})
	if err != nil {
		rw.OperationError(err)
		return
	}
	rw.Success(stats)
}

// CMCDQuery handles POST /api/v1/cmcd/query with a {"query": "..."} body.
func (h *Handler) CMCDQuery(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r).WithBackend(h.svc.Backend())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxQueryBytes()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "query body too large")
			return
		}
		rw.BadRequest("failed to read request body")
		return
	}

	var p service.QueryParams
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		rw.OperationError(fetch.NewValidationError("query", "invalid request body: %v", err))
		return
	}

	res, err := h.svc.Query(r.Context(), p)
	if err != nil {
		rw.OperationError(err)
		return
	}
	rw.Success(res)
}

func int64Param(raw, name string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fetch.NewValidationError(name, "must be an integer, got %q", raw)
	}
	return &v, nil
}

func intParam(raw, name string) (*int, error) {
	v, err := int64Param(raw, name)
	if v == nil || err != nil {
		return nil, err
	}
	n := int(*v)
	return &n, nil
}
