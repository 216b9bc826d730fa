// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package api

import (
	"context"
	"net/http"
	"time"
)

// readyTimeout bounds the store ping behind /health/ready.
const readyTimeout = 5 * time.Second

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status    string  `json:"status"`
	Version   string  `json:"version"`
	Backend   string  `json:"backend,omitempty"`
	Uptime    float64 `json:"uptime_seconds"`
	StoreUp   bool    `json:"store_up"`
	StoreInfo string  `json:"store_error,omitempty"`
}

// HealthLive handles GET /api/v1/health/live. It only reports that the
// process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthStatus{
		Status:  "alive",
		Version: h.version,
		Uptime:  time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready. It pings the sample store
// and answers 503 while the store is unreachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r).WithBackend(h.svc.Backend())

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := HealthStatus{
		Status:  "ready",
		Version: h.version,
		Backend: h.svc.Backend(),
		Uptime:  time.Since(h.startTime).Seconds(),
		StoreUp: true,
	}
	if err := h.svc.Ping(ctx); err != nil {
		status.Status = "not_ready"
		status.StoreUp = false
		status.StoreInfo = err.Error()
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "sample store unreachable", status)
		return
	}
	rw.Success(status)
}
