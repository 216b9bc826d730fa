// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package api

import (
	"errors"
	"net/http"

	"github.com/shamikatamazon/cmcd/internal/logging"
)

// IngestCloudFront handles POST /api/v1/ingest/cloudfront. The body is
// newline-separated real-time log lines; rejected lines are reported, not fatal.
func (h *Handler) IngestCloudFront(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.ingester == nil {
		rw.ServiceUnavailable("ingest is disabled")
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxIngestBytes())
	res, err := h.ingester.Ingest(r.Context(), body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "ingest body too large")
			return
		}
		logging.Ctx(r.Context()).Warn().Err(err).Int("accepted", res.Accepted).Msg("Ingest request aborted")
		rw.BadRequest(err.Error())
		return
	}
	rw.Success(res)
}
