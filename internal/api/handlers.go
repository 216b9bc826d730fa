// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package api

import (
	"context"
	"io"
	"time"

	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/ingest"
	"github.com/shamikatamazon/cmcd/internal/service"
)

// defaultMaxQueryBytes bounds the POST /cmcd/query body when unset.
const defaultMaxQueryBytes = 64 << 10

// Ingester accepts a body of CloudFront real-time log lines.
type Ingester interface {
	Ingest(ctx context.Context, r io.Reader) (ingest.Result, error)
}

// Handler serves the REST surface.
type Handler struct {
	svc       *service.Service
	ingester  Ingester
	config    *config.Config
	startTime time.Time
	version   string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithIngester enables POST /ingest/cloudfront.
func WithIngester(in Ingester) HandlerOption {
	return func(h *Handler) {
		h.ingester = in
	}
}

// WithVersion sets the version reported by the health endpoints.
func WithVersion(v string) HandlerOption {
	return func(h *Handler) {
		h.version = v
	}
}

// NewHandler creates a new Handler.
func NewHandler(svc *service.Service, cfg *config.Config, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:       svc,
		config:    cfg,
		startTime: time.Now(),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) maxQueryBytes() int64 {
	if h.config != nil && h.config.API.MaxQueryBytes > 0 {
		return h.config.API.MaxQueryBytes
	}
	return defaultMaxQueryBytes
}

func (h *Handler) maxIngestBytes() int64 {
	if h.config != nil && h.config.Ingest.MaxBodyBytes > 0 {
		return h.config.Ingest.MaxBodyBytes
	}
	return 10 << 20
}
