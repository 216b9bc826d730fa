// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shamikatamazon/cmcd/internal/middleware"
)

// Router wires the handlers onto a Chi mux.
type Router struct {
	handler *Handler
	chiMw   *ChiMiddleware
}

// NewRouter creates a new router.
func NewRouter(handler *Handler, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handler: handler,
		chiMw:   NewChiMiddleware(mwConfig),
	}
}

// SetupChi builds the complete route tree.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(router.chiMw.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.Route("/health", func(r chi.Router) {
			r.Use(router.chiMw.RateLimitHealth())
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})

		r.Route("/cmcd", func(r chi.Router) {
			r.Use(router.chiMw.RateLimit())
			r.Use(middleware.Compression)
			r.Get("/bitrate", h.CMCDBitrate)
			r.Get("/sessions/{sessionID}", h.CMCDSessionDetails)
			r.Get("/buffer-events", h.CMCDBufferEvents)
			r.Get("/playback-errors", h.CMCDPlaybackErrors)
			r.Get("/ids", h.CMCDListIDs)
			r.Get("/edges", h.CMCDEdgeStats)
			r.Post("/query", h.CMCDQuery)
		})

		r.Route("/ingest", func(r chi.Router) {
			r.Post("/cloudfront", h.IngestCloudFront)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NewResponseWriter(w, req).NotFound("route not found")
	})
	return r
}
