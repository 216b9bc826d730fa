// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package mcp

import (
	"bytes"
	"context"

	"github.com/goccy/go-json"

	"github.com/shamikatamazon/cmcd/internal/analysis"
	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/models"
	"github.com/shamikatamazon/cmcd/internal/service"
)

// Result statuses reported in structuredContent.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// toolOutput is the structuredContent of a successful call.
type toolOutput struct {
	Status string      `json:"status"`
	Result interface{} `json:"result"`
}

// toolHandler decodes arguments, runs one operation and reports whether
// the window held no data.
type toolHandler func(ctx context.Context, args json.RawMessage) (result interface{}, noData bool, err error)

type tool struct {
	description toolDescription
	handler     toolHandler
}

// bind adapts a service operation to a toolHandler. noData may be nil when
// an empty result is never reported as no_data.
func bind[P any, R any](op func(context.Context, P) (R, error), noData func(R) bool) toolHandler {
	return func(ctx context.Context, args json.RawMessage) (interface{}, bool, error) {
		var params P
		if err := decodeArguments(args, &params); err != nil {
			return nil, false, err
		}
		res, err := op(ctx, params)
		if err != nil {
			return nil, false, err
		}
		return res, noData != nil && noData(res), nil
	}
}

// decodeArguments rejects unknown argument names so a misspelt parameter
// is not silently defaulted.
func decodeArguments(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fetch.NewValidationError("arguments", "%v", err)
	}
	return nil
}

var readOnly = &toolAnnotations{ReadOnlyHint: true, IdempotentHint: true, OpenWorldHint: true}

func timeRangeProperty() schema {
	return schema{
		"type":        "string",
		"description": "Relative window ending now, e.g. -1h, -24h, -7d or -1h30m",
		"default":     fetch.DefaultTimeRange,
	}
}

func sessionProperty() schema {
	return schema{
		"type":        "string",
		"description": "CMCD session ID (sid)",
	}
}

func thresholdProperty() schema {
	return schema{
		"type":        "integer",
		"minimum":     0,
		"description": "Buffer level in milliseconds below which a sample counts as low buffer",
		"default":     500,
	}
}

func objectSchema(properties schema, required ...string) schema {
	s := schema{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// buildTools lists the tools svc can serve, in advertised order.
func buildTools(svc *service.Service) []tool {
	tools := []tool{
		{
			description: toolDescription{
				Name:        service.OpAverageBitrate,
				Title:       "Average bitrate",
				Description: "Average, minimum and maximum encoded bitrate (kbps) over a time window, optionally for one session or content.",
				InputSchema: objectSchema(schema{
					"time_range": timeRangeProperty(),
					"session_id": sessionProperty(),
					"content_id": schema{"type": "string", "description": "CMCD content ID (cid)"},
				}),
			},
			handler: bind(svc.AverageBitrate, func(r models.BitrateStatistic) bool { return r.NoData }),
		},
		{
			description: toolDescription{
				Name:        service.OpSessionDetails,
				Title:       "Session details",
				Description: "Timeline of one playback session with buffer, bitrate, timing and network series.",
				InputSchema: objectSchema(schema{
					"session_id": sessionProperty(),
					"time_range": timeRangeProperty(),
				}, "session_id"),
			},
			handler: bind(svc.SessionDetails, func(r models.SessionDetails) bool { return r.NoData }),
		},
		{
			description: toolDescription{
				Name:        service.OpBufferEvents,
				Title:       "Buffer events",
				Description: "Low-buffer and sudden buffer-drop events, which indicate rebuffering risk.",
				InputSchema: objectSchema(schema{
					"time_range":   timeRangeProperty(),
					"session_id":   sessionProperty(),
					"threshold_ms": thresholdProperty(),
				}),
			},
			handler: bind(svc.BufferEvents, func(r models.BufferEvents) bool { return len(r.Events) == 0 }),
		},
		{
			description: toolDescription{
				Name:        service.OpPlaybackErrors,
				Title:       "Playback errors",
				Description: "Classified playback problems (buffer_underrun, sudden_buffer_drop, startup_delay, bitrate_drop) with severity.",
				InputSchema: objectSchema(schema{
					"time_range": timeRangeProperty(),
					"session_id": sessionProperty(),
				}),
			},
			handler: bind(svc.PlaybackErrors, func(r models.PlaybackErrors) bool { return len(r.Errors) == 0 }),
		},
		{
			description: toolDescription{
				Name:        service.OpListIDs,
				Title:       "List sessions and contents",
				Description: "Distinct session and content IDs seen in the window, in first-seen order.",
				InputSchema: objectSchema(schema{
					"time_range": timeRangeProperty(),
					"limit": schema{
						"type":    "integer",
						"minimum": 1,
						"maximum": 10000,
						"default": analysis.DefaultListLimit,
					},
				}),
			},
			handler: bind(svc.ListIDs, func(r models.IDListing) bool { return len(r.SessionIDs) == 0 && len(r.ContentIDs) == 0 }),
		},
		{
			description: toolDescription{
				Name:        service.OpEdgeStats,
				Title:       "Edge location statistics",
				Description: "Bitrate and buffer health per CloudFront edge location.",
				InputSchema: objectSchema(schema{
					"time_range":   timeRangeProperty(),
					"threshold_ms": thresholdProperty(),
				}),
			},
			handler: bind(svc.EdgeStats, func(r []models.EdgeLocationStat) bool { return len(r) == 0 }),
		},
	}

	if svc.SupportsQuery() {
		tools = append(tools, tool{
			description: toolDescription{
				Name:        service.OpQuery,
				Title:       "Flux query",
				Description: "Run a Flux query against the CMCD bucket and return the raw records.",
				InputSchema: objectSchema(schema{
					"query": schema{"type": "string", "description": "Flux query text"},
				}, "query"),
			},
			handler: bind(svc.Query, nil),
		})
	}

	for i := range tools {
		tools[i].description.Annotations = readOnly
	}
	return tools
}
