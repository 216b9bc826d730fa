// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package mcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/service"
)

// Error categories reported in errorInfo.
const (
	CategoryValidation  = "validation"
	CategoryUnavailable = "unavailable"
	CategoryInternal    = "internal"
)

const maxMessageBytes = 1 << 20

const instructions = "Tools analyse CMCD playback telemetry. Every tool takes an optional " +
	"time_range such as -1h or -7d (default -24h). Use list_ids to find session IDs."

// Server answers MCP requests over newline-delimited JSON-RPC. Requests are
// handled one at a time in arrival order.
type Server struct {
	name        string
	version     string
	tools       []tool
	toolsByName map[string]*tool
	initialized bool
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported in serverInfo.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// NewServer exposes the operations of svc as tools.
func NewServer(svc *service.Service, opts ...Option) *Server {
	s := &Server{
		name:    "cmcd-analytics",
		version: "dev",
		tools:   buildTools(svc),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.toolsByName = make(map[string]*tool, len(s.tools))
	for i := range s.tools {
		s.toolsByName[s.tools[i].description.Name] = &s.tools[i]
	}
	return s
}

// Run reads requests from input until EOF or ctx is done, writing one
// response line per request. Notifications get no response.
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageBytes)
	encoder := json.NewEncoder(output)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if werr := writeError(encoder, json.RawMessage("null"), codeParseError, "parse error: "+err.Error()); werr != nil {
				return fmt.Errorf("write parse error: %w", werr)
			}
			continue
		}

		if req.JSONRPC != "2.0" {
			if !req.isNotification() {
				if werr := writeError(encoder, req.ID, codeInvalidRequest, "unsupported JSON-RPC version"); werr != nil {
					return fmt.Errorf("write version error: %w", werr)
				}
			}
			continue
		}
		if req.isNotification() {
			continue
		}

		if err := s.dispatch(ctx, encoder, &req); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, encoder *json.Encoder, req *request) error {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(encoder, req)
	case "ping":
		return writeResult(encoder, req.ID, map[string]interface{}{})
	case "tools/list":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsList(encoder, req)
	case "tools/call":
		if !s.initialized {
			return writeError(encoder, req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsCall(ctx, encoder, req)
	default:
		return writeError(encoder, req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleInitialize(encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for initialize")
	}
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid initialize params: "+err.Error())
	}

	s.initialized = true
	logging.Info().
		Str("client", params.ClientInfo.Name).
		Str("client_version", params.ClientInfo.Version).
		Str("requested_protocol", params.ProtocolVersion).
		Msg("MCP session initialized")

	return writeResult(encoder, req.ID, initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    serverCapabilities{Tools: &toolCapability{}},
		ServerInfo:      serverInfo{Name: s.name, Version: s.version},
		Instructions:    instructions,
	})
}

func (s *Server) handleToolsList(encoder *json.Encoder, req *request) error {
	descriptions := make([]toolDescription, 0, len(s.tools))
	for i := range s.tools {
		descriptions = append(descriptions, s.tools[i].description)
	}
	return writeResult(encoder, req.ID, toolsListResult{Tools: descriptions})
}

func (s *Server) handleToolsCall(ctx context.Context, encoder *json.Encoder, req *request) error {
	if len(req.Params) == 0 {
		return writeError(encoder, req.ID, codeInvalidParams, "params required for tools/call")
	}
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writeError(encoder, req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
	}

	t, ok := s.toolsByName[params.Name]
	if !ok {
		return writeError(encoder, req.ID, codeInvalidParams, "unknown tool: "+params.Name)
	}

	callCtx := logging.ContextWithOperation(logging.ContextWithNewRequestID(ctx), params.Name)
	start := time.Now()
	res, noData, err := t.handler(callCtx, params.Arguments)

	logEvent := logging.Ctx(callCtx).Debug()
	if err != nil {
		logEvent = logging.Ctx(callCtx).Warn().Err(err)
	}
	logEvent.Str("tool", params.Name).Dur("duration", time.Since(start)).Msg("Tool call finished")

	return writeResult(encoder, req.ID, buildToolResult(res, noData, err))
}

// buildToolResult renders a handler outcome. Domain failures are tool
// results with isError set, never JSON-RPC errors.
func buildToolResult(res interface{}, noData bool, err error) toolsCallResult {
	if err != nil {
		return toolsCallResult{
			Content:   []contentBlock{{Type: "text", Text: err.Error()}},
			IsError:   true,
			ErrorInfo: classifyError(err),
		}
	}

	out := toolOutput{Status: StatusOK, Result: res}
	if noData {
		out.Status = StatusNoData
	}
	text, merr := json.Marshal(out)
	if merr != nil {
		return toolsCallResult{
			Content:   []contentBlock{{Type: "text", Text: "encode result: " + merr.Error()}},
			IsError:   true,
			ErrorInfo: &errorInfo{Category: CategoryInternal},
		}
	}
	return toolsCallResult{
		Content:           []contentBlock{{Type: "text", Text: string(text)}},
		StructuredContent: out,
	}
}

func classifyError(err error) *errorInfo {
	var ve *fetch.ValidationError
	switch {
	case errors.As(err, &ve):
		return &errorInfo{Category: CategoryValidation, Param: ve.Param}
	case fetch.IsUpstreamUnavailable(err),
		errors.Is(err, context.DeadlineExceeded):
		return &errorInfo{Category: CategoryUnavailable, Retryable: true}
	default:
		return &errorInfo{Category: CategoryInternal}
	}
}

func writeResult(encoder *json.Encoder, id json.RawMessage, result interface{}) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(encoder *json.Encoder, id json.RawMessage, code int, message string) error {
	return encoder.Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
