// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Handle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level     slog.Level
		wantLevel string
	}{
		{slog.LevelInfo, `"level":"info"`},
		{slog.LevelWarn, `"level":"warn"`},
		{slog.LevelError, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			h := NewSlogHandlerWithLogger(zerolog.New(&buf))

			rec := slog.NewRecord(time.Now(), tt.level, "supervisor event", 0)
			rec.AddAttrs(slog.Int("restarts", 3), slog.Any("err", errors.New("boom")))
			if err := h.Handle(context.Background(), rec); err != nil {
				t.Fatalf("Handle: %v", err)
			}

			out := buf.String()
			for _, want := range []string{tt.wantLevel, `"restarts":3`, `"err":"boom"`, "supervisor event"} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %s: %s", want, out)
				}
			}
		})
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	h := NewSlogHandlerWithLogger(zerolog.New(nil).Level(zerolog.WarnLevel))
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled on a warn logger")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled on a warn logger")
	}
}

func TestSlogHandler_AttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))
	logger = logger.With("service", "ingest").WithGroup("nats")
	logger.Info("connected", "url", "nats://127.0.0.1:4222", slog.Group("stream", slog.String("name", "CMCD")))

	out := buf.String()
	for _, want := range []string{`"nats.service":"ingest"`, `"nats.url":"nats://127.0.0.1:4222"`, `"nats.stream.name":"CMCD"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestFromSlogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := fromSlogLevel(tt.in); got != tt.want {
			t.Errorf("fromSlogLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
