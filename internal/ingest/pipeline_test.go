// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package ingest

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shamikatamazon/cmcd/internal/cache"
)

func cloudfrontLine(ts, headers string) string {
	return strings.Join([]string{
		ts, "203.0.113.7", "200", "GET", "/v/seg.m4s", "HTTP/2.0",
		url.QueryEscape(headers), "12", "IAD89-C1", "Hit",
	}, "\t")
}

func TestPipeline_Ingest(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		cloudfrontLine("1772366400", `CMCD-Session: sid="s1"`+"\nCMCD-Request: bl=900"),
		"",
		"too\tshort",
		cloudfrontLine("1772366401", "CMCD-Request: bl=100"),
		cloudfrontLine("later", `CMCD-Session: sid="s1"`),
		cloudfrontLine("1772366402", `CMCD-Session: sid="s2"`+"\nCMCD-Object: br=3000") + "\r",
	}, "\n")

	fwd := &fakeForwarder{}
	res, err := NewPipeline(fwd).Ingest(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if res.Lines != 5 || res.Accepted != 2 || res.Rejected != 2 || res.NoSession != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Errors) != 2 || res.Errors[0].Line != 3 || res.Errors[1].Line != 5 {
		t.Errorf("errors = %+v", res.Errors)
	}
	if len(fwd.got) != 2 || fwd.got[0].sample.SessionID != "s1" || fwd.got[1].sample.SessionID != "s2" {
		t.Fatalf("forwarded = %+v", fwd.got)
	}
	if fwd.got[0].id == "" || fwd.got[0].id == fwd.got[1].id {
		t.Errorf("line ids = %q %q", fwd.got[0].id, fwd.got[1].id)
	}
	if *fwd.got[1].sample.BitrateKbps != 3000 || fwd.got[1].sample.EdgeLocation != "IAD89-C1" {
		t.Errorf("sample = %+v", fwd.got[1].sample)
	}
}

func TestPipeline_ForwardFailureIsRejection(t *testing.T) {
	t.Parallel()

	body := cloudfrontLine("1772366400", `CMCD-Session: sid="down"`) + "\n" +
		cloudfrontLine("1772366400", `CMCD-Session: sid="up"`)
	fwd := &fakeForwarder{fail: map[string]bool{"down": true}}

	res, err := NewPipeline(fwd).Ingest(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if res.Accepted != 1 || res.Rejected != 1 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(res.Errors[0].Error, "broker unavailable") {
		t.Errorf("error = %q", res.Errors[0].Error)
	}
}

func TestPipeline_CapsReportedErrors(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("garbage\n", MaxReportedErrors+5)
	res, err := NewPipeline(&fakeForwarder{}).Ingest(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if res.Rejected != MaxReportedErrors+5 {
		t.Errorf("Rejected = %d", res.Rejected)
	}
	if len(res.Errors) != MaxReportedErrors {
		t.Errorf("len(Errors) = %d, want %d", len(res.Errors), MaxReportedErrors)
	}
}

func TestPipeline_EmptyBody(t *testing.T) {
	t.Parallel()

	res, err := NewPipeline(&fakeForwarder{}).Ingest(context.Background(), strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if res.Lines != 0 || res.Errors == nil {
		t.Errorf("result = %+v", res)
	}
}

func TestPipeline_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPipeline(&fakeForwarder{}).Ingest(ctx, strings.NewReader(cloudfrontLine("1", "")))
	if err == nil {
		t.Error("Ingest() on canceled context returned nil")
	}
}

func TestPipeline_DropsDuplicateLines(t *testing.T) {
	t.Parallel()

	a := cloudfrontLine("1772366400", `CMCD-Session: sid="s1"`)
	b := cloudfrontLine("1772366401", `CMCD-Session: sid="s1"`)
	body := strings.Join([]string{a, b, a}, "\n")

	fwd := &fakeForwarder{}
	p := NewPipeline(fwd, WithDeduplicator(cache.NewLRU(100, time.Minute)))

	res, err := p.Ingest(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if res.Accepted != 2 || res.Duplicates != 1 {
		t.Errorf("first upload result = %+v", res)
	}

	// A retried upload repeats the whole batch.
	res, err = p.Ingest(context.Background(), strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if res.Accepted != 0 || res.Duplicates != 3 {
		t.Errorf("retried upload result = %+v", res)
	}
	if len(fwd.got) != 2 {
		t.Errorf("forwarded %d samples, want 2", len(fwd.got))
	}
}

func TestPipeline_FailedForwardIsNotRemembered(t *testing.T) {
	t.Parallel()

	line := cloudfrontLine("1772366400", `CMCD-Session: sid="flaky"`)
	fwd := &fakeForwarder{fail: map[string]bool{"flaky": true}}
	p := NewPipeline(fwd, WithDeduplicator(cache.NewLRU(100, time.Minute)))

	res, _ := p.Ingest(context.Background(), strings.NewReader(line))
	if res.Rejected != 1 {
		t.Fatalf("result = %+v", res)
	}

	fwd.mu.Lock()
	fwd.fail = nil
	fwd.mu.Unlock()

	res, _ = p.Ingest(context.Background(), strings.NewReader(line))
	if res.Accepted != 1 || res.Duplicates != 0 {
		t.Errorf("retry result = %+v", res)
	}
}
