// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shamikatamazon/cmcd/internal/influx"
)

func TestPrintReport(t *testing.T) {
	t.Parallel()

	r := influx.Report{
		URL: "http://localhost:8086",
		Org: "media",
		Steps: []influx.Step{
			{Name: influx.StepTCP, OK: true, Detail: "localhost:8086 is accepting connections", Duration: 2 * time.Millisecond},
			{Name: influx.StepPing, Error: "unauthorized access"},
			{Name: influx.StepHealth, Skipped: true},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, &r)
	out := buf.String()
	for _, want := range []string{
		"InfluxDB http://localhost:8086 (org media, verify_ssl=false)",
		"[ ok ] tcp",
		"[FAIL] ping     unauthorized access",
		"[skip] health",
		"Result: FAILED at ping",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReports_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	reports := []influx.Report{{URL: "http://a", OK: true, Steps: []influx.Step{{Name: influx.StepTCP, OK: true}}}}
	if err := printReports(&buf, reports, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"ok": true`) {
		t.Errorf("json output = %s", buf.String())
	}
}

func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if code := run([]string{"--no-such-flag"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("unknown flag exit = %d, want %d", code, exitUsage)
	}
	if code := run([]string{"--version"}, &stdout, &stderr); code != 0 || !strings.Contains(stdout.String(), "doctor") {
		t.Errorf("--version exit = %d output %q", code, stdout.String())
	}
}
