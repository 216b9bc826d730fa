// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package influx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/logging"
)

// Doctor step names, in execution order.
const (
	StepTCP     = "tcp"
	StepPing    = "ping"
	StepHealth  = "health"
	StepBuckets = "buckets"
	StepQuery   = "query"
)

// Step is the outcome of one doctor check.
type Step struct {
	Name     string        `json:"name"`
	OK       bool          `json:"ok"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Report is the result of a doctor run against one configuration.
type Report struct {
	URL       string `json:"url"`
	Org       string `json:"org"`
	VerifySSL bool   `json:"verify_ssl"`
	Steps     []Step `json:"steps"`
	OK        bool   `json:"ok"`

	// Buckets lists the buckets visible to the token; Missing lists
	// configured buckets that are not among them.
	Buckets []string `json:"buckets,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Failed returns the first failed step, or nil.
func (r *Report) Failed() *Step {
	for i := range r.Steps {
		if !r.Steps[i].OK && !r.Steps[i].Skipped {
			return &r.Steps[i]
		}
	}
	return nil
}

// Dialer opens the TCP reachability probe. net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Doctor runs the connection checks in order and stops at the first failure;
// later steps are reported as skipped.
func Doctor(ctx context.Context, cfg config.InfluxDBConfig, dialer Dialer) Report {
	report := Report{URL: logging.RedactURL(cfg.URL), Org: cfg.Org, VerifySSL: cfg.VerifySSL}
	if dialer == nil {
		dialer = &net.Dialer{Timeout: 5 * time.Second}
	}

	var client *Client
	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	checks := []struct {
		name string
		run  func(ctx context.Context) (string, error)
	}{
		{StepTCP, func(ctx context.Context) (string, error) {
			addr, err := hostPort(cfg.URL)
			if err != nil {
				return "", err
			}
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return "", err
			}
			_ = conn.Close()
			return addr + " is accepting connections", nil
		}},
		{StepPing, func(ctx context.Context) (string, error) {
			c, err := NewClient(cfg)
			if err != nil {
				return "", err
			}
			client = c
			ok, err := c.sdk.Ping(ctx)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", errors.New("server did not answer ping")
			}
			return "pong", nil
		}},
		{StepHealth, func(ctx context.Context) (string, error) {
			h, err := client.sdk.Health(ctx)
			if err != nil {
				return "", err
			}
			detail := fmt.Sprintf("status=%s", h.Status)
			if h.Version != nil {
				detail += " version=" + *h.Version
			}
			if h.Message != nil && *h.Message != "" {
				detail += " message=" + *h.Message
			}
			if h.Status != "pass" {
				return "", errors.New(detail)
			}
			return detail, nil
		}},
		{StepBuckets, func(ctx context.Context) (string, error) {
			list, err := client.sdk.BucketsAPI().GetBuckets(ctx)
			if err != nil {
				return "", err
			}
			if list != nil {
				for _, b := range *list {
					report.Buckets = append(report.Buckets, b.Name)
				}
			}
			report.Missing = missingBuckets(cfg.Buckets(), report.Buckets)
			if len(report.Missing) == len(cfg.Buckets()) {
				return "", fmt.Errorf("none of the configured buckets exist: %s", strings.Join(cfg.Buckets(), ", "))
			}
			return fmt.Sprintf("%d buckets visible", len(report.Buckets)), nil
		}},
		{StepQuery, func(ctx context.Context) (string, error) {
			rows, err := sdkRunner{api: client.sdk.QueryAPI(cfg.Org)}.Run(ctx, "buckets()")
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("buckets() returned %d records", len(rows)), nil
		}},
	}

	failed := false
	for _, check := range checks {
		if failed {
			report.Steps = append(report.Steps, Step{Name: check.name, Skipped: true})
			continue
		}

		stepCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
		start := time.Now()
		detail, err := check.run(stepCtx)
		cancel()

		step := Step{Name: check.name, OK: err == nil, Duration: time.Since(start), Detail: detail}
		if err != nil {
			step.Error = err.Error()
			failed = true
		}
		report.Steps = append(report.Steps, step)
	}
	report.OK = !failed
	return report
}

// Alternatives returns the fallbacks the doctor tries when cfg fails:
// https without verification, then plain http.
func Alternatives(cfg config.InfluxDBConfig) []config.InfluxDBConfig {
	var out []config.InfluxDBConfig
	if strings.HasPrefix(cfg.URL, "http://") || cfg.VerifySSL {
		alt := cfg
		alt.URL = "https://" + strings.TrimPrefix(strings.TrimPrefix(cfg.URL, "http://"), "https://")
		alt.VerifySSL = false
		out = append(out, alt)
	}
	if strings.HasPrefix(cfg.URL, "https://") {
		alt := cfg
		alt.URL = "http://" + strings.TrimPrefix(cfg.URL, "https://")
		alt.VerifySSL = false
		out = append(out, alt)
	}
	return out
}

func hostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

func missingBuckets(want, have []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, h := range have {
		present[h] = struct{}{}
	}
	var missing []string
	for _, w := range want {
		if _, ok := present[w]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}
