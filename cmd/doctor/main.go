// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Command doctor checks the InfluxDB connection step by step (TCP, ping,
// health, bucket visibility, a test query) and prints what failed. It exits
// 1 when any step fails and 2 on a usage or configuration error.
//
//	doctor --config config.yaml --timeout 20s
//	doctor --alternatives   # also try the other scheme and relaxed TLS
//	doctor --json
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/influx"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/version"
)

const (
	exitFailed = 1
	exitUsage  = 2
)

type options struct {
	configPath   string
	timeout      time.Duration
	alternatives bool
	jsonOutput   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	flagSet := pflag.NewFlagSet("doctor", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	flagSet.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall time limit for all checks")
	flagSet.BoolVar(&opts.alternatives, "alternatives", false, "when the configured URL fails, try the other scheme and relaxed TLS")
	flagSet.BoolVar(&opts.jsonOutput, "json", false, "print reports as JSON")
	showVersion := flagSet.Bool("version", false, "print the build and exit")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return exitUsage
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String("doctor"))
		return 0
	}

	// Keep the report readable: only warnings and errors from the client.
	logging.Init(logging.Config{Level: "warn", Format: "console", Output: stderr})

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	report := influx.Doctor(ctx, cfg.InfluxDB, dialer)
	reports := []influx.Report{report}

	if !report.OK && opts.alternatives {
		for _, alt := range influx.Alternatives(cfg.InfluxDB) {
			r := influx.Doctor(ctx, alt, dialer)
			reports = append(reports, r)
			if r.OK {
				break
			}
		}
	}

	if err := printReports(stdout, reports, opts.jsonOutput); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	if !report.OK {
		return exitFailed
	}
	return 0
}

func printReports(w io.Writer, reports []influx.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for i, r := range reports {
		if i > 0 {
			fmt.Fprintf(w, "\nAlternative %d:\n", i)
		}
		printReport(w, &r)
	}
	return nil
}

func printReport(w io.Writer, r *influx.Report) {
	fmt.Fprintf(w, "InfluxDB %s (org %s, verify_ssl=%t)\n", r.URL, r.Org, r.VerifySSL)
	for _, s := range r.Steps {
		switch {
		case s.Skipped:
			fmt.Fprintf(w, "  [skip] %-8s\n", s.Name)
		case s.OK:
			fmt.Fprintf(w, "  [ ok ] %-8s %s (%s)\n", s.Name, s.Detail, s.Duration.Round(time.Millisecond))
		default:
			fmt.Fprintf(w, "  [FAIL] %-8s %s\n", s.Name, s.Error)
		}
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(w, "  missing buckets: %v (visible: %v)\n", r.Missing, r.Buckets)
	}
	if failed := r.Failed(); failed != nil {
		fmt.Fprintf(w, "Result: FAILED at %s\n", failed.Name)
		return
	}
	fmt.Fprintln(w, "Result: OK")
}
