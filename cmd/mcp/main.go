// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Command mcp serves the CMCD analysis operations as Model Context Protocol
// tools over stdio. Stdout carries only JSON-RPC; logs go to stderr.
//
//	mcp --config /etc/cmcd/config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/database"
	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/influx"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/mcp"
	"github.com/shamikatamazon/cmcd/internal/service"
	"github.com/shamikatamazon/cmcd/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flagSet := pflag.NewFlagSet("mcp", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML configuration file")
	showVersion := flagSet.Bool("version", false, "print the build and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		version.Print("mcp")
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher, raw, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var opts []service.Option
	if raw != nil {
		opts = append(opts, service.WithRawQuerier(raw))
	}
	svc, err := service.New(fetcher, cfg.Analysis.Rules(), opts...)
	if err != nil {
		return err
	}

	server := mcp.NewServer(svc, mcp.WithVersion(version.Version))
	logging.Info().Str("backend", svc.Backend()).Bool("cmcd_query", svc.SupportsQuery()).Msg("MCP server ready on stdio")

	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStore(cfg *config.Config) (fetch.Fetcher, service.RawQuerier, func(), error) {
	if cfg.Store.Backend == config.BackendDuckDB {
		db, err := database.Open(cfg.DuckDB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open duckdb: %w", err)
		}
		return db, nil, func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing DuckDB")
			}
		}, nil
	}

	client, err := influx.NewClient(cfg.InfluxDB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open influxdb: %w", err)
	}
	return client, client, client.Close, nil
}
