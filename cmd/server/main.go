// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/shamikatamazon/cmcd/internal/api"
	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/metrics"
	"github.com/shamikatamazon/cmcd/internal/service"
	"github.com/shamikatamazon/cmcd/internal/supervisor"
	"github.com/shamikatamazon/cmcd/internal/supervisor/services"
	"github.com/shamikatamazon/cmcd/internal/version"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited")
	}
}

func run() error {
	var configPath string
	flagSet := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML configuration file")
	showVersion := flagSet.Bool("version", false, "print the build and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		version.Print("server")
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version.Version).
		Str("backend", cfg.Store.Backend).
		Bool("ingest", cfg.Ingest.Enabled).
		Bool("nats", cfg.NATS.Enabled).
		Msg("Starting CMCD analytics server")
	metrics.SetAppInfo(version.Version, runtime.Version(), cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores := newStores(cfg)
	defer stores.Close()

	fetcher, raw, err := stores.Fetcher()
	if err != nil {
		return err
	}
	var opts []service.Option
	if raw != nil {
		opts = append(opts, service.WithRawQuerier(raw))
	}
	svc, err := service.New(fetcher, cfg.Analysis.Rules(), opts...)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLoggerWithComponent("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: 15 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	handlerOpts := []api.HandlerOption{api.WithVersion(version.Version)}
	if cfg.Ingest.Enabled {
		pipeline, err := startIngest(ctx, cfg, stores, tree)
		if err != nil {
			return err
		}
		handlerOpts = append(handlerOpts, api.WithIngester(pipeline))
	}

	handler := api.NewHandler(svc, cfg, handlerOpts...)
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFrom(cfg.API))

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, s := range report {
			logging.Warn().Str("service", s.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	logging.Info().Msg("Server stopped")
	return nil
}
