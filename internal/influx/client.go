// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Package influx reads and writes CMCD samples in InfluxDB 2.x.
//
// Client is the fetch.Fetcher for the influxdb backend. Every query passes a
// token-bucket limiter and a circuit breaker; breaker rejections, transport
// failures and credential errors surface as *fetch.UpstreamError. Nothing
// here retries.
package influx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"golang.org/x/time/rate"

	"github.com/shamikatamazon/cmcd/internal/breaker"
	"github.com/shamikatamazon/cmcd/internal/config"
	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/logging"
)

// BackendName labels this store in errors and metrics.
const BackendName = "influxdb"

// QueryRunner executes Flux and returns the decoded rows.
type QueryRunner interface {
	Run(ctx context.Context, flux string) ([]Row, error)
}

// BucketFinder looks buckets up by name. api.BucketsAPI satisfies it.
type BucketFinder interface {
	FindBucketByName(ctx context.Context, bucketName string) (*domain.Bucket, error)
}

// Client is an InfluxDB-backed sample store.
type Client struct {
	cfg     config.InfluxDBConfig
	schema  Schema
	sdk     influxdb2.Client
	runner  QueryRunner
	buckets BucketFinder
	breaker *breaker.Breaker
	limiter *rate.Limiter

	mu       sync.RWMutex
	resolved string
}

// NewClient connects a client from cfg. The connection is lazy; use Ping or
// the doctor to verify reachability.
func NewClient(cfg config.InfluxDBConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fetch.NewValidationError("INFLUXDB_TOKEN", "is required")
	}

	timeoutSecs := uint(cfg.Timeout().Seconds())
	if timeoutSecs < 1 {
		timeoutSecs = 1
	}
	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(timeoutSecs).
		SetTLSConfig(&tls.Config{
			InsecureSkipVerify: !cfg.VerifySSL, //nolint:gosec // VERIFY_SSL=false is an explicit operator choice
			MinVersion:         tls.VersionTLS12,
		})
	sdk := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	if !cfg.VerifySSL {
		logging.Warn().Str("url", logging.RedactURL(cfg.URL)).Msg("InfluxDB TLS certificate verification is disabled")
	}

	c := newClient(cfg, sdkRunner{api: sdk.QueryAPI(cfg.Org)}, sdk.BucketsAPI())
	c.sdk = sdk
	return c, nil
}

// newClient wires a client around arbitrary runner and finder implementations.
func newClient(cfg config.InfluxDBConfig, runner QueryRunner, buckets BucketFinder) *Client {
	bcfg := breaker.DefaultConfig("influxdb-query")
	bcfg.IsSuccessful = func(err error) bool {
		return err == nil || isQueryError(err)
	}

	burst := cfg.QueryBurst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.MaxQueriesPerSecond)
	if cfg.MaxQueriesPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Client{
		cfg: cfg,
		schema: Schema{
			Measurement: cfg.Measurement,
			SessionTag:  cfg.SessionTag,
			ContentTag:  cfg.ContentTag,
			EdgeTag:     cfg.EdgeTag,
		},
		runner:  runner,
		buckets: buckets,
		breaker: breaker.New(bcfg),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Name returns the backend name.
func (c *Client) Name() string {
	return BackendName
}

// Schema returns the measurement and tag names in use.
func (c *Client) Schema() Schema {
	return c.schema
}

// Close releases idle connections.
func (c *Client) Close() {
	if c.sdk != nil {
		c.sdk.Close()
	}
}

// Ping reports whether the server answers /ping.
func (c *Client) Ping(ctx context.Context) error {
	if c.sdk == nil {
		return nil
	}
	err := c.breaker.Do(func() error {
		ok, err := c.sdk.Ping(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("server did not answer ping")
		}
		return nil
	})
	if err != nil {
		return upstream("ping", err)
	}
	return nil
}

// query runs flux through the limiter and the breaker.
func (c *Client) query(ctx context.Context, op, flux string) ([]Row, error) {
	if c.cfg.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout())
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, upstream(op, fmt.Errorf("rate limiter: %w", err))
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.runner.Run(ctx, flux)
	})
	if err != nil {
		return nil, classify(op, err)
	}
	rows, _ := result.([]Row)
	return rows, nil
}

// sdkRunner adapts api.QueryAPI to QueryRunner.
type sdkRunner struct {
	api api.QueryAPI
}

func (r sdkRunner) Run(ctx context.Context, flux string) ([]Row, error) {
	result, err := r.api.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := result.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close InfluxDB query result")
		}
	}()

	var rows []Row
	for result.Next() {
		rec := result.Record()
		rows = append(rows, Row{
			Time:        rec.Time(),
			Measurement: rec.Measurement(),
			Field:       rec.Field(),
			Value:       rec.Value(),
			Values:      rec.Values(),
		})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// statusCode extracts the HTTP status of an InfluxDB API error, or 0.
func statusCode(err error) int {
	var he *ihttp.Error
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// isQueryError reports errors caused by the query text rather than the
// server, which must not trip the breaker.
func isQueryError(err error) bool {
	switch statusCode(err) {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func upstream(op string, err error) *fetch.UpstreamError {
	return &fetch.UpstreamError{Backend: BackendName, Op: op, Err: err}
}

// classify maps a query failure onto the fetch error kinds.
func classify(op string, err error) error {
	var ue *fetch.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	if isQueryError(err) {
		var he *ihttp.Error
		errors.As(err, &he)
		reason := he.Message
		if reason == "" {
			reason = he.Error()
		}
		return fetch.NewValidationError("query", "%s", reason)
	}
	return upstream(op, err)
}
