// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package influx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shamikatamazon/cmcd/internal/fetch"
	"github.com/shamikatamazon/cmcd/internal/logging"
	"github.com/shamikatamazon/cmcd/internal/metrics"
	"github.com/shamikatamazon/cmcd/internal/models"
)

var _ fetch.Fetcher = (*Client)(nil)

// ErrNoBucket is wrapped when none of the configured buckets exist.
var ErrNoBucket = errors.New("no configured bucket exists")

// Fetch returns the samples matching req in time order.
func (c *Client) Fetch(ctx context.Context, req fetch.Request) (samples []models.Sample, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordFetch(BackendName, "fetch", time.Since(start), len(samples), err)
	}()

	tr, err := req.Resolve()
	if err != nil {
		return nil, err
	}

	bucket, err := c.ResolveBucket(ctx)
	if err != nil {
		return nil, err
	}

	flux := SampleQuery(bucket, tr, req, c.schema)
	logging.Ctx(ctx).Debug().Str("bucket", bucket).Str("range", tr.Raw).Msg("Fetching CMCD samples")

	rows, err := c.query(ctx, "fetch", flux)
	if err != nil {
		return nil, err
	}
	return Pivot(rows, c.schema), nil
}

// ResolveBucket returns the first configured bucket that exists, caching
// the answer for the life of the client.
func (c *Client) ResolveBucket(ctx context.Context) (string, error) {
	c.mu.RLock()
	resolved := c.resolved
	c.mu.RUnlock()
	if resolved != "" {
		return resolved, nil
	}

	candidates := c.cfg.Buckets()
	for _, name := range candidates {
		var found, forbidden bool
		err := c.breaker.Do(func() error {
			b, err := c.buckets.FindBucketByName(ctx, name)
			if err != nil {
				switch {
				case isNotFound(err):
					return nil
				case statusCode(err) == http.StatusForbidden:
					// The server answered; the token just may not list buckets.
					forbidden = true
					return nil
				}
				return err
			}
			found = b != nil
			return nil
		})
		if err != nil {
			return "", upstream("resolve_bucket", err)
		}

		if forbidden {
			// A token scoped to a single bucket may not list buckets.
			c.setResolved(candidates[0])
			logging.Warn().Str("bucket", candidates[0]).Msg("Token cannot list buckets; using the configured bucket")
			return candidates[0], nil
		}
		if found {
			c.setResolved(name)
			logging.Info().Str("bucket", name).Msg("Resolved InfluxDB bucket")
			return name, nil
		}
		logging.Debug().Str("bucket", name).Msg("Bucket not found, trying next")
	}

	return "", upstream("resolve_bucket", fmt.Errorf("%w: tried %s", ErrNoBucket, strings.Join(candidates, ", ")))
}

func (c *Client) setResolved(name string) {
	c.mu.Lock()
	c.resolved = name
	c.mu.Unlock()
}

// isNotFound matches both the API 404 and the client's own lookup miss.
func isNotFound(err error) bool {
	if statusCode(err) == http.StatusNotFound {
		return true
	}
	return statusCode(err) == 0 && strings.Contains(err.Error(), "not found")
}
