// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package fetch

import (
	"strconv"
	"strings"
	"time"
)

// DefaultTimeRange is the lookback applied when a request leaves time_range empty.
const DefaultTimeRange = "-24h"

// maxLookback bounds parsed ranges so arithmetic on time.Duration cannot overflow.
const maxLookback = 100 * 365 * 24 * time.Hour

// Units accepted in relative time ranges, longest first so "mo" wins over "m"
// and "ms" wins over "m".
var rangeUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"mo", 30 * 24 * time.Hour},
	{"ms", time.Millisecond},
	{"y", 365 * 24 * time.Hour},
	{"w", 7 * 24 * time.Hour},
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// TimeRange is a validated relative lookback such as -24h or -1h30m.
// Raw only ever holds text that passed ParseTimeRange, so it is safe to
// place into a Flux range() call.
type TimeRange struct {
	Raw      string
	Lookback time.Duration
}

// Start resolves the range against now.
func (r TimeRange) Start(now time.Time) time.Time {
	return now.Add(-r.Lookback)
}

// ParseTimeRange parses a relative duration with a leading minus sign.
// An empty string yields DefaultTimeRange.
func ParseTimeRange(s string) (TimeRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultTimeRange
	}
	if !strings.HasPrefix(s, "-") {
		return TimeRange{}, NewValidationError("time_range", "%q must be a negative relative duration such as -24h", s)
	}

	rest := s[1:]
	if rest == "" {
		return TimeRange{}, NewValidationError("time_range", "%q has no duration", s)
	}

	var total time.Duration
	for rest != "" {
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 {
			return TimeRange{}, NewValidationError("time_range", "%q: expected digits at %q", s, rest)
		}
		n, err := strconv.ParseInt(rest[:i], 10, 64)
		if err != nil {
			return TimeRange{}, NewValidationError("time_range", "%q: %v", s, err)
		}
		rest = rest[i:]

		unit, width := matchUnit(rest)
		if width == 0 {
			return TimeRange{}, NewValidationError("time_range", "%q: unknown unit at %q", s, rest)
		}
		rest = rest[width:]

		if n > int64(maxLookback/unit) {
			return TimeRange{}, NewValidationError("time_range", "%q exceeds the maximum lookback", s)
		}
		total += time.Duration(n) * unit
		if total > maxLookback {
			return TimeRange{}, NewValidationError("time_range", "%q exceeds the maximum lookback", s)
		}
	}

	if total == 0 {
		return TimeRange{}, NewValidationError("time_range", "%q is an empty window", s)
	}
	return TimeRange{Raw: s, Lookback: total}, nil
}

func matchUnit(s string) (time.Duration, int) {
	for _, u := range rangeUnits {
		if strings.HasPrefix(s, u.suffix) {
			return u.unit, len(u.suffix)
		}
	}
	return 0, 0
}
