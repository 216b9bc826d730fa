// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package cmcd parses CloudFront real-time log lines that carry Common Media
Client Data (CTA-5004).

A real-time log line is tab separated. The fields this package reads are:

	0  timestamp (epoch seconds, fractional)
	1  client IP
	2  HTTP status
	4  URI
	6  URL-encoded request headers, one per line
	7  time taken (integer, otherwise 0)
	8  edge location

CMCD arrives either as CMCD-Object, CMCD-Request, CMCD-Session and
CMCD-Status headers or as a single CMCD query argument on the URI. Header
data is filed under the lowercased header suffix ("request", "session", ...)
and query data under "query".

	b, err := cmcd.ParseLogLine(line)
	if err != nil {
	    return err
	}
	sample := b.Sample()

Beacon.Measures flattens a beacon into one record per numeric CMCD key plus a
time_taken record, the shape used when CMCD data is exported as time-series
measures.
*/
package cmcd
