// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package cmcd

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinFields is the number of tab-separated fields a usable log line has.
const MinFields = 10

// TypeQuery is the CMCD type for data carried in the CMCD query argument.
const TypeQuery = "query"

const headerPrefix = "cmcd-"

var (
	// ErrShortLine is returned for lines with fewer than MinFields fields.
	ErrShortLine = errors.New("log line has too few fields")

	// ErrInvalidTimestamp is returned when field 0 is not epoch seconds.
	ErrInvalidTimestamp = errors.New("log line has an invalid timestamp")
)

// beaconNamespace seeds the deterministic beacon IDs.
var beaconNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://cta.tech/cmcd/cloudfront-realtime-log"))

// Beacon is one parsed log line.
type Beacon struct {
	ID           uuid.UUID
	Timestamp    time.Time
	ClientIP     string
	Status       string
	URI          string
	TimeTaken    int64
	EdgeLocation string

	// Data maps a CMCD type to its key/value pairs.
	Data map[string]map[string]string
}

// HasData reports whether the line carried any CMCD key.
func (b *Beacon) HasData() bool {
	for _, kv := range b.Data {
		if len(kv) > 0 {
			return true
		}
	}
	return false
}

// ParseLogLine parses one CloudFront real-time log line.
func ParseLogLine(line string) (*Beacon, error) {
	line = strings.TrimSpace(line)
	fields := strings.Split(line, "\t")
	if len(fields) < MinFields {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrShortLine, len(fields), MinFields)
	}

	ts, err := parseEpoch(fields[0])
	if err != nil {
		return nil, err
	}

	b := &Beacon{
		ID:           uuid.NewSHA1(beaconNamespace, []byte(line)),
		Timestamp:    ts,
		ClientIP:     fields[1],
		Status:       fields[2],
		URI:          fields[4],
		TimeTaken:    parseDigits(fields[7]),
		EdgeLocation: fields[8],
		Data:         make(map[string]map[string]string),
	}

	headers, err := url.QueryUnescape(fields[6])
	if err != nil {
		// A malformed escape leaves the block as logged.
		headers = fields[6]
	}
	for _, h := range strings.Split(headers, "\n") {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if !strings.HasPrefix(name, headerPrefix) || len(name) == len(headerPrefix) {
			continue
		}
		b.merge(name[len(headerPrefix):], ParsePairs(strings.TrimSpace(value)))
	}

	if q := queryData(b.URI); q != "" {
		b.merge(TypeQuery, ParsePairs(q))
	}
	return b, nil
}

func (b *Beacon) merge(kind string, pairs map[string]string) {
	if len(pairs) == 0 {
		return
	}
	dst, ok := b.Data[kind]
	if !ok {
		dst = make(map[string]string, len(pairs))
		b.Data[kind] = dst
	}
	for k, v := range pairs {
		dst[k] = v
	}
}

// ParsePairs splits a CMCD payload such as `bl=2100,br=3200,sid="abc",bs`
// into key/value pairs. Quotes are stripped, commas inside quotes are kept,
// and a key with no value is the boolean true.
func ParsePairs(payload string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitOutsideQuotes(payload, ',') {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if !ok {
			out[k] = "true"
			continue
		}
		out[k] = strings.Trim(strings.TrimSpace(v), `"`)
	}
	return out
}

func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// queryData returns the decoded CMCD query argument of uri, if any.
func queryData(uri string) string {
	_, rawQuery, ok := strings.Cut(uri, "?")
	if !ok {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	return values.Get("CMCD")
}

func parseEpoch(s string) (time.Time, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 || secs*1000 >= math.MaxInt64 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	ms := int64(secs * 1000)
	return time.UnixMilli(ms).UTC(), nil
}

// parseDigits returns s as an integer when it is all digits, otherwise 0.
func parseDigits(s string) int64 {
	if !isDigits(s) {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
