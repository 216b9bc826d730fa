// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package analysis turns fetched CMCD samples into buffer-health findings.

Every function here is a pure transformation of an in-memory sample slice:
no I/O, no shared state, no locking. Concurrent callers each work on their
own fetched slice. Inputs are never mutated; sorting happens on copies.

Components:

  - AggregateBitrate / AggregateBitrateBy: mean, min, max and count of defined bitrates
  - BuildTimeline / SummarizeTimeline: per-session ordering and categorized series
  - BufferDetector: low_buffer and sudden_drop events against a threshold
  - Classifier: four independently configurable rules producing PlaybackErrors
  - ListIDs: distinct session and content identifiers in first-seen order
  - EdgeStats: per edge location bitrate and low-buffer summary

Rolling "previous value" state used by the detector and the rules is kept
per session, so an unfiltered multi-session slice never compares a sample
against a different session's history.

Thresholds are configuration, not constants. DefaultConfig documents the
defaults:

	buffer threshold        500 ms
	sudden drop ratio       0.5 (previous level must exceed the threshold)
	sudden drop high ratio  0.8
	underrun floor          100 ms, previous level at least 250 ms
	startup delay           > 2000 ms medium, > 5000 ms high
	bitrate drop ratio      0.5, high when buffer < 500 ms at the same sample
*/
package analysis
