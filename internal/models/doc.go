// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

/*
Package models defines the data structures shared by the CMCD analytics service.

Key Components:

  - Sample: one CMCD telemetry beacon with explicit optional fields
  - SessionTimeline: time-ordered samples of one playback session
  - BufferEvent: low-buffer and sudden-drop points derived from a timeline
  - PlaybackError: classified anomaly with severity and numeric evidence
  - BitrateStatistic, IDListing, SessionDetails, EdgeLocationStat: aggregates

Derived entities are always computed fresh from fetched samples and returned
by value. Nothing in this package is persisted by the analyzers.
*/
package models
