// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Package version holds build information set with -ldflags:
//
//	go build -ldflags "-X github.com/shamikatamazon/cmcd/internal/version.Version=1.4.0" ./cmd/server
package version

import (
	"fmt"
	"os"
	"runtime"
)

// Version and Commit are overridden at link time.
var (
	Version = "dev"
	Commit  = "unknown"
)

// String formats the build for --version output.
func String(binary string) string {
	return fmt.Sprintf("%s %s (%s, %s)", binary, Version, Commit, runtime.Version())
}

// Print writes String to stdout.
func Print(binary string) {
	fmt.Fprintln(os.Stdout, String(binary))
}
