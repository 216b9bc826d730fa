// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

package fetch

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable matches any UpstreamError via errors.Is.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ValidationError reports a missing or invalid operation parameter.
type ValidationError struct {
	Param  string
	Reason string
}

// NewValidationError creates a ValidationError for param.
func NewValidationError(param, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

// UpstreamError reports that a store could not be reached or refused the
// credentials. Err is the underlying connectivity detail, kept verbatim.
type UpstreamError struct {
	Backend string
	Op      string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Backend, e.Op, ErrUpstreamUnavailable, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUpstreamUnavailable) true for every UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsUpstreamUnavailable reports whether err carries an UpstreamError.
func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
