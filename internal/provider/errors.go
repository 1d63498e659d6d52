// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider failure classification. Callers branch on
// these with errors.Is to decide between degraded scoring and hard failure.
var (
	// ErrUnavailable indicates the provider could not be reached or refused
	// to serve the request: transport failures, HTTP 5xx, rate limiting
	// exhausted, or an open circuit breaker.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrMalformedResponse indicates the provider responded but the payload
	// was unusable: undecodable JSON, empty completions, refusals, or
	// truncated output.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Error wraps a provider failure with the provider name and operation
// that produced it. It preserves the underlying error chain for errors.Is.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Outcome classifies an error into the label values used by the provider
// request metrics: "success", "unavailable", "malformed", or "error".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "error"
	}
}
