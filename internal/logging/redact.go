// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package logging

import "strings"

// RedactSecret masks a credential for safe logging, keeping just enough of
// the value to tell configured keys apart. Short values are fully masked.
//
//	logging.Debug().Str("api_key", logging.RedactSecret(key)).Msg("Provider configured")
func RedactSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-2:]
}

// RedactURL strips query parameters from a URL before logging. Provider
// endpoints carry API keys in the query string; the path is enough to
// diagnose which endpoint was called.
func RedactURL(u string) string {
	if idx := strings.IndexByte(u, '?'); idx >= 0 {
		return u[:idx]
	}
	return u
}
