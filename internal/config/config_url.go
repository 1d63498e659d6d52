// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validateHTTPURL checks a provider base URL. Clients join request paths
// onto these, so a path prefix is fine (gateways use them) but query
// strings and fragments are not.
func validateHTTPURL(rawURL, fieldName string) error {
	if rawURL == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme, got %q", fieldName, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%s must be a base URL without query parameters or fragments", fieldName)
	}
	if strings.Contains(u.Host, " ") {
		return fmt.Errorf("%s contains an invalid host", fieldName)
	}
	return nil
}
