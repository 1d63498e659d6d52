// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package config

import (
	"os"
	"strings"
)

// getMapEnv reads a map-valued environment variable in K=V,K2=V2 form.
// Values may themselves contain "=" (header values often do), so each
// pair is split on the first "=" only. Malformed pairs are skipped.
// Returns defaultValue when the variable is unset or yields no pairs.
func getMapEnv(key string, defaultValue map[string]string) map[string]string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	result := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		k := strings.TrimSpace(parts[0])
		v := strings.TrimSpace(parts[1])
		if k == "" {
			continue
		}
		result[k] = v
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
