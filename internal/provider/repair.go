// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package provider

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/kaptinlin/jsonrepair"

	"github.com/nadavby/reclaim/internal/metrics"
)

// DecodeLenient unmarshals model output into v, falling back to a JSON
// repair pass when the payload has syntax damage. Completion backends
// routinely emit markdown fences, trailing commas, or truncated objects
// even when asked for strict JSON; the repair pass recovers those instead
// of discarding the whole response.
//
// Returns whether a repair was applied. Non-syntax decode failures (for
// example a type mismatch against v) are returned as-is without a repair
// attempt.
func DecodeLenient(data []byte, v interface{}) (bool, error) {
	err := json.Unmarshal(data, v)
	if err == nil {
		return false, nil
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return false, err
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return false, fmt.Errorf("json repair failed: %w (original: %v)", repairErr, err)
	}
	if strings.TrimSpace(repaired) == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return false, fmt.Errorf("decode after repair: %w", err)
	}

	metrics.RecordPayloadRepair()
	return true, nil
}
