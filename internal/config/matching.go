// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package config

import (
	"fmt"
	"time"
)

// MatchingConfig controls the orchestrator: scoring concurrency, the
// per-candidate provider time budget, result thresholds, and the offline
// reconciliation cadence.
//
// Environment variables: RECLAIM_MATCHING_PARALLELISM,
// RECLAIM_MATCHING_PROVIDER_TIMEOUT, RECLAIM_MATCHING_MATCH_THRESHOLD,
// RECLAIM_MATCHING_NOTIFY_THRESHOLD, RECLAIM_MATCHING_RECONCILE_INTERVAL.
type MatchingConfig struct {
	// Parallelism bounds concurrent candidate scoring per run. Both
	// providers rate-limit aggressively, so this is a fan-out cap, not a
	// throughput knob (default: 4).
	Parallelism int `koanf:"parallelism" validate:"gte=1"`

	// ProviderTimeout is the time budget for one candidate's provider
	// calls, applied on top of each client's own HTTP timeout
	// (default: 30s).
	ProviderTimeout time.Duration `koanf:"provider_timeout" validate:"required"`

	// MatchThreshold is the minimum final score for a candidate to be
	// returned (default: 55). NotifyThreshold additionally gates
	// notification intents (default: 75) and must not be lower than
	// MatchThreshold.
	MatchThreshold  int `koanf:"match_threshold" validate:"gte=0,lte=100"`
	NotifyThreshold int `koanf:"notify_threshold" validate:"gte=0,lte=100"`

	// ReconcileInterval is how often the background reconciliation job
	// re-matches unresolved items; 0 disables it (default: 1h).
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`
}

// DefaultMatchingConfig returns the compiled-in orchestrator settings.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		Parallelism:       4,
		ProviderTimeout:   30 * time.Second,
		MatchThreshold:    55,
		NotifyThreshold:   75,
		ReconcileInterval: time.Hour,
	}
}

// Validate checks cross-field constraints not expressible as tags.
func (c *MatchingConfig) Validate() error {
	if c.NotifyThreshold < c.MatchThreshold {
		return fmt.Errorf("RECLAIM_MATCHING_NOTIFY_THRESHOLD must be greater than or equal to RECLAIM_MATCHING_MATCH_THRESHOLD")
	}
	return nil
}

// WeightsConfig sets the rubric weights rendered into the primary
// evaluator prompt. Weights are percentages and must sum to 100
// (defaults: visual 45, category 35, temporal 10, location 10).
// The deterministic fallback rubric is fixed and unaffected.
//
// Environment variables: RECLAIM_WEIGHTS_VISUAL, RECLAIM_WEIGHTS_CATEGORY,
// RECLAIM_WEIGHTS_TEMPORAL, RECLAIM_WEIGHTS_LOCATION.
type WeightsConfig struct {
	Visual   int `koanf:"visual" validate:"gte=0,lte=100"`
	Category int `koanf:"category" validate:"gte=0,lte=100"`
	Temporal int `koanf:"temporal" validate:"gte=0,lte=100"`
	Location int `koanf:"location" validate:"gte=0,lte=100"`
}

// DefaultWeightsConfig returns the rubric split described in the
// evaluator prompt documentation.
func DefaultWeightsConfig() WeightsConfig {
	return WeightsConfig{Visual: 45, Category: 35, Temporal: 10, Location: 10}
}

// Validate checks the weights form a complete percentage split.
func (c *WeightsConfig) Validate() error {
	if sum := c.Visual + c.Category + c.Temporal + c.Location; sum != 100 {
		return fmt.Errorf("rubric weights must sum to 100, got %d (check RECLAIM_WEIGHTS_VISUAL, RECLAIM_WEIGHTS_CATEGORY, RECLAIM_WEIGHTS_TEMPORAL, RECLAIM_WEIGHTS_LOCATION)", sum)
	}
	return nil
}
