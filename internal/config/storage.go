// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package config

import (
	"fmt"
	"time"
)

// StoreConfig selects the item registry backend.
//
// Environment variables: RECLAIM_STORE_BACKEND, RECLAIM_STORE_PATH.
type StoreConfig struct {
	// Backend is "memory" or "badger" (default: memory).
	Backend string `koanf:"backend" validate:"oneof=memory badger"`

	// Path is the BadgerDB directory; ignored by the memory backend.
	Path string `koanf:"path"`
}

// DefaultStoreConfig returns the compiled-in item store settings.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Backend: "memory"}
}

// Validate checks cross-field constraints not expressible as tags.
func (c *StoreConfig) Validate() error {
	if c.Backend == "badger" && c.Path == "" {
		return fmt.Errorf("RECLAIM_STORE_PATH is required for the badger store backend")
	}
	return nil
}

// HistoryConfig controls the match-run audit trail.
//
// Environment variables: RECLAIM_HISTORY_BACKEND, RECLAIM_HISTORY_PATH,
// RECLAIM_HISTORY_RETENTION, RECLAIM_HISTORY_BUFFER,
// RECLAIM_HISTORY_PRUNE_INTERVAL.
type HistoryConfig struct {
	// Backend is "memory" or "duckdb" (default: memory).
	Backend string `koanf:"backend" validate:"oneof=memory duckdb"`

	// Path is the DuckDB database file; ignored by the memory backend.
	Path string `koanf:"path"`

	// Retention is how long run records are kept before the pruner drops
	// them (default: 720h).
	Retention time.Duration `koanf:"retention" validate:"required"`

	// Buffer is the async recorder queue depth; the oldest record is
	// dropped with a warning when a run finishes faster than the backend
	// writes (default: 256).
	Buffer int `koanf:"buffer" validate:"gte=1"`

	// PruneInterval is how often the pruner runs (default: 24h).
	PruneInterval time.Duration `koanf:"prune_interval"`
}

// DefaultHistoryConfig returns the compiled-in history settings.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Backend:       "memory",
		Retention:     720 * time.Hour,
		Buffer:        256,
		PruneInterval: 24 * time.Hour,
	}
}

// Validate checks cross-field constraints not expressible as tags.
func (c *HistoryConfig) Validate() error {
	if c.Backend == "duckdb" && c.Path == "" {
		return fmt.Errorf("RECLAIM_HISTORY_PATH is required for the duckdb history backend")
	}
	return nil
}
