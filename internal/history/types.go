// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package history

import (
	"context"
	"fmt"
	"time"

	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/models"
)

// RunRecord summarizes one completed match run. Records are written by
// the orchestrator after every run, kept for the configured retention
// window, and served through the runs API for operational review of
// score quality and degradation frequency.
type RunRecord struct {
	RunID      string          `json:"run_id"`
	TargetID   string          `json:"target_id"`
	TargetType models.ItemType `json:"target_type"`

	// PoolSize is the number of opposite-type candidates considered;
	// Filtered of those were rejected by the pre-filter, Scored survived
	// to scoring, Matched cleared the significance threshold and Notified
	// produced notification intents.
	PoolSize int `json:"pool_size"`
	Filtered int `json:"filtered"`
	Scored   int `json:"scored"`
	Matched  int `json:"matched"`
	Notified int `json:"notified"`

	// Degraded is true when the run was rescored with the deterministic
	// fallback rubric after the primary evaluator became unavailable.
	Degraded bool `json:"degraded"`

	// TopScore is the highest final score in the run, 0 when nothing
	// matched.
	TopScore int `json:"top_score"`

	ElapsedMS int64     `json:"elapsed_ms"`
	StartedAt time.Time `json:"started_at"`
}

// Store defines the interface for run record persistence.
type Store interface {
	// Save persists a run record.
	Save(ctx context.Context, record *RunRecord) error

	// Get retrieves a record by run ID.
	Get(ctx context.Context, runID string) (*RunRecord, error)

	// Query retrieves records matching the filter, most recent first.
	Query(ctx context.Context, filter QueryFilter) ([]RunRecord, error)

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// DeleteOlderThan removes records whose run started before the given
	// time and returns how many were removed.
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)

	// Stats returns aggregate statistics over the stored records.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the store's resources.
	Close() error
}

// QueryFilter defines filtering options for run history queries.
type QueryFilter struct {
	// TargetID filters by the item the run was scored for.
	TargetID string `json:"target_id,omitempty"`

	// TargetType filters by the target's side of the registry.
	TargetType models.ItemType `json:"target_type,omitempty"`

	// Degraded filters by fallback usage when set.
	Degraded *bool `json:"degraded,omitempty"`

	// MinTopScore keeps only runs whose best score reached this value.
	MinTopScore int `json:"min_top_score,omitempty"`

	// StartTime and EndTime bound the run start time.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Limit is the maximum number of results.
	Limit int `json:"limit,omitempty"`

	// Offset for pagination.
	Offset int `json:"offset,omitempty"`
}

// DefaultQueryFilter returns a sensible default filter.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}

// Stats summarizes the stored run records.
type Stats struct {
	TotalRuns       int64            `json:"total_runs"`
	RunsByType      map[string]int64 `json:"runs_by_type"`
	DegradedRuns    int64            `json:"degraded_runs"`
	AverageTopScore float64          `json:"average_top_score"`
	OldestRun       *time.Time       `json:"oldest_run,omitempty"`
	NewestRun       *time.Time       `json:"newest_run,omitempty"`
}

// BackendType selects the run history implementation.
type BackendType string

const (
	// BackendMemory keeps records in process memory (default, not
	// persistent).
	BackendMemory BackendType = "memory"

	// BackendDuckDB persists records in an embedded DuckDB database.
	BackendDuckDB BackendType = "duckdb"
)

// Open creates the configured history store backend.
func Open(cfg config.HistoryConfig) (Store, error) {
	switch BackendType(cfg.Backend) {
	case BackendDuckDB:
		return OpenDuckDBStore(cfg.Path)
	case BackendMemory, "":
		return NewMemoryStore(0), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}
