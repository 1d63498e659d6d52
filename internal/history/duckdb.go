// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
)

// DuckDBStore implements Store using DuckDB for persistent storage.
// Run records survive restarts, which is what makes silent score
// depression diagnosable after the fact.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore creates a DuckDB-backed history store from an existing
// connection. The caller is responsible for ensuring the run_records
// table exists.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// OpenDuckDBStore opens (or creates) a DuckDB database at the given
// path and initializes the run_records schema.
func OpenDuckDBStore(path string) (*DuckDBStore, error) {
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("duckdb", path+"?access_mode=read_write")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	store := NewDuckDBStore(db)
	if err := store.CreateTable(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// CreateTable creates the run_records table if it doesn't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS run_records (
			run_id TEXT PRIMARY KEY,
			target_id TEXT NOT NULL,
			target_type TEXT NOT NULL,
			pool_size INTEGER NOT NULL,
			filtered INTEGER NOT NULL,
			scored INTEGER NOT NULL,
			matched INTEGER NOT NULL,
			notified INTEGER NOT NULL,
			degraded BOOLEAN NOT NULL,
			top_score INTEGER NOT NULL,
			elapsed_ms BIGINT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for common query patterns
		CREATE INDEX IF NOT EXISTS idx_runs_started_at ON run_records(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_target_id ON run_records(target_id);
		CREATE INDEX IF NOT EXISTS idx_runs_target_type ON run_records(target_type);
		CREATE INDEX IF NOT EXISTS idx_runs_degraded ON run_records(degraded);
	`

	// Split and execute each statement
	statements := strings.Split(query, ";")
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute history schema statement: %w", err)
		}
	}

	logging.Info().Msg("Run records table created/verified")
	return nil
}

// Save persists a run record to DuckDB.
func (s *DuckDBStore) Save(ctx context.Context, record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	query := `
		INSERT INTO run_records (
			run_id, target_id, target_type,
			pool_size, filtered, scored, matched, notified,
			degraded, top_score, elapsed_ms, started_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.RunID,
		record.TargetID,
		string(record.TargetType),
		record.PoolSize,
		record.Filtered,
		record.Scored,
		record.Matched,
		record.Notified,
		record.Degraded,
		record.TopScore,
		record.ElapsedMS,
		record.StartedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save run record: %w", err)
	}

	return nil
}

// Get retrieves a record by run ID.
func (s *DuckDBStore) Get(ctx context.Context, runID string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := s.getBaseQuery(false) + " WHERE run_id = ?"

	row := s.db.QueryRowContext(ctx, query, runID)
	record, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run record not found: %s", runID)
		}
		return nil, fmt.Errorf("get run record: %w", err)
	}

	return record, nil
}

// Query retrieves records matching the filter, most recent first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]RunRecord, error) {
	defer func(start time.Time) { metrics.RecordHistoryQuery("query", time.Since(start)) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := s.buildQuery(filter, false)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan run record row")
			continue
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run records: %w", err)
	}

	return records, nil
}

// Count returns the number of records matching the filter.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := s.buildQuery(filter, true)

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count run records: %w", err)
	}

	return count, nil
}

// DeleteOlderThan removes records whose run started before the given time.
func (s *DuckDBStore) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM run_records WHERE started_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete old run records: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read deleted count: %w", err)
	}

	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", olderThan).Msg("Deleted old run records")
	}

	return count, nil
}

// Stats returns aggregate statistics over the stored records.
func (s *DuckDBStore) Stats(ctx context.Context) (*Stats, error) {
	defer func(start time.Time) { metrics.RecordHistoryQuery("stats", time.Since(start)) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		RunsByType: make(map[string]int64),
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_records").Scan(&total); err != nil {
		return nil, fmt.Errorf("count run records: %w", err)
	}
	stats.TotalRuns = total

	rows, err := s.db.QueryContext(ctx, "SELECT target_type, COUNT(*) FROM run_records GROUP BY target_type")
	if err != nil {
		return nil, fmt.Errorf("count runs by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err == nil {
			stats.RunsByType[key] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type counts: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_records WHERE degraded").Scan(&stats.DegradedRuns); err != nil {
		return nil, fmt.Errorf("count degraded runs: %w", err)
	}

	var avgScore sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, "SELECT AVG(top_score) FROM run_records").Scan(&avgScore); err == nil && avgScore.Valid {
		stats.AverageTopScore = avgScore.Float64
	}

	var oldest, newest sql.NullTime
	err = s.db.QueryRowContext(ctx, "SELECT MIN(started_at), MAX(started_at) FROM run_records").Scan(&oldest, &newest)
	if err == nil {
		if oldest.Valid {
			stats.OldestRun = &oldest.Time
		}
		if newest.Valid {
			stats.NewestRun = &newest.Time
		}
	}

	return stats, nil
}

// Close closes the underlying database connection.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// buildQuery constructs the SQL query based on the filter.
func (s *DuckDBStore) buildQuery(filter QueryFilter, countOnly bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.TargetID != "" {
		conditions = append(conditions, "target_id = ?")
		args = append(args, filter.TargetID)
	}
	if filter.TargetType != "" {
		conditions = append(conditions, "target_type = ?")
		args = append(args, string(filter.TargetType))
	}
	if filter.Degraded != nil {
		conditions = append(conditions, "degraded = ?")
		args = append(args, *filter.Degraded)
	}
	if filter.MinTopScore > 0 {
		conditions = append(conditions, "top_score >= ?")
		args = append(args, filter.MinTopScore)
	}
	if filter.StartTime != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "started_at <= ?")
		args = append(args, *filter.EndTime)
	}

	query := s.getBaseQuery(countOnly)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if !countOnly {
		query += " ORDER BY started_at DESC"
		if filter.Limit > 0 {
			query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		}
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	return query, args
}

// getBaseQuery returns the SELECT statement for run records.
func (s *DuckDBStore) getBaseQuery(countOnly bool) string {
	if countOnly {
		return "SELECT COUNT(*) FROM run_records"
	}
	return `
		SELECT
			run_id, target_id, target_type,
			pool_size, filtered, scored, matched, notified,
			degraded, top_score, elapsed_ms, started_at
		FROM run_records
	`
}

// scanRecord scans one row into a RunRecord using the given scan
// function, which lets it serve both sql.Row and sql.Rows.
func scanRecord(scan func(dest ...interface{}) error) (*RunRecord, error) {
	var record RunRecord
	var targetType string

	err := scan(
		&record.RunID,
		&record.TargetID,
		&targetType,
		&record.PoolSize,
		&record.Filtered,
		&record.Scored,
		&record.Matched,
		&record.Notified,
		&record.Degraded,
		&record.TopScore,
		&record.ElapsedMS,
		&record.StartedAt,
	)
	if err != nil {
		return nil, err
	}

	record.TargetType = models.ItemType(targetType)
	return &record, nil
}
