// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nadavby/reclaim/internal/metrics"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for development and testing. Records are lost on restart.
type MemoryStore struct {
	records []RunRecord
	mu      sync.RWMutex
	maxLen  int
}

// NewMemoryStore creates a new in-memory run history store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		records: make([]RunRecord, 0, maxLen),
		maxLen:  maxLen,
	}
}

// Save persists a run record.
func (s *MemoryStore) Save(ctx context.Context, record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Enforce max length by removing the oldest 10%
	if len(s.records) >= s.maxLen {
		removeCount := s.maxLen / 10
		if removeCount < 1 {
			removeCount = 1
		}
		s.records = s.records[removeCount:]
	}

	s.records = append(s.records, *record)
	return nil
}

// Get retrieves a record by run ID.
func (s *MemoryStore) Get(ctx context.Context, runID string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.records {
		if s.records[i].RunID == runID {
			record := s.records[i]
			return &record, nil
		}
	}

	return nil, fmt.Errorf("run record not found: %s", runID)
}

// Query retrieves records matching the filter, most recent first.
func (s *MemoryStore) Query(ctx context.Context, filter QueryFilter) ([]RunRecord, error) {
	defer func(start time.Time) { metrics.RecordHistoryQuery("query", time.Since(start)) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []RunRecord
	skipped := 0

	for i := len(s.records) - 1; i >= 0; i-- { // Iterate in reverse for recent-first
		record := s.records[i]

		if !matchesFilter(&record, &filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}

		results = append(results, record)

		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}

	return results, nil
}

// matchesFilter returns true if the record matches all filter criteria.
func matchesFilter(record *RunRecord, filter *QueryFilter) bool {
	if filter.TargetID != "" && record.TargetID != filter.TargetID {
		return false
	}
	if filter.TargetType != "" && record.TargetType != filter.TargetType {
		return false
	}
	if filter.Degraded != nil && record.Degraded != *filter.Degraded {
		return false
	}
	if filter.MinTopScore > 0 && record.TopScore < filter.MinTopScore {
		return false
	}
	if filter.StartTime != nil && record.StartedAt.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && record.StartedAt.After(*filter.EndTime) {
		return false
	}
	return true
}

// Count returns the number of records matching the filter.
func (s *MemoryStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.records {
		if matchesFilter(&s.records[i], &filter) {
			count++
		}
	}

	return count, nil
}

// DeleteOlderThan removes records whose run started before the given time.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []RunRecord
	var deleted int64

	for idx := range s.records {
		if s.records[idx].StartedAt.Before(olderThan) {
			deleted++
		} else {
			kept = append(kept, s.records[idx])
		}
	}

	s.records = kept
	return deleted, nil
}

// Stats returns aggregate statistics over the stored records.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	defer func(start time.Time) { metrics.RecordHistoryQuery("stats", time.Since(start)) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		TotalRuns:  int64(len(s.records)),
		RunsByType: make(map[string]int64),
	}

	var scoreSum int64
	for idx := range s.records {
		record := &s.records[idx]
		stats.RunsByType[string(record.TargetType)]++
		if record.Degraded {
			stats.DegradedRuns++
		}
		scoreSum += int64(record.TopScore)

		if stats.OldestRun == nil || record.StartedAt.Before(*stats.OldestRun) {
			t := record.StartedAt
			stats.OldestRun = &t
		}
		if stats.NewestRun == nil || record.StartedAt.After(*stats.NewestRun) {
			t := record.StartedAt
			stats.NewestRun = &t
		}
	}

	if stats.TotalRuns > 0 {
		stats.AverageTopScore = float64(scoreSum) / float64(stats.TotalRuns)
	}

	return stats, nil
}

// Len returns the number of records in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
