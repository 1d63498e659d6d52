// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
)

// DefaultSignatureTTL bounds how long a visual signature stays valid. Images
// behind a ref are immutable in practice, but refs themselves get reused by
// upstream feeds, so entries age out after a day.
const DefaultSignatureTTL = 24 * time.Hour

// metricsName is the cache_type label reported to Prometheus.
const metricsName = "signature"

// Entry represents a cached signature with expiration.
type Entry struct {
	Signature *models.VisualSignature
	ExpiresAt time.Time
}

// SignatureCache is a thread-safe TTL cache for vision provider output,
// keyed by normalized image reference. Computing a signature costs a full
// provider round-trip, so one lost item compared against N found items hits
// the provider once for the lost image instead of N times.
//
// The cache never sweeps on its own: Run drives periodic sweeps under the
// supervision tree, and Get evicts lazily on access. This keeps construction
// goroutine-free so tests and short-lived tools can use it directly.
type SignatureCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration

	statsMu   sync.Mutex
	hits      int64
	misses    int64
	evictions int64
	lastSweep time.Time
}

// Stats is a point-in-time snapshot of cache performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
	LastSweep time.Time
}

// New creates a signature cache with the given TTL.
//
// Parameters:
//   - ttl: expiration applied by Set (non-positive falls back to
//     DefaultSignatureTTL)
//
// Unlike a self-cleaning cache, New starts no goroutine. Callers that want
// periodic sweeping run the Run method as a supervised service.
func New(ttl time.Duration) *SignatureCache {
	if ttl <= 0 {
		ttl = DefaultSignatureTTL
	}
	return &SignatureCache{
		entries: make(map[string]Entry),
		ttl:     ttl,
	}
}

// Get retrieves a signature by key with automatic expiration checking.
//
// Returns:
//   - the cached signature if present and not expired
//   - false if the key is absent or the entry aged out (expired entries are
//     removed on access and counted as both a miss and an eviction)
func (c *SignatureCache) Get(key string) (*models.VisualSignature, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.recordMiss()
		c.recordEvictions(1)
		return nil, false
	}

	c.recordHit()
	return entry.Signature, true
}

// Set stores a signature with the cache's default TTL. An existing entry
// under the same key is overwritten, refreshing its expiry.
func (c *SignatureCache) Set(key string, sig *models.VisualSignature) {
	c.SetWithTTL(key, sig, c.ttl)
}

// SetWithTTL stores a signature with a custom TTL.
func (c *SignatureCache) SetWithTTL(key string, sig *models.VisualSignature, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry{
		Signature: sig,
		ExpiresAt: time.Now().Add(ttl),
	}
	size := len(c.entries)
	c.mu.Unlock()

	metrics.SetCacheSize(metricsName, size)
}

// Delete removes a single entry. Safe to call for absent keys.
func (c *SignatureCache) Delete(key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	size := len(c.entries)
	c.mu.Unlock()

	if existed {
		c.recordEvictions(1)
	}
	metrics.SetCacheSize(metricsName, size)
}

// Clear removes all entries in one operation.
func (c *SignatureCache) Clear() {
	c.mu.Lock()
	evicted := len(c.entries)
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	c.recordEvictions(evicted)
	metrics.SetCacheSize(metricsName, 0)
}

// Len returns the current number of entries, expired or not.
func (c *SignatureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes every expired entry and returns how many were evicted.
func (c *SignatureCache) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	evicted := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	c.recordEvictions(evicted)
	c.statsMu.Lock()
	c.lastSweep = now
	c.statsMu.Unlock()

	metrics.SetCacheSize(metricsName, size)
	return evicted
}

// Run sweeps the cache at the given interval until ctx is cancelled. It is
// shaped as a supervised service: it blocks, and returns ctx.Err() on
// shutdown so the supervisor logs a clean exit.
func (c *SignatureCache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// GetStats returns a snapshot of cache performance counters. The returned
// struct is a copy, safe to read without coordination.
func (c *SignatureCache) GetStats() Stats {
	c.mu.RLock()
	totalKeys := int64(len(c.entries))
	c.mu.RUnlock()

	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		TotalKeys: totalKeys,
		LastSweep: c.lastSweep,
	}
}

// HitRate returns the cache hit rate as a percentage.
func (c *SignatureCache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (c *SignatureCache) recordHit() {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
	metrics.RecordCacheHit(metricsName)
}

func (c *SignatureCache) recordMiss() {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
	metrics.RecordCacheMiss(metricsName)
}

func (c *SignatureCache) recordEvictions(n int) {
	if n == 0 {
		return
	}
	c.statsMu.Lock()
	c.evictions += int64(n)
	c.statsMu.Unlock()
	metrics.RecordCacheEviction(metricsName, n)
}

// Key derives a compact cache key from a normalized image reference. Refs
// can be arbitrarily long signed URLs, so the key is a truncated SHA-256 of
// the ref rather than the ref itself.
func Key(ref string) string {
	hash := sha256.Sum256([]byte(ref))
	return fmt.Sprintf("sig:%x", hash[:16])
}
