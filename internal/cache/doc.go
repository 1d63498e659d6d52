// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

// Package cache provides the visual signature cache.
//
// A visual signature is the vision provider's distilled description of one
// image (labels, detected objects, dominant colors). Producing one costs a
// provider round-trip with real latency and per-call pricing, while a match
// run compares one target against every unresolved candidate. Without
// caching, scoring a lost item against 50 found items would analyze the
// target image 50 times. With the cache it is analyzed once and the
// signature is reused for the run and for every later run within the TTL.
//
// # Keying
//
// Entries are keyed by normalized image reference, hashed through Key so
// arbitrarily long signed URLs produce bounded keys. Normalization (case
// folding the scheme/host, stripping fragments) happens in the analyzer
// before the ref reaches this package; two spellings of the same ref must
// hit the same entry.
//
// # Expiration
//
// Entries carry a TTL (default 24h). Expired entries are evicted lazily on
// Get and in batches by Sweep. The cache starts no goroutine of its own;
// the supervision tree runs Run as the janitor service:
//
//	sigCache := cache.New(cfg.Cache.SignatureTTL)
//	tree.AddDataService(services.NewCacheJanitorService(sigCache, cfg.Cache.CleanupInterval))
//
// # Observability
//
// Hits, misses, evictions, and entry counts are exported both as Prometheus
// series (cache_hits_total, cache_misses_total, cache_evictions_total,
// cache_entries) and as a Stats snapshot for the ops API:
//
//	stats := sigCache.GetStats()
//	log.Printf("cache: %d keys, %.1f%% hit rate", stats.TotalKeys, sigCache.HitRate())
//
// # Thread Safety
//
// All methods are safe for concurrent use. Reads take an RLock; lazy
// eviction upgrades to a write lock only when an expired entry is found.
package cache
