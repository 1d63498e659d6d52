// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package services

import (
	"context"
	"time"
)

// CacheJanitorService sweeps expired visual signatures out of the cache.
// Expiry is also enforced on read, so the janitor only bounds memory; a
// restart loses nothing but time.
type CacheJanitorService struct {
	loop     IntervalLoop
	interval time.Duration
	name     string
}

// NewCacheJanitorService wraps the signature cache's sweep loop. A
// non-positive interval falls back to the cache's own default.
func NewCacheJanitorService(loop IntervalLoop, interval time.Duration) *CacheJanitorService {
	return &CacheJanitorService{loop: loop, interval: interval, name: "cache-janitor"}
}

// Serve implements suture.Service.
func (s *CacheJanitorService) Serve(ctx context.Context) error {
	return serveIntervalLoop(ctx, s.name, s.loop, s.interval)
}

// String identifies the service in supervisor logs.
func (s *CacheJanitorService) String() string {
	return s.name
}
