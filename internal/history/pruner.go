// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package history

import (
	"context"
	"time"

	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/metrics"
)

const (
	defaultRetention     = 720 * time.Hour // 30 days
	defaultPruneInterval = 24 * time.Hour
	pruneTimeout         = time.Minute
)

// Pruner enforces the history retention window by periodically deleting
// run records older than the configured retention.
type Pruner struct {
	store     Store
	retention time.Duration
	interval  time.Duration
}

// NewPruner creates a pruner for the given store. Non-positive values
// fall back to a 30 day retention checked daily.
func NewPruner(store Store, retention, interval time.Duration) *Pruner {
	if retention <= 0 {
		retention = defaultRetention
	}
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  interval,
	}
}

// Run prunes on the configured interval until the context is canceled.
func (p *Pruner) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.prune()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// prune deletes everything older than the retention window.
func (p *Pruner) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-p.retention)
	removed, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Run history pruning failed")
		return
	}

	metrics.RecordHistoryPrune(int(removed))
}
