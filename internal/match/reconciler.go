// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package match

import (
	"context"
	"errors"
	"time"

	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
)

// IntentPublisher delivers notification intents discovered outside an
// interactive request. Satisfied by notify.Bus.
type IntentPublisher interface {
	PublishAll(intents []NotificationIntent) error
}

// Reconciler periodically re-matches unresolved lost reports against the
// current found pool. Interactive match runs only see the registry as it
// was at request time; items found afterwards would otherwise stay
// invisible until the owner happens to ask again. Each sweep walks the
// unresolved lost reports oldest first, runs the full pipeline for each,
// and publishes any notification intents to the bus.
type Reconciler struct {
	orch     *Orchestrator
	source   CandidateSource
	bus      IntentPublisher
	interval time.Duration
}

// ReconcileStats summarizes one sweep for logs and tests.
type ReconcileStats struct {
	Targets  int
	Runs     int
	Matched  int
	Notified int
	Errors   int
}

// NewReconciler wires a reconciliation sweep over the given orchestrator.
// bus may be nil, in which case intents are counted but not delivered.
// A non-positive interval falls back to an hour; disabling reconciliation
// is the caller's decision, made by never running the loop.
func NewReconciler(orch *Orchestrator, source CandidateSource, bus IntentPublisher, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reconciler{
		orch:     orch,
		source:   source,
		bus:      bus,
		interval: interval,
	}
}

// Run sweeps on the configured interval until the context is canceled.
// The first sweep happens one full interval after start, so a restart
// loop cannot hammer the providers.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// ReconcileOnce performs a single sweep. Per-target failures are logged
// and counted rather than aborting the sweep; the returned error is
// reserved for context cancellation and pool fetch problems.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	start := time.Now()

	if r.orch == nil || r.source == nil {
		return stats, errors.New("match: reconciler needs an orchestrator and a candidate source")
	}

	targets, err := r.source.FindCandidates(ctx, models.ItemTypeLost, true)
	if err != nil {
		return stats, err
	}
	stats.Targets = len(targets)

	for _, target := range targets {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if target == nil || !target.HasComparableData() {
			continue
		}

		result, err := r.orch.FindMatches(ctx, target)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			stats.Errors++
			logging.Warn().
				Err(err).
				Str("target_id", target.ID).
				Msg("Reconcile run failed, continuing with next target")
			continue
		}

		stats.Runs++
		stats.Matched += len(result.Matches)
		if len(result.Intents) == 0 {
			continue
		}
		stats.Notified += len(result.Intents)
		if r.bus != nil {
			if err := r.bus.PublishAll(result.Intents); err != nil {
				stats.Errors++
				logging.Warn().
					Err(err).
					Str("run_id", result.RunID).
					Int("intents", len(result.Intents)).
					Msg("Failed to publish reconcile intents")
			}
		}
	}

	metrics.RecordReconcileCycle(stats.Targets)
	logging.Info().
		Int("targets", stats.Targets).
		Int("runs", stats.Runs).
		Int("matched", stats.Matched).
		Int("notified", stats.Notified).
		Int("errors", stats.Errors).
		Dur("elapsed", time.Since(start)).
		Msg("Reconciliation sweep finished")
	return stats, nil
}
