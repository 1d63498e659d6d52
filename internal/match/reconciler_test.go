// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nadavby/reclaim/internal/models"
)

// typedSource serves distinct pools per item type, the way a real store
// does when the reconciler fetches lost targets and the orchestrator then
// fetches found candidates.
type typedSource struct {
	lost  []*models.Item
	found []*models.Item
	err   error
}

func (s *typedSource) FindCandidates(_ context.Context, itemType models.ItemType, _ bool) ([]*models.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	if itemType == models.ItemTypeLost {
		return s.lost, nil
	}
	return s.found, nil
}

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]NotificationIntent
	err     error
}

func (p *capturePublisher) PublishAll(intents []NotificationIntent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, intents)
	return nil
}

func (p *capturePublisher) batchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

// reconcilePair returns a lost report and a found report that the
// fallback rubric scores at 100: same category, same coordinates, and
// well past the shared-token cap.
func reconcilePair(base time.Time) (*models.Item, *models.Item) {
	lost := testItem("recon-lost", models.ItemTypeLost, func(i *models.Item) {
		i.UserID = "owner-9"
		i.Category = "bags"
		i.Description = "black leather backpack with silver zipper"
		i.Location = models.CoordinateLocation(32.0853, 34.7818)
		i.Timestamp = base.Add(-24 * time.Hour)
	})
	found := testItem("recon-found", models.ItemTypeFound, func(i *models.Item) {
		i.Category = "bags"
		i.Description = "black leather backpack with silver zipper found"
		i.Location = models.CoordinateLocation(32.0853, 34.7818)
		i.Timestamp = base.Add(-time.Hour)
	})
	return lost, found
}

// TestReconcileOnce verifies a sweep re-matches every comparable
// unresolved lost report and publishes the resulting intents.
func TestReconcileOnce(t *testing.T) {
	now := time.Now().UTC()
	lost, found := reconcilePair(now)
	// No description, category, or image: nothing to compare, so the
	// sweep skips it without starting a run.
	bare := testItem("recon-bare", models.ItemTypeLost, nil)

	source := &typedSource{lost: []*models.Item{lost, bare}, found: []*models.Item{found}}
	orch := NewOrchestrator(nil, nil, nil, nil, source)
	pub := &capturePublisher{}

	rec := NewReconciler(orch, source, pub, time.Hour)
	stats, err := rec.ReconcileOnce(context.Background())
	if err != nil {
		t.Fatalf("ReconcileOnce returned error: %v", err)
	}

	if stats.Targets != 2 {
		t.Errorf("Expected 2 targets, got %d", stats.Targets)
	}
	if stats.Runs != 1 {
		t.Errorf("Expected 1 run (bare report skipped), got %d", stats.Runs)
	}
	if stats.Matched != 1 || stats.Notified != 1 {
		t.Errorf("Expected 1 match and 1 intent, got %+v", stats)
	}
	if stats.Errors != 0 {
		t.Errorf("Expected no errors, got %d", stats.Errors)
	}

	if pub.batchCount() != 1 {
		t.Fatalf("Expected 1 published batch, got %d", pub.batchCount())
	}
	intent := pub.batches[0][0]
	if intent.UserID != "owner-9" {
		t.Errorf("Expected intent for the lost-side owner, got %s", intent.UserID)
	}
	if intent.ItemID != lost.ID || intent.MatchedItemID != found.ID {
		t.Errorf("Expected intent linking %s to %s, got %+v", lost.ID, found.ID, intent)
	}
}

// TestReconcileOnceNilBus verifies intents are still counted when no bus
// is wired, so operators can see what delivery would have done.
func TestReconcileOnceNilBus(t *testing.T) {
	now := time.Now().UTC()
	lost, found := reconcilePair(now)
	source := &typedSource{lost: []*models.Item{lost}, found: []*models.Item{found}}
	orch := NewOrchestrator(nil, nil, nil, nil, source)

	rec := NewReconciler(orch, source, nil, time.Hour)
	stats, err := rec.ReconcileOnce(context.Background())
	if err != nil {
		t.Fatalf("ReconcileOnce returned error: %v", err)
	}
	if stats.Notified != 1 {
		t.Errorf("Expected 1 counted intent without a bus, got %d", stats.Notified)
	}
}

// TestReconcileOncePoolError verifies a failed target fetch aborts the
// sweep.
func TestReconcileOncePoolError(t *testing.T) {
	source := &typedSource{err: errors.New("store offline")}
	orch := NewOrchestrator(nil, nil, nil, nil, source)

	rec := NewReconciler(orch, source, nil, time.Hour)
	if _, err := rec.ReconcileOnce(context.Background()); err == nil {
		t.Fatal("Expected an error when the target fetch fails")
	}
}

// TestReconcileOncePublishError verifies delivery failures are counted
// but do not abort the sweep.
func TestReconcileOncePublishError(t *testing.T) {
	now := time.Now().UTC()
	lost, found := reconcilePair(now)
	source := &typedSource{lost: []*models.Item{lost}, found: []*models.Item{found}}
	orch := NewOrchestrator(nil, nil, nil, nil, source)
	pub := &capturePublisher{err: errors.New("bus closed")}

	rec := NewReconciler(orch, source, pub, time.Hour)
	stats, err := rec.ReconcileOnce(context.Background())
	if err != nil {
		t.Fatalf("ReconcileOnce returned error: %v", err)
	}
	if stats.Errors != 1 {
		t.Errorf("Expected 1 error from the failed publish, got %d", stats.Errors)
	}
	if stats.Runs != 1 || stats.Matched != 1 {
		t.Errorf("Expected the run itself to complete, got %+v", stats)
	}
}

// TestReconcileOnceCanceled verifies cancellation stops the sweep between
// targets.
func TestReconcileOnceCanceled(t *testing.T) {
	now := time.Now().UTC()
	lost, found := reconcilePair(now)
	source := &typedSource{lost: []*models.Item{lost}, found: []*models.Item{found}}
	orch := NewOrchestrator(nil, nil, nil, nil, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := NewReconciler(orch, source, nil, time.Hour)
	if _, err := rec.ReconcileOnce(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

// TestReconcilerRun verifies the loop sweeps on its interval and stops
// with the context.
func TestReconcilerRun(t *testing.T) {
	now := time.Now().UTC()
	lost, found := reconcilePair(now)
	source := &typedSource{lost: []*models.Item{lost}, found: []*models.Item{found}}
	orch := NewOrchestrator(nil, nil, nil, nil, source)
	pub := &capturePublisher{}

	rec := NewReconciler(orch, source, pub, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := rec.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
	if pub.batchCount() == 0 {
		t.Error("Expected at least one sweep to publish before the deadline")
	}
}

// TestNewReconcilerDefaultInterval verifies a non-positive interval falls
// back to the hourly default.
func TestNewReconcilerDefaultInterval(t *testing.T) {
	rec := NewReconciler(nil, nil, nil, 0)
	if rec.interval != time.Hour {
		t.Errorf("Expected default interval 1h, got %s", rec.interval)
	}
}
