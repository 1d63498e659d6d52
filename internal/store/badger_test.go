// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/nadavby/reclaim/internal/models"
)

// setupBadgerStore creates a BadgerStore backed by an in-memory DB.
func setupBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewBadgerStore(db)
}

// TestBadgerStore_CreateAndGet verifies an item round-trips through
// BadgerDB with the location variant and signature intact.
func TestBadgerStore_CreateAndGet(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()

	item := testItem("lost-1", "user-1", models.ItemTypeLost)
	if err := s.Create(ctx, item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, "lost-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Name != item.Name {
		t.Errorf("Expected name %q, got %q", item.Name, got.Name)
	}
	if !got.Location.HasCoordinates() {
		t.Errorf("Expected coordinate location to survive the round trip, got %+v", got.Location)
	}
	if got.Location.Lat != 32.0853 {
		t.Errorf("Expected latitude 32.0853, got %v", got.Location.Lat)
	}
	if got.Signature == nil || len(got.Signature.Objects) != 1 {
		t.Errorf("Expected signature with 1 object, got %+v", got.Signature)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Expected timestamps stamped on create")
	}
}

// TestBadgerStore_CreateDuplicate verifies duplicate IDs are rejected.
func TestBadgerStore_CreateDuplicate(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testItem("lost-1", "user-1", models.ItemTypeLost)); err != nil {
		t.Fatalf("First create failed: %v", err)
	}

	err := s.Create(ctx, testItem("lost-1", "user-2", models.ItemTypeLost))
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
}

// TestBadgerStore_GetMissing verifies unknown IDs map badger's not
// found error to the store sentinel.
func TestBadgerStore_GetMissing(t *testing.T) {
	s := setupBadgerStore(t)

	_, err := s.Get(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestBadgerStore_Update verifies updates preserve the creation time
// and reject type changes.
func TestBadgerStore_Update(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testItem("item-1", "user-1", models.ItemTypeLost)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	created, err := s.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	updated := testItem("item-1", "user-1", models.ItemTypeLost)
	updated.Name = "black backpack with stickers"
	if err := s.Update(ctx, updated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := s.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if got.Name != "black backpack with stickers" {
		t.Errorf("Expected updated name, got %q", got.Name)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("Expected CreatedAt preserved at %v, got %v", created.CreatedAt, got.CreatedAt)
	}

	flipped := testItem("item-1", "user-1", models.ItemTypeFound)
	err = s.Update(ctx, flipped)
	if err == nil || !strings.Contains(err.Error(), "type is immutable") {
		t.Errorf("Expected immutability error, got %v", err)
	}

	err = s.Update(ctx, testItem("ghost", "user-1", models.ItemTypeLost))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing item, got %v", err)
	}
}

// TestBadgerStore_DeleteRemovesIndex verifies deletes clean up the type
// index so candidate queries stop returning the item.
func TestBadgerStore_DeleteRemovesIndex(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testItem("found-1", "user-1", models.ItemTypeFound)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Delete(ctx, "found-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "found-1"); err != nil {
		t.Fatalf("Second delete should be a no-op, got %v", err)
	}

	if _, err := s.Get(ctx, "found-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	candidates, err := s.FindCandidates(ctx, models.ItemTypeFound, false)
	if err != nil {
		t.Fatalf("FindCandidates failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates after delete, got %d", len(candidates))
	}
}

// TestBadgerStore_FindCandidates verifies the type index drives
// filtering and candidates come back oldest first.
func TestBadgerStore_FindCandidates(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seed := []struct {
		id       string
		itemType models.ItemType
		age      time.Duration
		resolved bool
	}{
		{"found-new", models.ItemTypeFound, 2 * time.Hour, false},
		{"found-old", models.ItemTypeFound, 0, false},
		{"found-resolved", models.ItemTypeFound, time.Hour, true},
		{"lost-1", models.ItemTypeLost, 0, false},
	}
	for _, sd := range seed {
		item := testItem(sd.id, "user-1", sd.itemType)
		item.CreatedAt = base.Add(sd.age)
		item.IsResolved = sd.resolved
		if err := s.Create(ctx, item); err != nil {
			t.Fatalf("Create %s failed: %v", sd.id, err)
		}
	}

	got, err := s.FindCandidates(ctx, models.ItemTypeFound, true)
	if err != nil {
		t.Fatalf("FindCandidates failed: %v", err)
	}
	want := []string{"found-old", "found-new"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d candidates, got %d", len(want), len(got))
	}
	for i, item := range got {
		if item.ID != want[i] {
			t.Errorf("Expected candidates[%d] = %q, got %q", i, want[i], item.ID)
		}
	}

	all, err := s.FindCandidates(ctx, models.ItemTypeFound, false)
	if err != nil {
		t.Fatalf("FindCandidates without exclusion failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 candidates including resolved, got %d", len(all))
	}
}

// TestBadgerStore_Resolve verifies both sides are cross-linked in one
// transaction and a vanished counterpart does not fail the resolution.
func TestBadgerStore_Resolve(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testItem("lost-1", "user-1", models.ItemTypeLost)); err != nil {
		t.Fatalf("Create lost failed: %v", err)
	}
	if err := s.Create(ctx, testItem("found-1", "user-2", models.ItemTypeFound)); err != nil {
		t.Fatalf("Create found failed: %v", err)
	}

	if err := s.Resolve(ctx, "lost-1", "found-1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	lost, _ := s.Get(ctx, "lost-1")
	found, _ := s.Get(ctx, "found-1")
	if !lost.IsResolved || lost.MatchedItemID != "found-1" {
		t.Errorf("Expected lost item resolved against found-1, got %+v", lost)
	}
	if !found.IsResolved || found.MatchedItemID != "lost-1" {
		t.Errorf("Expected found item resolved against lost-1, got %+v", found)
	}

	if err := s.Create(ctx, testItem("lost-2", "user-3", models.ItemTypeLost)); err != nil {
		t.Fatalf("Create lost-2 failed: %v", err)
	}
	if err := s.Resolve(ctx, "lost-2", "found-gone"); err != nil {
		t.Fatalf("Resolve with missing counterpart failed: %v", err)
	}

	if err := s.Resolve(ctx, "ghost", "found-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing item, got %v", err)
	}
}

// TestBadgerStore_ListAndCount verifies listing order and the key-only
// count.
func TestBadgerStore_ListAndCount(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		item := testItem(id, "user-1", models.ItemTypeLost)
		item.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.Create(ctx, item); err != nil {
			t.Fatalf("Create %s failed: %v", id, err)
		}
	}

	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"new", "mid", "old"}
	if len(items) != len(want) {
		t.Fatalf("Expected %d items, got %d", len(want), len(items))
	}
	for i, item := range items {
		if item.ID != want[i] {
			t.Errorf("Expected items[%d] = %q, got %q", i, want[i], item.ID)
		}
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 items, got %d", count)
	}
}
