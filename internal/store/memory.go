// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
)

// MemoryStore keeps items in process memory. It is the default backend:
// deployments that own item persistence elsewhere feed the engine through
// the API and only need the working set held here.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*models.Item
}

// NewMemoryStore creates an empty in-memory item store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*models.Item),
	}
}

// Create stores a new item.
func (s *MemoryStore) Create(ctx context.Context, item *models.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("create item %s: %w", item.ID, ErrDuplicate)
	}

	stored := cloneItem(item)
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	s.items[stored.ID] = stored
	s.updateGauges()
	return nil
}

// Get returns a copy of the item with the given ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("get item %s: %w", id, ErrNotFound)
	}
	return cloneItem(item), nil
}

// Update replaces an existing item. The item type is immutable and the
// original creation time is preserved.
func (s *MemoryStore) Update(ctx context.Context, item *models.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok {
		return fmt.Errorf("update item %s: %w", item.ID, ErrNotFound)
	}
	if existing.Type != item.Type {
		return fmt.Errorf("update item %s: type is immutable", item.ID)
	}

	stored := cloneItem(item)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()

	s.items[stored.ID] = stored
	return nil
}

// Delete removes an item. Deleting a missing item is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	s.updateGauges()
	return nil
}

// List returns every item, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	items := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, cloneItem(item))
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// FindCandidates returns items of the given type, oldest first.
func (s *MemoryStore) FindCandidates(ctx context.Context, itemType models.ItemType, excludeResolved bool) ([]*models.Item, error) {
	if !itemType.IsValid() {
		return nil, fmt.Errorf("invalid item type %q", itemType)
	}

	s.mu.RLock()
	candidates := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		if item.Type != itemType {
			continue
		}
		if excludeResolved && item.IsResolved {
			continue
		}
		candidates = append(candidates, cloneItem(item))
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

// Resolve marks an item recovered and cross-links its counterpart when
// present.
func (s *MemoryStore) Resolve(ctx context.Context, itemID, matchedItemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("resolve item %s: %w", itemID, ErrNotFound)
	}

	now := time.Now().UTC()
	item.IsResolved = true
	item.MatchedItemID = matchedItemID
	item.UpdatedAt = now

	if matched, ok := s.items[matchedItemID]; ok {
		matched.IsResolved = true
		matched.MatchedItemID = itemID
		matched.UpdatedAt = now
	}
	return nil
}

// Count returns the number of stored items.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// updateGauges refreshes the per-type item gauges. Must be called with
// the lock held.
func (s *MemoryStore) updateGauges() {
	counts := make(map[models.ItemType]int, 2)
	for _, item := range s.items {
		counts[item.Type]++
	}
	metrics.SetStoreItems(string(models.ItemTypeLost), counts[models.ItemTypeLost])
	metrics.SetStoreItems(string(models.ItemTypeFound), counts[models.ItemTypeFound])
}
