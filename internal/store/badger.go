// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
)

// Key prefixes for BadgerDB storage. The type index maps
// item_type:<type>:<id> to the item ID so candidate queries never scan
// the opposite side of the registry.
const (
	itemKeyPrefix = "item:"
	typeKeyPrefix = "item_type:"
)

// BadgerStore persists items in an embedded BadgerDB, so a single-node
// deployment survives restarts without an external database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens a BadgerDB at the given path and wraps it as an
// item store.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logging is too chatty for a default

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for items: %w", err)
	}

	store := NewBadgerStore(db)
	store.refreshGauges()
	return store, nil
}

// NewBadgerStore creates an item store from an existing DB connection.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Create stores a new item.
func (s *BadgerStore) Create(ctx context.Context, item *models.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	stored := cloneItem(item)
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := itemKey(stored.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("create item %s: %w", stored.ID, ErrDuplicate)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check item: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set item: %w", err)
		}
		if err := txn.Set(typeKey(stored.Type, stored.ID), []byte(stored.ID)); err != nil {
			return fmt.Errorf("set type index: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.refreshGauges()
	return nil
}

// Get retrieves an item by ID.
func (s *BadgerStore) Get(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item

	err := s.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(itemKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get item %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}

		return entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		})
	})
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// Update replaces an existing item in one transaction, preserving the
// creation time and rejecting type changes.
func (s *BadgerStore) Update(ctx context.Context, item *models.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry, err := txn.Get(itemKey(item.ID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("update item %s: %w", item.ID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}

		var existing models.Item
		if err := entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &existing)
		}); err != nil {
			return fmt.Errorf("unmarshal item: %w", err)
		}
		if existing.Type != item.Type {
			return fmt.Errorf("update item %s: type is immutable", item.ID)
		}

		stored := cloneItem(item)
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		return txn.Set(itemKey(stored.ID), data)
	})
}

// Delete removes an item and its type index entry. Deleting a missing
// item is a no-op.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry, err := txn.Get(itemKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get item: %w", err)
		}

		var item models.Item
		if err := entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		}); err != nil {
			return fmt.Errorf("unmarshal item: %w", err)
		}

		if err := txn.Delete(itemKey(id)); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		if err := txn.Delete(typeKey(item.Type, id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete type index: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.refreshGauges()
	return nil
}

// List returns every item, newest first.
func (s *BadgerStore) List(ctx context.Context) ([]*models.Item, error) {
	var items []*models.Item

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(itemKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var item models.Item
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				continue
			}
			items = append(items, &item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// FindCandidates returns items of the given type, oldest first, walking
// the type index instead of the whole registry.
func (s *BadgerStore) FindCandidates(ctx context.Context, itemType models.ItemType, excludeResolved bool) ([]*models.Item, error) {
	if !itemType.IsValid() {
		return nil, fmt.Errorf("invalid item type %q", itemType)
	}

	var candidates []*models.Item

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(typeKeyPrefix + string(itemType) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				continue
			}

			entry, err := txn.Get(itemKey(id))
			if err != nil {
				continue // index entry outlived the item
			}

			var item models.Item
			if err := entry.Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				continue
			}

			if excludeResolved && item.IsResolved {
				continue
			}
			candidates = append(candidates, &item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

// Resolve marks an item recovered and cross-links its counterpart in the
// same transaction.
func (s *BadgerStore) Resolve(ctx context.Context, itemID, matchedItemID string) error {
	now := time.Now().UTC()

	return s.db.Update(func(txn *badger.Txn) error {
		if err := resolveInTxn(txn, itemID, matchedItemID, now); err != nil {
			return err
		}

		// Cross-link the counterpart when it is still in the registry.
		if matchedItemID == "" {
			return nil
		}
		err := resolveInTxn(txn, matchedItemID, itemID, now)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	})
}

// resolveInTxn loads one item, marks it resolved against matchedID, and
// writes it back.
func resolveInTxn(txn *badger.Txn, id, matchedID string, now time.Time) error {
	entry, err := txn.Get(itemKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("resolve item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}

	var item models.Item
	if err := entry.Value(func(val []byte) error {
		return json.Unmarshal(val, &item)
	}); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}

	item.IsResolved = true
	item.MatchedItemID = matchedID
	item.UpdatedAt = now

	data, err := json.Marshal(&item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	return txn.Set(itemKey(id), data)
}

// Count returns the total number of items in the store.
func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(itemKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// Close closes the underlying BadgerDB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func itemKey(id string) []byte {
	return []byte(itemKeyPrefix + id)
}

func typeKey(t models.ItemType, id string) []byte {
	return []byte(typeKeyPrefix + string(t) + ":" + id)
}

// refreshGauges recounts the per-type gauges from the type index.
func (s *BadgerStore) refreshGauges() {
	for _, t := range []models.ItemType{models.ItemTypeLost, models.ItemTypeFound} {
		count := 0
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()

			prefix := []byte(typeKeyPrefix + string(t) + ":")
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				count++
			}
			return nil
		})
		if err != nil {
			continue
		}
		metrics.SetStoreItems(string(t), count)
	}
}
