// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/models"
)

// Sentinel errors callers can test with errors.Is.
var (
	// ErrNotFound is returned when no item has the requested ID.
	ErrNotFound = errors.New("item not found")

	// ErrDuplicate is returned when creating an item whose ID is taken.
	ErrDuplicate = errors.New("item already exists")
)

// ItemStore is the registry of lost and found reports the matching
// engine draws candidates from. FindCandidates satisfies the
// orchestrator's candidate source; the rest is the reference CRUD
// surface used by the API and the reconciliation job.
type ItemStore interface {
	// Create stores a new item. The item's ID must be unused.
	Create(ctx context.Context, item *models.Item) error

	// Get returns the item with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Item, error)

	// Update replaces an existing item. The type is immutable.
	Update(ctx context.Context, item *models.Item) error

	// Delete removes an item. Deleting a missing item is a no-op.
	Delete(ctx context.Context, id string) error

	// List returns every item, newest first.
	List(ctx context.Context) ([]*models.Item, error)

	// FindCandidates returns items of the given type, oldest first so
	// longer-waiting reports win ranking ties. Resolved items are
	// excluded when excludeResolved is set.
	FindCandidates(ctx context.Context, itemType models.ItemType, excludeResolved bool) ([]*models.Item, error)

	// Resolve marks an item recovered and cross-links it with its
	// confirmed counterpart. A missing counterpart is tolerated; a
	// missing item is ErrNotFound.
	Resolve(ctx context.Context, itemID, matchedItemID string) error

	// Count returns the number of stored items.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// BackendType selects the item store implementation.
type BackendType string

const (
	// BackendMemory keeps items in process memory (default, not
	// persistent).
	BackendMemory BackendType = "memory"

	// BackendBadger persists items in an embedded BadgerDB.
	BackendBadger BackendType = "badger"
)

// Open creates the configured item store backend.
func Open(cfg config.StoreConfig) (ItemStore, error) {
	switch BackendType(cfg.Backend) {
	case BackendBadger:
		return OpenBadgerStore(cfg.Path)
	case BackendMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// validateItem rejects items that cannot participate in matching at all.
// Comparison fields stay optional; only identity is mandatory.
func validateItem(item *models.Item) error {
	if item == nil {
		return fmt.Errorf("nil item")
	}
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("item ID is required")
	}
	if strings.TrimSpace(item.UserID) == "" {
		return fmt.Errorf("item user ID is required")
	}
	if !item.Type.IsValid() {
		return fmt.Errorf("invalid item type %q", item.Type)
	}
	return nil
}

// cloneItem deep-copies an item so stored state never aliases caller
// memory.
func cloneItem(item *models.Item) *models.Item {
	if item == nil {
		return nil
	}
	clone := *item
	if item.Signature != nil {
		sig := models.VisualSignature{
			Labels:         append([]string(nil), item.Signature.Labels...),
			Objects:        append([]models.DetectedObject(nil), item.Signature.Objects...),
			DominantColors: append([]string(nil), item.Signature.DominantColors...),
		}
		clone.Signature = &sig
	}
	return &clone
}
