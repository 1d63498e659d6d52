// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package models

import (
	"strings"
	"time"
)

// ItemType distinguishes lost reports from found reports. Matching only
// ever pairs items of opposite type.
type ItemType string

const (
	ItemTypeLost  ItemType = "lost"
	ItemTypeFound ItemType = "found"
)

// IsValid reports whether the value is one of the supported item types.
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeLost, ItemTypeFound:
		return true
	default:
		return false
	}
}

// Opposite returns the counterpart type: candidates for a lost item are
// found items and vice versa.
func (t ItemType) Opposite() ItemType {
	if t == ItemTypeLost {
		return ItemTypeFound
	}
	return ItemTypeLost
}

// Item represents a single lost or found item report.
//
// All comparison inputs are optional: an item may lack a description,
// category, timestamp, location, or image without being excluded from
// matching. Missing data only weakens the evidence a pair can accumulate;
// it never rejects the pair outright. The one hard exclusion is
// IsResolved, which permanently removes the item from both sides of
// matching once its owner confirms recovery.
//
// Key Fields:
//   - ID/UserID: item and reporting-user identifiers
//   - Type: "lost" or "found", immutable after creation
//   - Category: free-form label compared case-sensitively by the filter
//   - Location: tagged union, see Location
//   - Timestamp: when the item was lost or found (zero = unreported)
//   - ImageRef: image URL for visual analysis (empty = no image)
//   - Signature: cached vision provider output, populated lazily
//   - MatchedItemID: confirmed counterpart, set on resolution
type Item struct {
	ID     string   `json:"id" validate:"required"`
	UserID string   `json:"user_id" validate:"required"`
	Type   ItemType `json:"type" validate:"required,oneof=lost found"`

	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Location    Location `json:"location"`

	Timestamp time.Time `json:"timestamp,omitempty"`
	ImageRef  string    `json:"image_ref,omitempty"`

	Signature *VisualSignature `json:"signature,omitempty"`

	IsResolved    bool   `json:"is_resolved"`
	MatchedItemID string `json:"matched_item_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTimestamp reports whether the lost/found time was recorded.
func (i *Item) HasTimestamp() bool {
	return !i.Timestamp.IsZero()
}

// HasCategory reports whether a non-blank category label is present.
func (i *Item) HasCategory() bool {
	return strings.TrimSpace(i.Category) != ""
}

// HasImage reports whether an image reference is attached.
func (i *Item) HasImage() bool {
	return strings.TrimSpace(i.ImageRef) != ""
}

// HasComparableData reports whether the item carries at least one signal a
// match run can compare: a description, a category, or an image. Items
// with none of these cannot be scored against anything.
func (i *Item) HasComparableData() bool {
	return strings.TrimSpace(i.Description) != "" || i.HasCategory() || i.HasImage()
}
