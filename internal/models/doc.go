// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package models defines the core data structures for the Reclaim matching
engine.

This package contains the data models shared across the application: the
lost/found item record, the location tagged union, and visual signatures
from the vision provider. It serves as the single source of truth for
these definitions; packages higher in the dependency graph (match,
notify, server) define their own pipeline-specific types on top of them.

Key Components:

  - Item, ItemType: lost and found item records with type, category,
    location, and image reference
  - Location, LocationKind: tagged union over Unknown | Text | Coordinates
    with a legacy-tolerant JSON codec
  - VisualSignature, DetectedObject: cached vision provider output
    (labels, detected objects, colors)

Usage Example - Items:

	import "github.com/nadavby/reclaim/internal/models"

	item := &models.Item{
	    ID:          uuid.NewString(),
	    UserID:      "u-118",
	    Type:        models.ItemTypeLost,
	    Description: "Black leather wallet with a red zipper",
	    Category:    "Wallet",
	    Location:    models.CoordinateLocation(40.0, -73.0),
	    Timestamp:   time.Now(),
	    ImageRef:    "https://cdn.example.com/items/wallet.jpg",
	}

Usage Example - Location decoding:

The Location codec accepts the legacy feed forms transparently:

	"Library West"          -> Text
	"40.0,-73.0"            -> Coordinates
	"unknown", "", null     -> Unknown
	{"lat":40.0,"lng":-73}  -> Coordinates
	{"kind":"text", ...}    -> canonical form

Malformed location payloads decode to Unknown rather than failing the
surrounding item; absence of location data never rejects an item.

Thread Safety:

All models are:
  - Immutable after creation (pass-by-value or pointers)
  - Safe for concurrent read access
  - No internal mutexes needed (data structures only)

JSON Marshaling:

All models support JSON serialization via goccy/go-json:
  - Struct tags use snake_case field naming
  - Omitempty tags for optional fields
  - Time.Time uses RFC3339 format
  - Location carries a custom codec for legacy input forms

See Also:

  - internal/store: item persistence using these models
  - internal/match: scoring pipeline consuming Item values
  - internal/analyzer: visual and text comparison over signatures
*/
package models
