// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package match

import (
	"strings"

	"github.com/nadavby/reclaim/internal/models"
)

// MaxMatchDistanceKm is the great-circle distance beyond which two reports
// cannot describe the same physical item. Pairs with both coordinates known
// and strictly more than this distance apart are rejected before scoring.
const MaxMatchDistanceKm = 100.0

// Filter rejection reasons, used as log fields and metric labels.
const (
	FilterReasonType     = "type"
	FilterReasonResolved = "resolved"
	FilterReasonTemporal = "temporal"
	FilterReasonCategory = "category"
	FilterReasonDistance = "distance"
)

// ShouldSkip reports whether a lost/found pair can be rejected without
// spending any provider budget on it, along with the rejection reason.
// The arguments may arrive in either order; orientation is derived from
// each item's type.
//
// Only hard physical impossibilities reject a pair:
//
//   - either report is already resolved
//   - the found report predates the lost report (both timestamps known)
//   - the categories differ (both present, exact string comparison)
//   - the reports are more than MaxMatchDistanceKm apart (both located)
//
// A missing field never rejects: partial reports flow through to scoring,
// where the evaluator weighs the absence instead. Category comparison is
// deliberately a coarse exact-match gate; judging semantic closeness of
// near-miss categories is the evaluator's job, not the filter's.
func ShouldSkip(a, b *models.Item) (bool, string) {
	if a == nil || b == nil {
		return true, FilterReasonType
	}
	if a.Type == b.Type {
		return true, FilterReasonType
	}
	if a.IsResolved || b.IsResolved {
		return true, FilterReasonResolved
	}

	lost, found := Orient(a, b)

	if lost.HasTimestamp() && found.HasTimestamp() && found.Timestamp.Before(lost.Timestamp) {
		return true, FilterReasonTemporal
	}

	if lost.HasCategory() && found.HasCategory() &&
		strings.TrimSpace(lost.Category) != strings.TrimSpace(found.Category) {
		return true, FilterReasonCategory
	}

	if km, ok := lost.Location.DistanceTo(found.Location); ok && km > MaxMatchDistanceKm {
		return true, FilterReasonDistance
	}

	return false, ""
}

// Orient returns the pair ordered as (lost, found). When neither item is a
// lost report the pair is returned unchanged; callers that need a strict
// orientation should gate on ShouldSkip first, which rejects same-type pairs.
func Orient(a, b *models.Item) (*models.Item, *models.Item) {
	if b.Type == models.ItemTypeLost {
		return b, a
	}
	return a, b
}
