// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nadavby/reclaim/internal/cache"
	"github.com/nadavby/reclaim/internal/history"
	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/match"
	"github.com/nadavby/reclaim/internal/models"
	"github.com/nadavby/reclaim/internal/notify"
	"github.com/nadavby/reclaim/internal/store"
)

// readinessTimeout bounds the backend probes in the readiness check.
const readinessTimeout = 2 * time.Second

// Handler carries the collaborators the API endpoints need. Bus and
// sigCache may be nil; the affected endpoints degrade rather than fail.
type Handler struct {
	store        store.ItemStore
	history      history.Store
	orchestrator *match.Orchestrator
	bus          *notify.Bus
	cooldown     *notify.Cooldown
	sigCache     *cache.SignatureCache
	started      time.Time
}

// NewHandler wires the API endpoints to their collaborators.
func NewHandler(
	st store.ItemStore,
	hist history.Store,
	orch *match.Orchestrator,
	bus *notify.Bus,
	cooldown *notify.Cooldown,
	sigCache *cache.SignatureCache,
) *Handler {
	return &Handler{
		store:        st,
		history:      hist,
		orchestrator: orch,
		bus:          bus,
		cooldown:     cooldown,
		sigCache:     sigCache,
		started:      time.Now(),
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":         "alive",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// HealthReady reports whether the storage backends answer. Kubernetes
// keys traffic off the status code; the payload is for humans.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	items, err := h.store.Count(ctx)
	if err != nil {
		rw.ServiceUnavailable("item store unavailable")
		return
	}
	runs, err := h.history.Count(ctx, history.QueryFilter{})
	if err != nil {
		rw.ServiceUnavailable("run history unavailable")
		return
	}

	rw.Success(map[string]interface{}{
		"status": "ready",
		"items":  items,
		"runs":   runs,
	})
}

// ItemStats breaks the registry down by side and resolution.
type ItemStats struct {
	Total      int `json:"total"`
	Lost       int `json:"lost"`
	Found      int `json:"found"`
	Unresolved int `json:"unresolved"`
}

// CacheStats is the signature cache section of the stats payload.
type CacheStats struct {
	Keys      int64   `json:"keys"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// StatsResponse is the GET /api/v1/stats payload.
type StatsResponse struct {
	Items           ItemStats      `json:"items"`
	Runs            *history.Stats `json:"runs,omitempty"`
	CooldownEntries int            `json:"cooldown_entries"`
	Cache           *CacheStats    `json:"cache,omitempty"`
	UptimeSeconds   int64          `json:"uptime_seconds"`
}

// Stats aggregates operational counters across the engine.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	total, err := h.store.Count(ctx)
	if err != nil {
		rw.StoreError(err)
		return
	}
	lost, err := h.store.FindCandidates(ctx, models.ItemTypeLost, false)
	if err != nil {
		rw.StoreError(err)
		return
	}
	found, err := h.store.FindCandidates(ctx, models.ItemTypeFound, false)
	if err != nil {
		rw.StoreError(err)
		return
	}
	unresolved := 0
	for _, it := range lost {
		if !it.IsResolved {
			unresolved++
		}
	}
	for _, it := range found {
		if !it.IsResolved {
			unresolved++
		}
	}

	resp := StatsResponse{
		Items: ItemStats{
			Total:      total,
			Lost:       len(lost),
			Found:      len(found),
			Unresolved: unresolved,
		},
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.cooldown != nil {
		resp.CooldownEntries = h.cooldown.Len()
	}
	if h.sigCache != nil {
		cs := h.sigCache.GetStats()
		resp.Cache = &CacheStats{
			Keys:      cs.TotalKeys,
			Hits:      cs.Hits,
			Misses:    cs.Misses,
			Evictions: cs.Evictions,
			HitRate:   h.sigCache.HitRate(),
		}
	}
	if runStats, err := h.history.Stats(ctx); err == nil {
		resp.Runs = runStats
	} else {
		logging.Warn().Err(err).Msg("Run history stats unavailable")
	}

	rw.Success(resp)
}

// ItemCreate registers a new lost or found report.
func (h *Handler) ItemCreate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CreateItemRequest
	if details, err := decodeAndValidate(r, &req); err != nil {
		rw.ValidationError(err.Error(), details)
		return
	}

	item := req.ToItem()
	if err := h.store.Create(r.Context(), item); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			rw.Conflict("an item with this ID already exists")
			return
		}
		rw.StoreError(err)
		return
	}

	logging.Info().
		Str("item_id", item.ID).
		Str("item_type", string(item.Type)).
		Str("user_id", item.UserID).
		Msg("Item registered")
	rw.Created(item)
}

// ItemGet returns a single item by ID.
func (h *Handler) ItemGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("item not found")
			return
		}
		rw.StoreError(err)
		return
	}
	rw.Success(item)
}

// ItemList returns items newest first, optionally filtered by type,
// user, and resolution state.
func (h *Handler) ItemList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()

	var typeFilter models.ItemType
	if v := q.Get("type"); v != "" {
		typeFilter = models.ItemType(v)
		if !typeFilter.IsValid() {
			rw.BadRequest("type must be lost or found")
			return
		}
	}
	userFilter := q.Get("user_id")
	var resolvedFilter *bool
	if v := q.Get("resolved"); v != "" {
		b := v == "true"
		if v != "true" && v != "false" {
			rw.BadRequest("resolved must be true or false")
			return
		}
		resolvedFilter = &b
	}

	items, err := h.store.List(r.Context())
	if err != nil {
		rw.StoreError(err)
		return
	}

	filtered := make([]*models.Item, 0, len(items))
	for _, it := range items {
		if typeFilter != "" && it.Type != typeFilter {
			continue
		}
		if userFilter != "" && it.UserID != userFilter {
			continue
		}
		if resolvedFilter != nil && it.IsResolved != *resolvedFilter {
			continue
		}
		filtered = append(filtered, it)
	}

	rw.SuccessWithPagination(filtered, &PaginationMeta{Count: len(filtered)})
}

// ItemUpdate replaces an item's describable fields. The reporting user
// and the lost/found side never change; a new image reference drops the
// cached visual signature so the next run re-annotates.
func (h *Handler) ItemUpdate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	var req UpdateItemRequest
	if details, err := decodeAndValidate(r, &req); err != nil {
		rw.ValidationError(err.Error(), details)
		return
	}

	existing, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("item not found")
			return
		}
		rw.StoreError(err)
		return
	}

	if req.ImageRef != existing.ImageRef {
		existing.Signature = nil
	}
	existing.Name = req.Name
	existing.Description = req.Description
	existing.Category = req.Category
	existing.Timestamp = req.Timestamp
	existing.ImageRef = req.ImageRef
	if req.Location != nil {
		existing.Location = *req.Location
	} else {
		existing.Location = models.UnknownLocation()
	}

	if err := h.store.Update(r.Context(), existing); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("item not found")
			return
		}
		rw.StoreError(err)
		return
	}

	updated, err := h.store.Get(r.Context(), id)
	if err != nil {
		rw.StoreError(err)
		return
	}
	rw.Success(updated)
}

// ItemDelete removes an item. Deleting twice is not an error; the store
// treats removal of a missing item as a no-op.
func (h *Handler) ItemDelete(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	if err := h.store.Delete(r.Context(), id); err != nil {
		rw.StoreError(err)
		return
	}
	rw.Success(map[string]interface{}{"deleted": true, "id": id})
}

// ItemResolve marks an item recovered and cross-links the confirmed
// counterpart when one is named. The body is optional.
func (h *Handler) ItemResolve(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	var req ResolveItemRequest
	if r.ContentLength > 0 {
		if details, err := decodeAndValidate(r, &req); err != nil {
			rw.ValidationError(err.Error(), details)
			return
		}
	}

	if err := h.store.Resolve(r.Context(), id, req.MatchedItemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("item not found")
			return
		}
		rw.StoreError(err)
		return
	}

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		rw.StoreError(err)
		return
	}

	logging.Info().
		Str("item_id", id).
		Str("matched_item_id", req.MatchedItemID).
		Msg("Item resolved")
	rw.Success(item)
}

// ItemMatches runs the matching pipeline for one item and returns the
// ranked result. Notification intents are published to the bus as a side
// effect; delivery failures are logged, not surfaced, because the match
// result is valid either way.
func (h *Handler) ItemMatches(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	target, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("item not found")
			return
		}
		rw.StoreError(err)
		return
	}
	if target.IsResolved {
		rw.Conflict("item is already resolved")
		return
	}

	result, err := h.orchestrator.FindMatches(r.Context(), target)
	if err != nil {
		logging.Error().Err(err).Str("item_id", id).Msg("Match run failed")
		rw.InternalError("match run failed")
		return
	}

	if h.bus != nil && len(result.Intents) > 0 {
		if err := h.bus.PublishAll(result.Intents); err != nil {
			logging.Error().Err(err).
				Str("run_id", result.RunID).
				Int("intents", len(result.Intents)).
				Msg("Failed to publish notification intents")
		}
	}

	rw.Success(result)
}

// RunsList queries the match-run history, most recent first.
func (h *Handler) RunsList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter, err := parseRunsFilter(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	records, err := h.history.Query(r.Context(), filter)
	if err != nil {
		rw.StoreError(err)
		return
	}

	rw.SuccessWithPagination(records, &PaginationMeta{
		Count:   len(records),
		Offset:  filter.Offset,
		Limit:   filter.Limit,
		HasMore: filter.Limit > 0 && len(records) == filter.Limit,
	})
}

// RunGet returns one run record by ID.
func (h *Handler) RunGet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	rec, err := h.history.Get(r.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			rw.NotFound("run record not found")
			return
		}
		rw.StoreError(err)
		return
	}
	rw.Success(rec)
}
