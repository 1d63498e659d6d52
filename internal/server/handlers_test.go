// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/nadavby/reclaim/internal/cache"
	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/history"
	"github.com/nadavby/reclaim/internal/match"
	"github.com/nadavby/reclaim/internal/models"
	"github.com/nadavby/reclaim/internal/notify"
	"github.com/nadavby/reclaim/internal/store"
)

// envelope mirrors APIResponse with a raw data section so tests can
// decode the payload into endpoint-specific types.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

// newTestServer builds a server on in-memory backends with no external
// providers, so match runs take the deterministic fallback path.
func newTestServer(t *testing.T) (*Server, store.ItemStore, history.Store) {
	t.Helper()

	st := store.NewMemoryStore()
	hist := history.NewMemoryStore(0)

	mcfg := config.DefaultMatchingConfig()
	orch := match.NewOrchestrator(&mcfg, nil, nil, nil, st)

	handler := NewHandler(st, hist, orch, nil, notify.NewCooldown(5*time.Second), cache.New(time.Hour))

	scfg := config.Default().Server
	scfg.RateLimitRequests = 0
	return NewServer(scfg, handler), st, hist
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("Failed to decode response envelope: %v (body: %s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, target); err != nil {
		t.Fatalf("Failed to decode data payload: %v", err)
	}
}

func createTestItem(t *testing.T, h http.Handler, req CreateItemRequest) models.Item {
	t.Helper()

	rec, env := doRequest(t, h, http.MethodPost, "/api/v1/items", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 creating item, got %d: %s", rec.Code, rec.Body.String())
	}
	var item models.Item
	decodeData(t, env, &item)
	return item
}

func coords(lat, lon float64) *models.Location {
	loc := models.CoordinateLocation(lat, lon)
	return &loc
}

// TestHealthEndpoints verifies the liveness and readiness probes respond
// outside the versioned API prefix.
func TestHealthEndpoints(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	t.Run("liveness", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodGet, "/healthz", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		if !env.Success {
			t.Error("Expected success=true on liveness probe")
		}
		var data map[string]interface{}
		decodeData(t, env, &data)
		if data["status"] != "alive" {
			t.Errorf("Expected status alive, got %v", data["status"])
		}
	})

	t.Run("readiness", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodGet, "/readyz", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var data map[string]interface{}
		decodeData(t, env, &data)
		if data["status"] != "ready" {
			t.Errorf("Expected status ready, got %v", data["status"])
		}
	})
}

// TestItemCreate verifies registration, ID generation, duplicate
// rejection, and request validation.
func TestItemCreate(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	t.Run("generated ID", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodPost, "/api/v1/items", CreateItemRequest{
			UserID: "user-1",
			Type:   "lost",
			Name:   "Blue umbrella",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var item models.Item
		decodeData(t, env, &item)
		if item.ID == "" {
			t.Error("Expected a generated item ID")
		}
		if item.Type != models.ItemTypeLost {
			t.Errorf("Expected type lost, got %s", item.Type)
		}
		if item.CreatedAt.IsZero() {
			t.Error("Expected CreatedAt to be set")
		}
		if item.Timestamp.IsZero() {
			t.Error("Expected a defaulted report timestamp")
		}
	})

	t.Run("explicit ID", func(t *testing.T) {
		item := createTestItem(t, r, CreateItemRequest{
			ID:     "umbrella-7",
			UserID: "user-1",
			Type:   "found",
			Name:   "Red umbrella",
		})
		if item.ID != "umbrella-7" {
			t.Errorf("Expected item ID umbrella-7, got %s", item.ID)
		}
	})

	t.Run("duplicate ID", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodPost, "/api/v1/items", CreateItemRequest{
			ID:     "umbrella-7",
			UserID: "user-2",
			Type:   "found",
			Name:   "Another umbrella",
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("Expected status 409, got %d", rec.Code)
		}
		if env.Error == nil || env.Error.Code != ErrCodeConflict {
			t.Errorf("Expected error code %s, got %+v", ErrCodeConflict, env.Error)
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodPost, "/api/v1/items", CreateItemRequest{
			Type: "lost",
			Name: "Orphan report",
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", rec.Code)
		}
		if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
			t.Fatalf("Expected error code %s, got %+v", ErrCodeValidationFailed, env.Error)
		}
		if env.Error.Details == nil {
			t.Error("Expected per-field details on validation failure")
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		rec, _ := doRequest(t, r, http.MethodPost, "/api/v1/items", CreateItemRequest{
			UserID: "user-1",
			Type:   "stolen",
			Name:   "Bike",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for invalid type, got %d", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for malformed JSON, got %d", rec.Code)
		}
	})
}

// TestItemGetAndDelete verifies retrieval and removal round-trips.
func TestItemGetAndDelete(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	item := createTestItem(t, r, CreateItemRequest{
		UserID:   "user-1",
		Type:     "lost",
		Name:     "Silver watch",
		Category: "jewelry",
	})

	t.Run("get existing", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodGet, "/api/v1/items/"+item.ID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		var got models.Item
		decodeData(t, env, &got)
		if got.Name != "Silver watch" || got.Category != "jewelry" {
			t.Errorf("Expected stored fields to round-trip, got %+v", got)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodGet, "/api/v1/items/ghost", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected status 404, got %d", rec.Code)
		}
		if env.Error == nil || env.Error.Code != ErrCodeNotFound {
			t.Errorf("Expected error code %s, got %+v", ErrCodeNotFound, env.Error)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodDelete, "/api/v1/items/"+item.ID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		var data map[string]interface{}
		decodeData(t, env, &data)
		if data["deleted"] != true {
			t.Errorf("Expected deleted=true, got %v", data["deleted"])
		}

		rec, _ = doRequest(t, r, http.MethodGet, "/api/v1/items/"+item.ID, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status 404 after delete, got %d", rec.Code)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodDelete, "/api/v1/items/"+item.ID, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200 on repeat delete, got %d", rec.Code)
		}
		if !env.Success {
			t.Error("Expected success envelope on repeat delete")
		}
	})
}

// TestItemList verifies the type, user, and resolution filters.
func TestItemList(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	lostA := createTestItem(t, r, CreateItemRequest{
		ID: "lost-a", UserID: "u1", Type: "lost", Name: "Backpack",
	})
	foundB := createTestItem(t, r, CreateItemRequest{
		ID: "found-b", UserID: "u2", Type: "found", Name: "Backpack",
	})
	createTestItem(t, r, CreateItemRequest{
		ID: "lost-c", UserID: "u3", Type: "lost", Name: "Phone",
	})

	rec, _ := doRequest(t, r, http.MethodPost, "/api/v1/items/"+lostA.ID+"/resolve",
		ResolveItemRequest{MatchedItemID: foundB.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 resolving seed item, got %d", rec.Code)
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"all items", "", http.StatusOK, 3},
		{"lost only", "?type=lost", http.StatusOK, 2},
		{"found only", "?type=found", http.StatusOK, 1},
		{"invalid type", "?type=stolen", http.StatusBadRequest, 0},
		{"by user", "?user_id=u1", http.StatusOK, 1},
		{"resolved pair", "?resolved=true", http.StatusOK, 2},
		{"unresolved", "?resolved=false", http.StatusOK, 1},
		{"invalid resolved", "?resolved=maybe", http.StatusBadRequest, 0},
		{"combined", "?type=lost&resolved=false", http.StatusOK, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doRequest(t, r, http.MethodGet, "/api/v1/items"+tt.query, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var items []models.Item
			decodeData(t, env, &items)
			if len(items) != tt.wantCount {
				t.Errorf("Expected %d items, got %d", tt.wantCount, len(items))
			}
			if env.Meta == nil || env.Meta.Pagination == nil || env.Meta.Pagination.Count != tt.wantCount {
				t.Errorf("Expected pagination count %d, got %+v", tt.wantCount, env.Meta)
			}
		})
	}
}

// TestItemUpdate verifies describable fields are replaced wholesale and a
// changed image reference drops the cached visual signature.
func TestItemUpdate(t *testing.T) {
	s, st, _ := newTestServer(t)
	r := s.Routes()
	ctx := context.Background()

	item := createTestItem(t, r, CreateItemRequest{
		UserID:      "user-1",
		Type:        "lost",
		Name:        "Leather wallet",
		Description: "Brown wallet with cards",
		Category:    "accessories",
		ImageRef:    "img://wallet-1",
	})

	// Seed a cached signature the way a completed match run would.
	stored, err := st.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	stored.Signature = &models.VisualSignature{Labels: []string{"leather", "brown"}}
	if err := st.Update(ctx, stored); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	t.Run("same image keeps signature", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodPut, "/api/v1/items/"+item.ID, UpdateItemRequest{
			Name:     "Leather wallet",
			Category: "wallets",
			ImageRef: "img://wallet-1",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var got models.Item
		decodeData(t, env, &got)
		if got.Category != "wallets" {
			t.Errorf("Expected category wallets, got %s", got.Category)
		}
		if got.Description != "" {
			t.Errorf("Expected omitted description to be cleared, got %q", got.Description)
		}
		if got.Signature == nil {
			t.Error("Expected signature to survive an unchanged image reference")
		}
	})

	t.Run("new image drops signature", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodPut, "/api/v1/items/"+item.ID, UpdateItemRequest{
			Name:     "Leather wallet",
			ImageRef: "img://wallet-2",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		var got models.Item
		decodeData(t, env, &got)
		if got.Signature != nil {
			t.Error("Expected signature to be dropped with a new image reference")
		}
		if got.ImageRef != "img://wallet-2" {
			t.Errorf("Expected updated image reference, got %s", got.ImageRef)
		}
	})

	t.Run("missing item", func(t *testing.T) {
		rec, _ := doRequest(t, r, http.MethodPut, "/api/v1/items/ghost", UpdateItemRequest{Name: "X"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rec.Code)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		rec, _ := doRequest(t, r, http.MethodPut, "/api/v1/items/"+item.ID, UpdateItemRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})
}

// TestItemResolve verifies resolution cross-links the confirmed
// counterpart and tolerates an empty body.
func TestItemResolve(t *testing.T) {
	s, st, _ := newTestServer(t)
	r := s.Routes()

	lost := createTestItem(t, r, CreateItemRequest{
		UserID: "owner-1", Type: "lost", Name: "Keys",
	})
	found := createTestItem(t, r, CreateItemRequest{
		UserID: "finder-1", Type: "found", Name: "Keys",
	})

	t.Run("cross-links counterpart", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodPost, "/api/v1/items/"+lost.ID+"/resolve",
			ResolveItemRequest{MatchedItemID: found.ID})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var got models.Item
		decodeData(t, env, &got)
		if !got.IsResolved || got.MatchedItemID != found.ID {
			t.Errorf("Expected resolved item linked to %s, got %+v", found.ID, got)
		}

		counterpart, err := st.Get(context.Background(), found.ID)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if !counterpart.IsResolved || counterpart.MatchedItemID != lost.ID {
			t.Errorf("Expected counterpart resolved and linked to %s, got %+v", lost.ID, counterpart)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		solo := createTestItem(t, r, CreateItemRequest{
			UserID: "owner-2", Type: "lost", Name: "Scarf",
		})
		rec, env := doRequest(t, r, http.MethodPost, "/api/v1/items/"+solo.ID+"/resolve", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var got models.Item
		decodeData(t, env, &got)
		if !got.IsResolved {
			t.Error("Expected item resolved without a named counterpart")
		}
		if got.MatchedItemID != "" {
			t.Errorf("Expected no counterpart link, got %s", got.MatchedItemID)
		}
	})

	t.Run("missing item", func(t *testing.T) {
		rec, _ := doRequest(t, r, http.MethodPost, "/api/v1/items/ghost/resolve", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rec.Code)
		}
	})
}

// TestItemMatches verifies the synchronous match trigger: candidates are
// filtered, the degraded rubric scores the survivors, and strong matches
// produce notification intents for the lost-side owner.
func TestItemMatches(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()
	now := time.Now().UTC()

	target := createTestItem(t, r, CreateItemRequest{
		UserID:      "owner-1",
		Type:        "lost",
		Name:        "Black leather backpack",
		Description: "Black leather backpack with silver zipper lost near the central fountain",
		Category:    "bags",
		Location:    coords(32.0853, 34.7818),
		Timestamp:   now.Add(-24 * time.Hour),
	})
	good := createTestItem(t, r, CreateItemRequest{
		UserID:      "finder-1",
		Type:        "found",
		Name:        "Found backpack",
		Description: "Black leather backpack with silver zipper found by the fountain",
		Category:    "bags",
		Location:    coords(32.0853, 34.7818),
		Timestamp:   now.Add(-time.Hour),
	})
	// Survives the pre-filter but scores below the match threshold.
	createTestItem(t, r, CreateItemRequest{
		UserID:      "finder-2",
		Type:        "found",
		Name:        "Gray phone",
		Description: "Gray smartphone",
		Location:    coords(32.2000, 34.9000),
		Timestamp:   now.Add(-2 * time.Hour),
	})
	// Too far away to be the same physical object.
	createTestItem(t, r, CreateItemRequest{
		UserID:      "finder-3",
		Type:        "found",
		Name:        "Distant backpack",
		Description: "Black leather backpack with silver zipper found by the fountain",
		Category:    "bags",
		Location:    coords(34.0853, 34.7818),
		Timestamp:   now.Add(-time.Hour),
	})
	resolved := createTestItem(t, r, CreateItemRequest{
		UserID:      "finder-4",
		Type:        "found",
		Name:        "Claimed backpack",
		Description: "Black leather backpack with silver zipper found by the fountain",
		Category:    "bags",
		Location:    coords(32.0853, 34.7818),
		Timestamp:   now.Add(-time.Hour),
	})
	if rec, _ := doRequest(t, r, http.MethodPost, "/api/v1/items/"+resolved.ID+"/resolve", nil); rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 resolving seed item, got %d", rec.Code)
	}

	t.Run("run", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodPost, "/api/v1/items/"+target.ID+"/matches", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var result match.MatchResult
		decodeData(t, env, &result)

		if !result.Degraded {
			t.Error("Expected a degraded run with no providers configured")
		}
		if result.RunID == "" {
			t.Error("Expected a run ID")
		}
		if len(result.Matches) != 1 {
			t.Fatalf("Expected exactly 1 match, got %d", len(result.Matches))
		}
		best := result.Matches[0]
		if best.Item.ID != good.ID {
			t.Errorf("Expected best match %s, got %s", good.ID, best.Item.ID)
		}
		if best.Score != 100 {
			t.Errorf("Expected fallback score 100, got %d", best.Score)
		}
		if best.Reasoning == "" {
			t.Error("Expected a reasoning string on the scored match")
		}

		if len(result.Intents) != 1 {
			t.Fatalf("Expected 1 notification intent, got %d", len(result.Intents))
		}
		intent := result.Intents[0]
		if intent.UserID != "owner-1" {
			t.Errorf("Expected intent for the lost-side owner, got %s", intent.UserID)
		}
		if intent.ItemID != target.ID || intent.MatchedItemID != good.ID {
			t.Errorf("Expected intent linking %s to %s, got %+v", target.ID, good.ID, intent)
		}
	})

	t.Run("resolved target", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodPost, "/api/v1/items/"+resolved.ID+"/matches", nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("Expected status 409, got %d", rec.Code)
		}
		if env.Error == nil || env.Error.Code != ErrCodeConflict {
			t.Errorf("Expected error code %s, got %+v", ErrCodeConflict, env.Error)
		}
	})

	t.Run("missing target", func(t *testing.T) {
		rec, _ := doRequest(t, r, http.MethodPost, "/api/v1/items/ghost/matches", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rec.Code)
		}
	})
}

// TestRunsEndpoints verifies run history listing, filtering, pagination,
// and single-record retrieval.
func TestRunsEndpoints(t *testing.T) {
	s, _, hist := newTestServer(t)
	r := s.Routes()
	ctx := context.Background()
	now := time.Now().UTC()

	seed := []history.RunRecord{
		{RunID: "run-1", TargetID: "item-a", TargetType: models.ItemTypeLost, PoolSize: 5, Matched: 2, TopScore: 90, StartedAt: now.Add(-3 * time.Hour)},
		{RunID: "run-2", TargetID: "item-b", TargetType: models.ItemTypeFound, PoolSize: 3, Degraded: true, TopScore: 40, StartedAt: now.Add(-2 * time.Hour)},
		{RunID: "run-3", TargetID: "item-a", TargetType: models.ItemTypeLost, PoolSize: 8, Matched: 1, TopScore: 70, StartedAt: now.Add(-time.Hour)},
	}
	for i := range seed {
		if err := hist.Save(ctx, &seed[i]); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}

	listTests := []struct {
		name       string
		query      string
		wantStatus int
		wantRuns   []string
	}{
		{"all newest first", "", http.StatusOK, []string{"run-3", "run-2", "run-1"}},
		{"by target", "?target_id=item-a", http.StatusOK, []string{"run-3", "run-1"}},
		{"by type", "?target_type=found", http.StatusOK, []string{"run-2"}},
		{"degraded only", "?degraded=true", http.StatusOK, []string{"run-2"}},
		{"min top score", "?min_top_score=80", http.StatusOK, []string{"run-1"}},
		{"since", "?start_time=" + now.Add(-90*time.Minute).Format(time.RFC3339), http.StatusOK, []string{"run-3"}},
		{"limited", "?limit=2", http.StatusOK, []string{"run-3", "run-2"}},
		{"offset past limit", "?limit=2&offset=2", http.StatusOK, []string{"run-1"}},
		{"bad degraded", "?degraded=maybe", http.StatusBadRequest, nil},
		{"bad score", "?min_top_score=150", http.StatusBadRequest, nil},
		{"bad time", "?start_time=yesterday", http.StatusBadRequest, nil},
	}

	for _, tt := range listTests {
		t.Run("list "+tt.name, func(t *testing.T) {
			rec, env := doRequest(t, r, http.MethodGet, "/api/v1/runs"+tt.query, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var records []history.RunRecord
			decodeData(t, env, &records)
			if len(records) != len(tt.wantRuns) {
				t.Fatalf("Expected %d records, got %d", len(tt.wantRuns), len(records))
			}
			for i, want := range tt.wantRuns {
				if records[i].RunID != want {
					t.Errorf("Expected record %d to be %s, got %s", i, want, records[i].RunID)
				}
			}
		})
	}

	t.Run("pagination meta", func(t *testing.T) {
		_, env := doRequest(t, r, http.MethodGet, "/api/v1/runs?limit=2", nil)
		p := env.Meta.Pagination
		if p == nil {
			t.Fatal("Expected pagination metadata")
		}
		if p.Count != 2 || p.Limit != 2 || !p.HasMore {
			t.Errorf("Expected count=2 limit=2 has_more=true, got %+v", p)
		}
	})

	t.Run("get record", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodGet, "/api/v1/runs/run-2", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		var got history.RunRecord
		decodeData(t, env, &got)
		if got.RunID != "run-2" || !got.Degraded || got.TopScore != 40 {
			t.Errorf("Expected run-2 degraded with top score 40, got %+v", got)
		}
	})

	t.Run("get missing record", func(t *testing.T) {
		rec, env := doRequest(t, r, http.MethodGet, "/api/v1/runs/ghost", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected status 404, got %d", rec.Code)
		}
		if env.Error == nil || env.Error.Code != ErrCodeNotFound {
			t.Errorf("Expected error code %s, got %+v", ErrCodeNotFound, env.Error)
		}
	})
}

// TestStats verifies the operational counters aggregate across stores.
func TestStats(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	createTestItem(t, r, CreateItemRequest{ID: "s-1", UserID: "u1", Type: "lost", Name: "A"})
	createTestItem(t, r, CreateItemRequest{ID: "s-2", UserID: "u2", Type: "lost", Name: "B"})
	createTestItem(t, r, CreateItemRequest{ID: "s-3", UserID: "u3", Type: "found", Name: "C"})
	if rec, _ := doRequest(t, r, http.MethodPost, "/api/v1/items/s-1/resolve", nil); rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 resolving seed item, got %d", rec.Code)
	}

	rec, env := doRequest(t, r, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var stats StatsResponse
	decodeData(t, env, &stats)
	if stats.Items.Total != 3 || stats.Items.Lost != 2 || stats.Items.Found != 1 {
		t.Errorf("Expected 3 items (2 lost, 1 found), got %+v", stats.Items)
	}
	if stats.Items.Unresolved != 2 {
		t.Errorf("Expected 2 unresolved items, got %d", stats.Items.Unresolved)
	}
	if stats.CooldownEntries != 0 {
		t.Errorf("Expected no cooldown entries, got %d", stats.CooldownEntries)
	}
	if stats.Cache == nil {
		t.Error("Expected a cache section")
	}
}

// TestRequestIDPropagation verifies client request IDs are honored and
// generated ones are returned.
func TestRequestIDPropagation(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	t.Run("client supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		req.Header.Set("X-Request-ID", "req-test-42")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "req-test-42" {
			t.Errorf("Expected request ID to round-trip, got %q", got)
		}
		var env envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if env.Meta == nil || env.Meta.RequestID != "req-test-42" {
			t.Errorf("Expected request ID in meta, got %+v", env.Meta)
		}
	})

	t.Run("generated", func(t *testing.T) {
		rec, _ := doRequest(t, r, http.MethodGet, "/api/v1/stats", nil)
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("Expected a generated request ID header")
		}
	})
}

// TestSecurityHeaders verifies the API group carries the hardening
// headers.
func TestSecurityHeaders(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	rec, _ := doRequest(t, r, http.MethodGet, "/api/v1/stats", nil)
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	}
	for name, want := range headers {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("Expected %s=%s, got %q", name, want, got)
		}
	}
}

// TestMetricsEndpoint verifies the Prometheus scrape target responds.
func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "# HELP") {
		t.Error("Expected Prometheus exposition output")
	}
}

// TestRateLimit verifies the API group enforces the per-IP budget while
// the probes stay reachable.
func TestRateLimit(t *testing.T) {
	st := store.NewMemoryStore()
	hist := history.NewMemoryStore(0)
	mcfg := config.DefaultMatchingConfig()
	orch := match.NewOrchestrator(&mcfg, nil, nil, nil, st)
	handler := NewHandler(st, hist, orch, nil, notify.NewCooldown(5*time.Second), cache.New(time.Hour))

	scfg := config.Default().Server
	scfg.RateLimitRequests = 3
	scfg.RateLimitWindow = time.Minute
	r := NewServer(scfg, handler).Routes()

	limited := false
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("Expected the rate limiter to reject the burst")
	}

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected probe request %d to bypass the limiter, got %d", i, rec.Code)
		}
	}
}

// TestReadinessFailure verifies a closed backend flips the readiness
// probe to 503.
func TestReadinessFailure(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := s.Routes()

	handlerWithClosed := NewHandler(closedItemStore{}, history.NewMemoryStore(0), nil, nil, nil, nil)
	scfg := config.Default().Server
	broken := NewServer(scfg, handlerWithClosed).Routes()

	rec, env := doRequest(t, broken, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("Expected error code %s, got %+v", ErrCodeServiceUnavailable, env.Error)
	}

	// The healthy server still reports ready.
	rec, _ = doRequest(t, r, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 from healthy server, got %d", rec.Code)
	}
}

// closedItemStore fails every operation, standing in for a backend that
// went away after startup.
type closedItemStore struct{}

func (closedItemStore) Create(ctx context.Context, item *models.Item) error { return errClosed }
func (closedItemStore) Get(ctx context.Context, id string) (*models.Item, error) {
	return nil, errClosed
}
func (closedItemStore) Update(ctx context.Context, item *models.Item) error { return errClosed }
func (closedItemStore) Delete(ctx context.Context, id string) error         { return errClosed }
func (closedItemStore) List(ctx context.Context) ([]*models.Item, error)    { return nil, errClosed }
func (closedItemStore) FindCandidates(ctx context.Context, itemType models.ItemType, excludeResolved bool) ([]*models.Item, error) {
	return nil, errClosed
}
func (closedItemStore) Resolve(ctx context.Context, itemID, matchedItemID string) error {
	return errClosed
}
func (closedItemStore) Count(ctx context.Context) (int, error) { return 0, errClosed }
func (closedItemStore) Close() error                           { return nil }

var errClosed = fmt.Errorf("store is closed")
