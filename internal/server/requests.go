// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nadavby/reclaim/internal/history"
	"github.com/nadavby/reclaim/internal/models"
)

var validate = validator.New()

// maxRunsPageSize caps how many run records one query may return.
const maxRunsPageSize = 500

// CreateItemRequest is the POST /api/v1/items payload.
type CreateItemRequest struct {
	// ID is optional; one is generated when absent.
	ID          string           `json:"id" validate:"omitempty,max=128"`
	UserID      string           `json:"user_id" validate:"required,max=128"`
	Type        string           `json:"type" validate:"required,oneof=lost found"`
	Name        string           `json:"name" validate:"required,max=256"`
	Description string           `json:"description" validate:"max=4096"`
	Category    string           `json:"category" validate:"max=128"`
	Location    *models.Location `json:"location"`
	Timestamp   time.Time        `json:"timestamp"`
	ImageRef    string           `json:"image_ref" validate:"omitempty,max=1024"`
}

// ToItem builds the item record. Missing IDs are generated and a missing
// report time defaults to now, since most reports are filed right after
// the loss or find.
func (req *CreateItemRequest) ToItem() *models.Item {
	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	item := &models.Item{
		ID:          id,
		UserID:      req.UserID,
		Type:        models.ItemType(req.Type),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Timestamp:   ts,
		ImageRef:    req.ImageRef,
	}
	if req.Location != nil {
		item.Location = *req.Location
	}
	return item
}

// UpdateItemRequest is the PUT /api/v1/items/{id} payload. The update
// replaces the describable fields wholesale; omitted fields are cleared.
// UserID and Type are immutable and absent here.
type UpdateItemRequest struct {
	Name        string           `json:"name" validate:"required,max=256"`
	Description string           `json:"description" validate:"max=4096"`
	Category    string           `json:"category" validate:"max=128"`
	Location    *models.Location `json:"location"`
	Timestamp   time.Time        `json:"timestamp"`
	ImageRef    string           `json:"image_ref" validate:"omitempty,max=1024"`
}

// ResolveItemRequest is the POST /api/v1/items/{id}/resolve payload.
type ResolveItemRequest struct {
	// MatchedItemID cross-links the confirmed counterpart; empty resolves
	// the item without one.
	MatchedItemID string `json:"matched_item_id" validate:"omitempty,max=128"`
}

// fieldError is one entry in a validation error's details.
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// decodeAndValidate parses a JSON body into req and runs its validation
// tags. The returned details slice is non-nil only for tag failures and
// is suitable for ValidationError responses.
func decodeAndValidate(r *http.Request, req interface{}) (details []fieldError, err error) {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return nil, errors.New("invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details = make([]fieldError, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag()})
			}
		}
		return details, errors.New("validation failed")
	}
	return nil, nil
}

// parseRunsFilter builds a history query from GET /api/v1/runs query
// parameters. Unparseable values are reported rather than ignored so a
// typo does not silently widen the query.
func parseRunsFilter(r *http.Request) (history.QueryFilter, error) {
	filter := history.DefaultQueryFilter()
	q := r.URL.Query()

	if v := q.Get("target_id"); v != "" {
		filter.TargetID = v
	}
	if v := q.Get("target_type"); v != "" {
		t := models.ItemType(v)
		if !t.IsValid() {
			return filter, errors.New("target_type must be lost or found")
		}
		filter.TargetType = t
	}
	if v := q.Get("degraded"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("degraded must be true or false")
		}
		filter.Degraded = &b
	}
	if v := q.Get("min_top_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return filter, errors.New("min_top_score must be an integer between 0 and 100")
		}
		filter.MinTopScore = n
	}
	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("start_time must be RFC3339")
		}
		filter.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("end_time must be RFC3339")
		}
		filter.EndTime = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, errors.New("limit must be a positive integer")
		}
		if n > maxRunsPageSize {
			n = maxRunsPageSize
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}
