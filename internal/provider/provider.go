// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package provider

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nadavby/reclaim/internal/models"
)

// VisionProvider computes a visual signature for a single image.
//
// Implementations must be safe for concurrent use. Errors are classified
// via the package sentinels: ErrUnavailable for transport-level failures,
// ErrMalformedResponse for unusable payloads.
type VisionProvider interface {
	// AnnotateImage analyzes the image identified by imageRef and returns
	// its labels, detected objects, and dominant colors. The reference is
	// provider-opaque: a URL or a storage key, already normalized by the
	// caller.
	AnnotateImage(ctx context.Context, imageRef string) (*models.VisualSignature, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// TextProvider runs a single chat-style completion and returns the raw
// response text. When a response schema is set, implementations request
// structured JSON output from the backend; the caller still decodes and
// validates the payload.
type TextProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// CompletionRequest describes one completion call. System and Prompt are
// plain text; Schema, when non-nil, constrains the output to structured
// JSON matching the schema.
type CompletionRequest struct {
	System     string
	Prompt     string
	SchemaName string // Identifier for the schema (required by some backends)
	Schema     *jsonschema.Schema

	// Temperature overrides the provider's configured sampling temperature
	// when > 0. MaxTokens likewise caps the completion length when > 0.
	Temperature float64
	MaxTokens   int
}
