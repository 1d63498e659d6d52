// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/metrics"
)

const (
	geminiProviderName = "gemini"
	defaultGeminiModel = "gemini-2.5-flash"
)

// GeminiProvider implements TextProvider using the Gemini API. Structured
// output is requested through response schemas, which Gemini enforces
// server-side, so payloads rarely need the lenient decode path.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewGeminiProvider creates a Gemini-backed text provider. The context is
// used only for client construction, not for later completions.
func NewGeminiProvider(ctx context.Context, cfg *config.GeminiConfig) (*GeminiProvider, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("gemini provider is disabled")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Name identifies this provider in logs and metrics.
func (g *GeminiProvider) Name() string {
	return geminiProviderName
}

// Complete runs one completion against the configured Gemini model.
func (g *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	start := time.Now()
	text, err := g.complete(ctx, req)
	metrics.RecordProviderCall(geminiProviderName, "complete", Outcome(err), time.Since(start))
	if err != nil {
		return "", &Error{Provider: geminiProviderName, Op: "complete", Err: err}
	}
	return text, nil
}

func (g *GeminiProvider) complete(ctx context.Context, req CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{}

	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		}
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schemaToGenAI(req.Schema)
	}
	if temp := g.effectiveTemperature(req); temp > 0 {
		t := float32(temp)
		cfg.Temperature = &t
	}
	if max := g.effectiveMaxTokens(req); max > 0 {
		cfg.MaxOutputTokens = int32(max)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{genai.NewPartFromText(req.Prompt)},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates returned", ErrMalformedResponse)
	}

	cand := resp.Candidates[0]
	if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != "" {
		return "", fmt.Errorf("%w: unexpected finish reason: %s", ErrMalformedResponse, cand.FinishReason)
	}

	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}
	return text, nil
}

func (g *GeminiProvider) effectiveTemperature(req CompletionRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return g.temperature
}

func (g *GeminiProvider) effectiveMaxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return g.maxTokens
}

// schemaToGenAI converts a JSON schema into Gemini's native schema type.
// Only the subset used for structured output is mapped: object trees with
// typed properties, required lists, enums, and array item schemas.
func schemaToGenAI(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       schemaToGenAI(schema.Items),
		Required:    schema.Required,
	}

	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = schemaToGenAI(prop)
		}
	}

	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}
