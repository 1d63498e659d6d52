// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package provider

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/metrics"
)

const (
	openaiProviderName = "openai"
	defaultOpenAIModel = "gpt-4o-mini"

	oaiFinishReasonStop = "stop"
)

// OpenAIProvider implements TextProvider using the OpenAI chat completions
// API, or any OpenAI-compatible gateway via BaseURL. Structured output uses
// json_schema response format in strict mode.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIProvider creates an OpenAI-backed text provider.
func NewOpenAIProvider(cfg *config.OpenAIConfig) (*OpenAIProvider, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("openai provider is disabled")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Name identifies this provider in logs and metrics.
func (o *OpenAIProvider) Name() string {
	return openaiProviderName
}

// Complete runs one completion against the configured OpenAI model.
func (o *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	start := time.Now()
	text, err := o.complete(ctx, req)
	metrics.RecordProviderCall(openaiProviderName, "complete", Outcome(err), time.Since(start))
	if err != nil {
		return "", &Error{Provider: openaiProviderName, Op: "complete", Err: err}
	}
	return text, nil
}

func (o *OpenAIProvider) complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.NewOpt(req.System),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: param.NewOpt(req.Prompt),
			},
		},
	})

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(o.model),
	}
	if temp := o.effectiveTemperature(req); temp > 0 {
		params.Temperature = param.NewOpt(temp)
	}
	if max := o.effectiveMaxTokens(req); max > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(max))
	}
	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: (any)(formatStrictSchema(req.Schema.CloneSchemas())),
					Strict: param.NewOpt(true),
				},
			},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("%w: blocked: %s", ErrMalformedResponse, choice.Message.Refusal)
	}
	if choice.FinishReason != oaiFinishReasonStop {
		return "", fmt.Errorf("%w: unexpected finish reason: %s", ErrMalformedResponse, choice.FinishReason)
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}
	return text, nil
}

func (o *OpenAIProvider) effectiveTemperature(req CompletionRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return o.temperature
}

func (o *OpenAIProvider) effectiveMaxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return o.maxTokens
}

// formatStrictSchema rewrites a schema in place to satisfy OpenAI strict
// mode, which requires additionalProperties: false on every object and
// every property listed in required. Optional properties become nullable
// instead.
//
// See https://platform.openai.com/docs/guides/structured-outputs
func formatStrictSchema(m *jsonschema.Schema) *jsonschema.Schema {
	if m == nil {
		return nil
	}

	// A property that gained "null" below arrives here with both the
	// singular Type and the Types list set; fold Type into the list, the
	// only representation the schema marshaler accepts.
	if m.Type != "" && len(m.Types) > 0 {
		m.Types = append(m.Types, m.Type)
		m.Type = ""
	}

	typ := m.Type
	if typ == "" && len(m.Types) > 0 {
		for _, t := range m.Types {
			if t != "null" && t != "" {
				typ = t
				break
			}
		}
	}

	switch typ {
	case "array":
		m.Items = formatStrictSchema(m.Items)
	case "object":
		m.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}} // false schema

		requires := make(map[string]struct{})
		for _, v := range m.Required {
			requires[v] = struct{}{}
		}
		for k, v := range m.Properties {
			if _, ok := requires[k]; !ok {
				requires[k] = struct{}{}
				if !slices.Contains(v.Types, "null") {
					v.Types = append(v.Types, "null")
				}
			}
			m.Properties[k] = formatStrictSchema(v)
		}
		m.Required = slices.Collect(maps.Keys(requires))
	}
	return m
}
