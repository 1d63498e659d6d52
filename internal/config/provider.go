// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package config

// VisionConfig holds connection settings for the image annotation service.
//
// The vision provider is an HTTP service that accepts an image reference and
// returns detected labels, objects, and dominant colors. Rate limiting is
// client-side (token bucket) on top of the provider's own HTTP 429 handling.
//
// Environment Variables:
//   - RECLAIM_PROVIDERS_VISION_ENABLED: Enable the vision provider (default: false)
//   - RECLAIM_PROVIDERS_VISION_URL: Base URL of the annotation service
//   - RECLAIM_PROVIDERS_VISION_API_KEY: Bearer token for authentication
type VisionConfig struct {
	Enabled       bool    `koanf:"enabled"`
	URL           string  `koanf:"url" validate:"omitempty,url"`
	APIKey        string  `koanf:"api_key"`
	RatePerSecond float64 `koanf:"rate_per_second" validate:"gte=0"` // Client-side request rate (default: 5)
	Burst         int     `koanf:"burst" validate:"gte=0"`           // Token bucket burst size (default: 10)
}

// GeminiConfig holds settings for the Gemini text completion backend.
type GeminiConfig struct {
	Enabled     bool    `koanf:"enabled"`
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"` // Default: gemini-2.5-flash
	Temperature float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens" validate:"gte=0"`
}

// OpenAIConfig holds settings for the OpenAI text completion backend.
// BaseURL is overridable for OpenAI-compatible gateways and for tests.
type OpenAIConfig struct {
	Enabled     bool    `koanf:"enabled"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url" validate:"omitempty,url"`
	Model       string  `koanf:"model"` // Default: gpt-4o-mini
	Temperature float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens" validate:"gte=0"`
}
