// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the matching engine. It is
// assembled by Load from compiled-in defaults, an optional YAML file,
// and RECLAIM_* environment variables, in that order of precedence
// (environment wins).
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Matching  MatchingConfig  `koanf:"matching"`
	Weights   WeightsConfig   `koanf:"weights"`
	Providers ProvidersConfig `koanf:"providers"`
	Cache     CacheConfig     `koanf:"cache"`
	Notify    NotifyConfig    `koanf:"notify"`
	Store     StoreConfig     `koanf:"store"`
	History   HistoryConfig   `koanf:"history"`
	Rules     RulesConfig     `koanf:"rules"`
}

// ServerConfig holds the HTTP API settings.
//
// Environment variables: RECLAIM_SERVER_LISTEN_ADDR,
// RECLAIM_SERVER_READ_TIMEOUT, RECLAIM_SERVER_WRITE_TIMEOUT,
// RECLAIM_SERVER_SHUTDOWN_TIMEOUT, RECLAIM_SERVER_CORS_ORIGINS,
// RECLAIM_SERVER_RATE_LIMIT_REQUESTS, RECLAIM_SERVER_RATE_LIMIT_WINDOW.
type ServerConfig struct {
	// ListenAddr is the host:port the API binds to (default: :8090).
	ListenAddr string `koanf:"listen_addr" validate:"required"`

	// ReadTimeout and WriteTimeout bound individual requests. The write
	// timeout is generous because a match trigger blocks on provider
	// calls (defaults: 10s / 60s).
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`

	// ShutdownTimeout caps graceful drain on SIGTERM (default: 15s).
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins for browser clients
	// (default: ["*"]).
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests requests per RateLimitWindow per client IP;
	// 0 disables rate limiting (defaults: 100 / 1m).
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds the zerolog settings.
//
// Environment variables: RECLAIM_LOGGING_LEVEL, RECLAIM_LOGGING_FORMAT,
// RECLAIM_LOGGING_CALLER.
type LoggingConfig struct {
	// Level is trace, debug, info, warn, or error (default: info).
	Level string `koanf:"level"`

	// Format is "json" or "console" (default: json).
	Format string `koanf:"format"`

	// Caller adds file:line to every event (default: false).
	Caller bool `koanf:"caller"`
}

// CacheConfig controls the visual signature cache.
//
// Environment variables: RECLAIM_CACHE_SIGNATURE_TTL,
// RECLAIM_CACHE_CLEANUP_INTERVAL.
type CacheConfig struct {
	// SignatureTTL is how long an annotated signature is reused before
	// the vision provider is consulted again (default: 24h).
	SignatureTTL time.Duration `koanf:"signature_ttl" validate:"required"`

	// CleanupInterval is how often expired entries are swept
	// (default: 1h).
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// RulesConfig points at an optional YAML rule set overriding the
// compiled-in category buckets, incompatibility pairs, brand aliases,
// and label corrections.
//
// Environment variable: RECLAIM_RULES_PATH.
type RulesConfig struct {
	// Path is the rule set file; empty means compiled-in defaults only.
	Path string `koanf:"path"`
}

// ProvidersConfig groups the external AI provider settings.
type ProvidersConfig struct {
	Vision VisionConfig `koanf:"vision"`
	Gemini GeminiConfig `koanf:"gemini"`
	OpenAI OpenAIConfig `koanf:"openai"`
}

// Default returns the complete compiled-in configuration. Every knob has
// a usable default; the engine starts with no file and no environment,
// running on in-memory storage with the deterministic fallback scorer.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:        ":8090",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Matching: DefaultMatchingConfig(),
		Weights:  DefaultWeightsConfig(),
		Providers: ProvidersConfig{
			Vision: VisionConfig{
				RatePerSecond: 5,
				Burst:         10,
			},
			Gemini: GeminiConfig{
				Model:       "gemini-2.5-flash",
				Temperature: 0.2,
				MaxTokens:   1024,
			},
			OpenAI: OpenAIConfig{
				Model:       "gpt-4o-mini",
				Temperature: 0.2,
				MaxTokens:   1024,
			},
		},
		Cache: CacheConfig{
			SignatureTTL:    24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Notify:  DefaultNotifyConfig(),
		Store:   DefaultStoreConfig(),
		History: DefaultHistoryConfig(),
		Rules:   RulesConfig{},
	}
}

// Validate checks cross-field constraints not expressible as tags.
func (c *ServerConfig) Validate() error {
	if !strings.Contains(c.ListenAddr, ":") {
		return fmt.Errorf("RECLAIM_SERVER_LISTEN_ADDR must be a host:port address, got %q", c.ListenAddr)
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("RECLAIM_SERVER_RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}

// Validate checks the level and format are values zerolog understands.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("RECLAIM_LOGGING_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Level)
	}
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("RECLAIM_LOGGING_FORMAT must be json or console, got %q", c.Format)
	}
	return nil
}

// Validate checks cross-field constraints not expressible as tags.
func (c *CacheConfig) Validate() error {
	if c.SignatureTTL <= 0 {
		return fmt.Errorf("RECLAIM_CACHE_SIGNATURE_TTL must be positive")
	}
	return nil
}

// Validate checks provider combinations. Exactly one text backend may be
// active; the evaluator picks whichever is enabled and falls back to the
// deterministic scorer when neither is.
func (c *ProvidersConfig) Validate() error {
	if c.Gemini.Enabled && c.OpenAI.Enabled {
		return fmt.Errorf("RECLAIM_PROVIDERS_GEMINI_ENABLED and RECLAIM_PROVIDERS_OPENAI_ENABLED are mutually exclusive; enable one text backend")
	}
	if c.Vision.Enabled {
		if err := validateHTTPURL(c.Vision.URL, "RECLAIM_PROVIDERS_VISION_URL"); err != nil {
			return err
		}
	}
	if c.Gemini.Enabled && c.Gemini.APIKey == "" {
		return fmt.Errorf("RECLAIM_PROVIDERS_GEMINI_API_KEY is required when the gemini provider is enabled")
	}
	if c.OpenAI.Enabled && c.OpenAI.APIKey == "" {
		return fmt.Errorf("RECLAIM_PROVIDERS_OPENAI_API_KEY is required when the openai provider is enabled")
	}
	return nil
}
