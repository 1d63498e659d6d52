// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset. A
// missing file is not an error; the engine runs on defaults plus
// environment.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reclaim/config.yaml",
	"/etc/reclaim/config.yml",
}

// sliceConfigPaths lists fields that accept comma-separated values from
// the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// Load builds the runtime configuration from three layers, later layers
// winning: compiled-in defaults, an optional YAML file, and RECLAIM_*
// environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Webhook headers arrive as a single K=V,K2=V2 variable, which the
	// dotted-path transform cannot express as a map.
	if headers := getMapEnv("RECLAIM_NOTIFY_WEBHOOK_HEADERS", nil); len(headers) > 0 {
		cfg.Notify.Webhook.Headers = headers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first readable config file, or "" when
// none exists. An explicit CONFIG_PATH that does not exist still
// returns the path so Load surfaces the error instead of silently
// running on defaults.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps RECLAIM_* environment variable names to koanf
// config paths. Unknown variables return "" and are skipped, so
// unrelated environment noise never lands in the config tree.
//
// Examples:
//   - RECLAIM_SERVER_LISTEN_ADDR -> server.listen_addr
//   - RECLAIM_MATCHING_MATCH_THRESHOLD -> matching.match_threshold
//   - RECLAIM_PROVIDERS_GEMINI_API_KEY -> providers.gemini.api_key
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// envMappings is the explicit variable-to-path table. A mechanical
// underscore-to-dot transform cannot tell section boundaries apart from
// multi-word field names (NOTIFY_WEBHOOK_URL vs MATCH_THRESHOLD), so
// every supported variable is listed.
var envMappings = map[string]string{
	// Server
	"reclaim_server_listen_addr":         "server.listen_addr",
	"reclaim_server_read_timeout":        "server.read_timeout",
	"reclaim_server_write_timeout":       "server.write_timeout",
	"reclaim_server_shutdown_timeout":    "server.shutdown_timeout",
	"reclaim_server_cors_origins":        "server.cors_origins",
	"reclaim_server_rate_limit_requests": "server.rate_limit_requests",
	"reclaim_server_rate_limit_window":   "server.rate_limit_window",

	// Logging
	"reclaim_logging_level":  "logging.level",
	"reclaim_logging_format": "logging.format",
	"reclaim_logging_caller": "logging.caller",

	// Matching
	"reclaim_matching_parallelism":        "matching.parallelism",
	"reclaim_matching_provider_timeout":   "matching.provider_timeout",
	"reclaim_matching_match_threshold":    "matching.match_threshold",
	"reclaim_matching_notify_threshold":   "matching.notify_threshold",
	"reclaim_matching_reconcile_interval": "matching.reconcile_interval",

	// Evaluator rubric weights
	"reclaim_weights_visual":   "weights.visual",
	"reclaim_weights_category": "weights.category",
	"reclaim_weights_temporal": "weights.temporal",
	"reclaim_weights_location": "weights.location",

	// Vision provider
	"reclaim_providers_vision_enabled":         "providers.vision.enabled",
	"reclaim_providers_vision_url":             "providers.vision.url",
	"reclaim_providers_vision_api_key":         "providers.vision.api_key",
	"reclaim_providers_vision_rate_per_second": "providers.vision.rate_per_second",
	"reclaim_providers_vision_burst":           "providers.vision.burst",

	// Gemini text backend
	"reclaim_providers_gemini_enabled":     "providers.gemini.enabled",
	"reclaim_providers_gemini_api_key":     "providers.gemini.api_key",
	"reclaim_providers_gemini_model":       "providers.gemini.model",
	"reclaim_providers_gemini_temperature": "providers.gemini.temperature",
	"reclaim_providers_gemini_max_tokens":  "providers.gemini.max_tokens",

	// OpenAI text backend
	"reclaim_providers_openai_enabled":     "providers.openai.enabled",
	"reclaim_providers_openai_api_key":     "providers.openai.api_key",
	"reclaim_providers_openai_base_url":    "providers.openai.base_url",
	"reclaim_providers_openai_model":       "providers.openai.model",
	"reclaim_providers_openai_temperature": "providers.openai.temperature",
	"reclaim_providers_openai_max_tokens":  "providers.openai.max_tokens",

	// Signature cache
	"reclaim_cache_signature_ttl":    "cache.signature_ttl",
	"reclaim_cache_cleanup_interval": "cache.cleanup_interval",

	// Notifications
	"reclaim_notify_cooldown_window":       "notify.cooldown_window",
	"reclaim_notify_sweep_interval":        "notify.sweep_interval",
	"reclaim_notify_webhook_enabled":       "notify.webhook.enabled",
	"reclaim_notify_webhook_url":           "notify.webhook.url",
	"reclaim_notify_webhook_rate_limit_ms": "notify.webhook.rate_limit_ms",

	// Item store
	"reclaim_store_backend": "store.backend",
	"reclaim_store_path":    "store.path",

	// Run history
	"reclaim_history_backend":        "history.backend",
	"reclaim_history_path":           "history.path",
	"reclaim_history_retention":      "history.retention",
	"reclaim_history_buffer":         "history.buffer",
	"reclaim_history_prune_interval": "history.prune_interval",

	// Analyzer rule set
	"reclaim_rules_path": "rules.path",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Environment values come in as strings, but
// the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice from the YAML layer.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
