// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package config assembles and validates the engine's runtime
configuration.

Load layers three sources with koanf, later layers winning:

 1. Compiled-in defaults (Default). Every knob has one; the engine
    starts with no file and no environment, on in-memory storage with
    the deterministic fallback scorer.
 2. An optional YAML file. CONFIG_PATH names it explicitly; otherwise
    config.yaml, config.yml, /etc/reclaim/config.yaml, and
    /etc/reclaim/config.yml are tried in order.
 3. RECLAIM_* environment variables, mapped to config paths through an
    explicit table (see envMappings). Unknown variables are ignored.

Typical startup:

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration invalid")
	}

Validation runs automatically at the end of Load: struct tag rules
first (go-playground/validator), then per-section cross-field checks.
Error messages name the RECLAIM_* variable to fix.

Sections and their homes:

  - ServerConfig, LoggingConfig, CacheConfig, RulesConfig,
    ProvidersConfig: config.go
  - MatchingConfig, WeightsConfig: matching.go
  - VisionConfig, GeminiConfig, OpenAIConfig: provider.go
  - NotifyConfig, WebhookConfig: notify.go
  - StoreConfig, HistoryConfig: storage.go

Two values resist the flat variable-to-path mapping and get special
treatment: RECLAIM_SERVER_CORS_ORIGINS is comma-split into a slice, and
RECLAIM_NOTIFY_WEBHOOK_HEADERS is parsed as K=V,K2=V2 pairs into the
webhook header map.
*/
package config
