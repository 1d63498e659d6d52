// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package main is the entry point for the Reclaim matching engine.

Reclaim scores lost reports against found reports for a lost-and-found
service. It annotates item photos through a vision provider, rates
candidate pairs with an AI evaluator (Gemini or OpenAI), falls back to a
deterministic rubric when providers misbehave, and notifies users when a
high-confidence match surfaces.

# Application Architecture

The engine implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("reclaim")
	├── DataSupervisor ("data-layer")
	│   ├── History Recorder (async run record writes)
	│   ├── History Pruner (retention enforcement)
	│   └── Cache Janitor (signature cache sweeps)
	├── NotifySupervisor ("notify-layer")
	│   ├── Intent Router (bus -> cooldown -> notifiers)
	│   └── Cooldown Sweeper (expired entry reclaim)
	├── APISupervisor ("api-layer")
	│   └── HTTP Server (items, matches, runs, stats)
	└── MatchingSupervisor ("matching-layer")
	    └── Reconciler (periodic re-match of unresolved items)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, YAML file, RECLAIM_* variables
 2. Logging: zerolog with JSON/console output modes
 3. Item store: in-memory registry or embedded BadgerDB
 4. Run history: in-memory ring or embedded DuckDB
 5. Rule set: compiled-in category/brand rules, optionally from YAML
 6. Providers: vision annotator plus one text evaluator, each behind a
    circuit breaker
 7. Orchestrator: filter, concurrent scoring, ranking, thresholds
 8. Notification pipeline: Watermill bus, cooldown gate, notifiers
 9. Supervisor tree: Suture v4 process supervision
 10. HTTP server: Chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	RECLAIM_SERVER_LISTEN_ADDR=:8090
	RECLAIM_LOGGING_LEVEL=info        # trace, debug, info, warn, error
	RECLAIM_LOGGING_FORMAT=json       # json or console

	# Storage (defaults are in-memory)
	RECLAIM_STORE_BACKEND=badger
	RECLAIM_STORE_PATH=/data/items
	RECLAIM_HISTORY_BACKEND=duckdb
	RECLAIM_HISTORY_PATH=/data/history.db

	# Providers (all optional; the engine runs degraded without them)
	RECLAIM_PROVIDERS_VISION_ENABLED=true
	RECLAIM_PROVIDERS_VISION_URL=https://vision.example.com
	RECLAIM_PROVIDERS_VISION_API_KEY=<key>

	RECLAIM_PROVIDERS_GEMINI_ENABLED=true
	RECLAIM_PROVIDERS_GEMINI_API_KEY=<key>

	RECLAIM_PROVIDERS_OPENAI_ENABLED=false
	RECLAIM_PROVIDERS_OPENAI_API_KEY=<key>

	# Matching
	RECLAIM_MATCHING_MATCH_THRESHOLD=55
	RECLAIM_MATCHING_NOTIFY_THRESHOLD=75
	RECLAIM_MATCHING_RECONCILE_INTERVAL=1h   # 0 disables

The Gemini and OpenAI backends are mutually exclusive; enable at most
one. With no text backend the evaluator uses the deterministic fallback
rubric and every run reports degraded.

# Degraded Operation

Provider failure never fails a match request. When the evaluator errors
mid-run, the entire surviving candidate set is rescored with the
deterministic rubric so all scores in one result come from the same
method, and the result is flagged degraded. Circuit breakers around both
providers shed load during outages instead of queueing it.

# Signal Handling

The engine handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Waits for in-flight requests (configurable drain timeout)
 3. Stops the reconciler and the notification router
 4. Flushes pending run records and closes the stores
 5. Reports any services that failed to stop

# Usage Examples

Development (in-memory, no providers, deterministic scoring):

	go run ./cmd/matcher

Production (persistent stores, Gemini evaluator):

	export RECLAIM_STORE_BACKEND=badger RECLAIM_STORE_PATH=/data/items
	export RECLAIM_HISTORY_BACKEND=duckdb RECLAIM_HISTORY_PATH=/data/history.db
	export RECLAIM_PROVIDERS_VISION_ENABLED=true
	export RECLAIM_PROVIDERS_VISION_URL=https://vision.internal
	export RECLAIM_PROVIDERS_GEMINI_ENABLED=true
	export RECLAIM_PROVIDERS_GEMINI_API_KEY=$GEMINI_KEY
	./matcher

Docker:

	docker run -d \
	  -e RECLAIM_STORE_BACKEND=badger \
	  -e RECLAIM_STORE_PATH=/data/items \
	  -v reclaim-data:/data \
	  -p 8090:8090 \
	  ghcr.io/nadavby/reclaim

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/match: Scoring pipeline and reconciliation
  - internal/server: HTTP handlers and routing
  - internal/notify: Notification bus and dispatch
*/
package main
