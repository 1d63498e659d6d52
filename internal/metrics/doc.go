// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring match run performance, provider health,
and notification delivery.

# Overview

The package provides metrics for:
  - Match run lifecycle (filter rejections, scored candidates, score distribution)
  - Provider call latency and outcomes (vision and text backends)
  - Signature cache hit/miss rates and evictions
  - Circuit breaker state transitions
  - Notification delivery and cooldown suppression
  - History store (DuckDB) query performance
  - Ops API latency and throughput

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8460/metrics

# Available Metrics

Match Run Metrics:
  - match_runs_total: Total match runs (counter)
    Labels: outcome (completed, degraded, rejected)
  - match_run_duration_seconds: Run duration (histogram)
    Buckets: 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120
  - match_candidates_filtered_total: Pre-filter rejections (counter)
    Labels: reason (resolved, temporal, category, distance)
  - match_candidates_scored_total: Candidates scored (counter)
  - match_score: Final score distribution (histogram)
    Buckets include the significance (55) and notification (75) thresholds
  - match_fallback_runs_total: Runs rescored with the deterministic rubric (counter)

Provider Metrics:
  - provider_requests_total: Provider calls (counter)
    Labels: provider, operation, outcome (success, unavailable, malformed, error)
  - provider_request_duration_seconds: Call latency (histogram)
    Labels: provider, operation
  - provider_retries_total: Retries after throttling (counter)
    Labels: provider
  - provider_payload_repairs_total: Responses recovered by JSON repair (counter)

Cache Metrics:
  - cache_hits_total / cache_misses_total: Cache efficiency (counters)
    Labels: cache_type
  - cache_entries: Current entry count (gauge)
  - cache_evictions_total: TTL evictions (counter)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests through breaker (counter)
    Labels: name, result (success, failure, rejected)
  - circuit_breaker_state_transitions_total: State transitions (counter)
    Labels: name, from_state, to_state

Notification Metrics:
  - notifications_emitted_total: Delivered intents (counter)
    Labels: channel
  - notifications_suppressed_total: Intents dropped by cooldown (counter)
  - notification_failures_total: Delivery failures (counter)
    Labels: channel
  - notification_cooldown_entries: Tracked cooldown windows (gauge)

History Store Metrics:
  - history_records_written_total / history_write_errors_total (counters)
  - history_records_pruned_total: Records removed by retention (counter)
  - history_query_duration_seconds: Query latency (histogram)
    Labels: operation

# Usage Example

Basic setup in main.go:

	import (
	    "github.com/nadavby/reclaim/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())

	    metrics.RecordMatchRun("completed", 2300*time.Millisecond, 42)
	    metrics.RecordCandidateFiltered("temporal")
	    metrics.RecordProviderCall("gemini", "evaluate_match", "success", 1200*time.Millisecond)
	}

Recording provider metrics around a call:

	start := time.Now()
	sig, err := client.Analyze(ctx, imageRef)
	outcome := "success"
	if err != nil {
	    outcome = classifyProviderError(err)
	}
	metrics.RecordProviderCall("vision", "analyze", outcome, time.Since(start))

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'reclaim'
	    static_configs:
	      - targets: ['localhost:8460']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

Example PromQL queries:

	# Match run rate
	rate(match_runs_total[5m])

	# Provider p95 latency
	histogram_quantile(0.95, rate(provider_request_duration_seconds_bucket[5m]))

	# Signature cache hit rate
	sum(rate(cache_hits_total[5m])) / (sum(rate(cache_hits_total[5m])) + sum(rate(cache_misses_total[5m])))

	# Cooldown suppression ratio
	rate(notifications_suppressed_total[5m]) / rate(notifications_emitted_total[5m])

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.

# Cardinality Management

To prevent high cardinality issues:

  - Filter reasons, run outcomes, and provider outcomes are fixed constants
  - Endpoint labels are normalized (no query parameters)
  - User and item identifiers are never used as labels

# See Also

  - internal/server: ops endpoints with metrics integration
  - internal/match: match run metrics recording
  - internal/provider: provider call metrics recording
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
*/
package metrics
