// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides comprehensive instrumentation for:
// - Match run lifecycle (filtering, scoring, ranking)
// - Provider call performance (vision, text backends)
// - Signature cache efficiency
// - Circuit breaker state
// - Notification delivery and cooldown suppression
// - History store performance (DuckDB)

var (
	// Match Run Metrics
	MatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_runs_total",
			Help: "Total number of match runs by outcome",
		},
		[]string{"outcome"}, // "completed", "degraded", "rejected"
	)

	MatchRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_run_duration_seconds",
			Help:    "Duration of complete match runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120}, // Provider-backed runs can take minutes
		},
	)

	MatchCandidatesConsidered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_candidates_considered",
			Help:    "Number of candidates in the pool per match run",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	MatchCandidatesFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_candidates_filtered_total",
			Help: "Total number of candidates rejected by the pre-filter",
		},
		[]string{"reason"}, // "type", "resolved", "temporal", "category", "distance"
	)

	MatchCandidatesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_candidates_scored_total",
			Help: "Total number of candidates that passed the filter and were scored",
		},
	)

	MatchCandidateErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_candidate_errors_total",
			Help: "Total number of per-candidate scoring errors (candidate skipped)",
		},
		[]string{"stage"}, // "visual", "text", "evaluator"
	)

	MatchScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_score",
			Help:    "Distribution of final match scores",
			Buckets: []float64{10, 20, 30, 40, 50, 55, 60, 70, 75, 80, 90, 100}, // Includes significance and notification thresholds
		},
	)

	MatchSignificantTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_significant_total",
			Help: "Total number of matches at or above the significance threshold",
		},
	)

	MatchFallbackRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "match_fallback_runs_total",
			Help: "Total number of runs rescored with the deterministic fallback rubric",
		},
	)

	ReconcileCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_cycles_total",
			Help: "Total number of completed reconciliation sweeps",
		},
	)

	ReconcileTargets = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_targets_per_cycle",
			Help:    "Number of unresolved reports re-matched per reconciliation sweep",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Provider Metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of provider calls",
		},
		[]string{"provider", "operation", "outcome"}, // outcome: "success", "unavailable", "malformed", "error"
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of provider calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60}, // Vision and LLM calls run long
		},
		[]string{"provider", "operation"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Total number of provider call retries after throttling",
		},
		[]string{"provider"},
	)

	ProviderPayloadRepairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_payload_repairs_total",
			Help: "Total number of provider responses recovered by JSON repair",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "signature"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Notification Metrics
	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Total number of notification intents delivered to a sink",
		},
		[]string{"channel"}, // "webhook", "log"
	)

	NotificationsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Total number of notification intents dropped by the cooldown window",
		},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Total number of notification delivery failures",
		},
		[]string{"channel"},
	)

	CooldownEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_cooldown_entries",
			Help: "Current number of tracked cooldown windows",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, // Optimized for API latency
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// History Store Metrics
	HistoryRecordsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_records_written_total",
			Help: "Total number of match run records persisted",
		},
	)

	HistoryWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_write_errors_total",
			Help: "Total number of failed match run record writes",
		},
	)

	HistoryRecordsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_records_pruned_total",
			Help: "Total number of match run records removed by retention pruning",
		},
	)

	HistoryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "history_query_duration_seconds",
			Help:    "Duration of history store queries in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
		[]string{"operation"},
	)

	// Item Store Metrics
	StoreItemsTracked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_items_tracked",
			Help: "Current number of items in the item store",
		},
		[]string{"item_type"}, // "lost", "found"
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordMatchRun records the outcome of a complete match run.
func RecordMatchRun(outcome string, duration time.Duration, candidates int) {
	MatchRunsTotal.WithLabelValues(outcome).Inc()
	MatchRunDuration.Observe(duration.Seconds())
	MatchCandidatesConsidered.Observe(float64(candidates))
}

// RecordCandidateFiltered records a candidate rejected by the pre-filter.
func RecordCandidateFiltered(reason string) {
	MatchCandidatesFiltered.WithLabelValues(reason).Inc()
}

// RecordCandidateScored records a candidate that entered the scoring phase.
func RecordCandidateScored() {
	MatchCandidatesScored.Inc()
}

// RecordCandidateError records a per-candidate scoring failure.
func RecordCandidateError(stage string) {
	MatchCandidateErrors.WithLabelValues(stage).Inc()
}

// RecordMatchScore records a final candidate score and whether it cleared
// the significance threshold.
func RecordMatchScore(score float64, significant bool) {
	MatchScoreDistribution.Observe(score)
	if significant {
		MatchSignificantTotal.Inc()
	}
}

// RecordReconcileCycle records one completed reconciliation sweep.
func RecordReconcileCycle(targets int) {
	ReconcileCyclesTotal.Inc()
	ReconcileTargets.Observe(float64(targets))
}

// RecordProviderCall records a provider request metric.
func RecordProviderCall(provider, operation, outcome string, duration time.Duration) {
	ProviderRequestsTotal.WithLabelValues(provider, operation, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordProviderRetry records a retry after provider throttling.
func RecordProviderRetry(provider string) {
	ProviderRetries.WithLabelValues(provider).Inc()
}

// RecordPayloadRepair records a provider response recovered by JSON repair.
func RecordPayloadRepair() {
	ProviderPayloadRepairs.Inc()
}

// RecordCacheHit records a cache hit for the given cache type.
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given cache type.
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheEviction records TTL evictions for the given cache type.
func RecordCacheEviction(cacheType string, count int) {
	CacheEvictions.WithLabelValues(cacheType).Add(float64(count))
}

// SetCacheSize updates the entry count gauge for the given cache type.
func SetCacheSize(cacheType string, entries int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(entries))
}

// RecordNotificationEmitted records a delivered notification intent.
func RecordNotificationEmitted(channel string) {
	NotificationsEmitted.WithLabelValues(channel).Inc()
}

// RecordNotificationSuppressed records an intent dropped by the cooldown window.
func RecordNotificationSuppressed() {
	NotificationsSuppressed.Inc()
}

// RecordNotificationFailure records a failed delivery attempt.
func RecordNotificationFailure(channel string) {
	NotificationFailures.WithLabelValues(channel).Inc()
}

// SetCooldownEntries updates the tracked cooldown window gauge.
func SetCooldownEntries(count int) {
	CooldownEntries.Set(float64(count))
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordHistoryWrite records a match run record write and its outcome.
func RecordHistoryWrite(err error) {
	if err != nil {
		HistoryWriteErrors.Inc()
		return
	}
	HistoryRecordsWritten.Inc()
}

// RecordHistoryPrune records retention pruning of match run records.
func RecordHistoryPrune(removed int) {
	HistoryRecordsPruned.Add(float64(removed))
}

// RecordHistoryQuery records a history store query metric.
func RecordHistoryQuery(operation string, duration time.Duration) {
	HistoryQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetStoreItems updates the item count gauge for the given item type.
func SetStoreItems(itemType string, count int) {
	StoreItemsTracked.WithLabelValues(itemType).Set(float64(count))
}
