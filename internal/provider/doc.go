// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package provider holds the clients for the external analysis services the
matching engine depends on: the vision annotation service and the text
completion backends.

Key Components:

  - VisionProvider / VisionClient: HTTP client for the image annotation
    service, returning label, object, and color signatures per image
  - TextProvider / GeminiProvider / OpenAIProvider: chat-style completion
    backends with structured JSON output via response schemas
  - Breaker: generic circuit breaker wrapper (gobreaker) with Prometheus
    state metrics, plus VisionBreaker/TextBreaker decorators
  - DecodeLenient: JSON decoding with a repair pass for damaged model
    output (markdown fences, trailing commas, truncation)

Error Classification:

All failures are mapped onto two sentinels so scoring code can branch
uniformly regardless of backend:

  - ErrUnavailable: transport failures, HTTP 5xx, exhausted rate limit
    retries, open circuit breakers
  - ErrMalformedResponse: undecodable payloads, refusals, empty or
    truncated completions

The analyzers treat both as degraded-scoring signals rather than hard
failures: a vision outage produces a zero visual score, a text outage
routes the run to the deterministic fallback scorer.

Fault Tolerance:

  - Circuit Breaker: trips at 60% failures over at least 10 requests per
    minute, stays open for 2 minutes, then allows 3 probe requests
  - Rate Limiting: client-side token bucket admission plus exponential
    backoff for HTTP 429 (1s, 2s, 4s, 8s, 16s, max 5 retries)
  - Payload Repair: syntax-damaged JSON from completion backends is run
    through jsonrepair before being rejected

Usage Example:

	vision, err := provider.NewVisionClient(&cfg.Providers.Vision)
	if err != nil {
	    log.Fatal(err)
	}
	protected := provider.NewVisionBreaker(vision, provider.DefaultBreakerConfig())
	sig, err := protected.AnnotateImage(ctx, imageRef)

Thread Safety:

All clients are safe for concurrent use. The breakers serialize state
transitions internally; the vision client's token bucket serializes
request admission.

Metrics:

  - provider_requests_total: calls by provider, operation, and outcome
  - provider_retries_total: HTTP 429 retry attempts by provider
  - provider_payload_repairs_total: successful JSON repair passes
  - circuit_breaker_state: current breaker state (0=closed, 1=half-open, 2=open)
  - circuit_breaker_requests_total: breaker results (success/failure/rejected)

See Also:

  - internal/analyzer: consumers of both provider interfaces
  - internal/config: provider connection settings
  - internal/metrics: Prometheus collectors
*/
package provider
