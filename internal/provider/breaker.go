// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
)

// BreakerConfig tunes the circuit breaker around a provider. Zero values
// fall back to the defaults from DefaultBreakerConfig.
type BreakerConfig struct {
	MaxRequests  uint32        // Probe requests allowed in half-open state
	Interval     time.Duration // Rolling window for failure counting in closed state
	Timeout      time.Duration // How long the breaker stays open before probing
	MinRequests  uint32        // Minimum requests in the window before tripping
	FailureRatio float64       // Failure ratio at or above which the breaker trips
}

// DefaultBreakerConfig returns the standard provider breaker tuning:
// trip at 60% failures over at least 10 requests per minute, stay open
// for 2 minutes, then allow 3 probe requests.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Breaker wraps gobreaker with state metrics and trip logging. Rejected
// requests surface as ErrUnavailable so callers degrade the same way they
// do for an unreachable provider.
type Breaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
}

// NewBreaker creates a circuit breaker named for the provider it guards.
func NewBreaker[T any](name string, cfg BreakerConfig) *Breaker[T] {
	def := DefaultBreakerConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = def.FailureRatio
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRatio
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("requests", counts.Requests).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_ratio", failureRatio).
					Msg("Circuit breaker tripping")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	}

	return &Breaker[T]{
		name: name,
		cb:   gobreaker.NewCircuitBreaker[T](settings),
	}
}

// Execute runs fn through the breaker, recording the result. When the
// breaker is open or half-open capacity is exhausted, the request is
// rejected without calling fn.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		var zero T
		return zero, fmt.Errorf("circuit breaker %q rejected request: %w", b.name, ErrUnavailable)
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return result, err
	}
}

// State returns the breaker's current state.
func (b *Breaker[T]) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// VisionBreaker decorates a VisionProvider with circuit breaker
// protection. It satisfies VisionProvider itself, so it drops in wherever
// the undecorated provider is used.
type VisionBreaker struct {
	inner   VisionProvider
	breaker *Breaker[*models.VisualSignature]
}

// NewVisionBreaker wraps the provider in a breaker named after it.
func NewVisionBreaker(inner VisionProvider, cfg BreakerConfig) *VisionBreaker {
	return &VisionBreaker{
		inner:   inner,
		breaker: NewBreaker[*models.VisualSignature](inner.Name(), cfg),
	}
}

// AnnotateImage delegates to the wrapped provider through the breaker.
func (v *VisionBreaker) AnnotateImage(ctx context.Context, imageRef string) (*models.VisualSignature, error) {
	return v.breaker.Execute(func() (*models.VisualSignature, error) {
		return v.inner.AnnotateImage(ctx, imageRef)
	})
}

// Name returns the wrapped provider's name.
func (v *VisionBreaker) Name() string {
	return v.inner.Name()
}

// TextBreaker decorates a TextProvider with circuit breaker protection.
type TextBreaker struct {
	inner   TextProvider
	breaker *Breaker[string]
}

// NewTextBreaker wraps the provider in a breaker named after it.
func NewTextBreaker(inner TextProvider, cfg BreakerConfig) *TextBreaker {
	return &TextBreaker{
		inner:   inner,
		breaker: NewBreaker[string](inner.Name(), cfg),
	}
}

// Complete delegates to the wrapped provider through the breaker.
func (t *TextBreaker) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return t.breaker.Execute(func() (string, error) {
		return t.inner.Complete(ctx, req)
	})
}

// Name returns the wrapped provider's name.
func (t *TextBreaker) Name() string {
	return t.inner.Name()
}
