// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// RouterConfig controls the dispatch router.
type RouterConfig struct {
	// CloseTimeout bounds graceful shutdown (default: 30s).
	CloseTimeout time.Duration

	// Retry settings for handler errors. The dispatcher absorbs its own
	// failures, so retries only cover panics surfaced by the recoverer.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64
}

// DefaultRouterConfig returns production dispatch settings.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
	}
}

// Router runs the notification delivery pipeline: it subscribes the
// dispatcher to the intent topic and supervises message flow. Shutdown is
// driven by the Run context; signals are the supervisor's concern.
type Router struct {
	router *message.Router
	logger watermill.LoggerAdapter
}

// NewRouter wires the dispatcher to the bus intent topic. A nil logger
// falls back to the Watermill standard logger.
func NewRouter(cfg RouterConfig, bus *Bus, dispatcher *Dispatcher, logger watermill.LoggerAdapter) (*Router, error) {
	if bus == nil {
		return nil, fmt.Errorf("notify router requires a bus")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("notify router requires a dispatcher")
	}
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultRouterConfig().CloseTimeout
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create dispatch router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	if cfg.RetryMaxRetries > 0 {
		router.AddMiddleware(middleware.Retry{
			MaxRetries:      cfg.RetryMaxRetries,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
			Multiplier:      cfg.RetryMultiplier,
			Logger:          logger,
		}.Middleware)
	}

	router.AddNoPublisherHandler(
		"notify.dispatch",
		IntentTopic(),
		bus.Subscriber(),
		dispatcher.Handle,
	)

	return &Router{router: router, logger: logger}, nil
}

// Run starts the router and blocks until ctx is cancelled or the router
// fails. It is shaped as a supervised service.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once the router is handling
// messages. Publish after this to avoid dropping intents on a
// not-yet-subscribed channel.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close shuts the router down, waiting up to CloseTimeout for in-flight
// handlers.
func (r *Router) Close() error {
	return r.router.Close()
}
