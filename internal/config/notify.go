// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package config

import (
	"fmt"
	"time"
)

// NotifyConfig controls the notification pipeline: the per-user cooldown
// window, the cooldown sweeper cadence, and webhook delivery.
//
// Environment variables: RECLAIM_NOTIFY_COOLDOWN_WINDOW,
// RECLAIM_NOTIFY_SWEEP_INTERVAL, RECLAIM_NOTIFY_WEBHOOK_URL,
// RECLAIM_NOTIFY_WEBHOOK_ENABLED, RECLAIM_NOTIFY_WEBHOOK_RATE_LIMIT_MS.
type NotifyConfig struct {
	// CooldownWindow is how long a user stays muted after a notification
	// is delivered to them. Further intents inside the window are dropped,
	// not queued (default: 5s).
	CooldownWindow time.Duration `koanf:"cooldown_window" validate:"required"`

	// SweepInterval is how often expired cooldown entries are reclaimed
	// (default: 1m).
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// Webhook configures the outbound HTTP notifier.
	Webhook WebhookConfig `koanf:"webhook"`
}

// WebhookConfig configures the webhook notification channel.
type WebhookConfig struct {
	// URL is the endpoint notifications are POSTed to.
	URL string `koanf:"url" validate:"omitempty,url"`

	// Headers are added to every webhook request, typically for
	// authentication.
	Headers map[string]string `koanf:"headers"`

	// Enabled turns the webhook channel on. A URL is still required for
	// deliveries to happen.
	Enabled bool `koanf:"enabled"`

	// RateLimitMs is the minimum spacing between webhook deliveries in
	// milliseconds; 0 disables spacing (default: 1000).
	RateLimitMs int `koanf:"rate_limit_ms" validate:"gte=0"`
}

// DefaultNotifyConfig returns the compiled-in notification settings. The
// webhook channel starts disabled; matches still surface through the log
// notifier.
func DefaultNotifyConfig() NotifyConfig {
	return NotifyConfig{
		CooldownWindow: 5 * time.Second,
		SweepInterval:  time.Minute,
		Webhook: WebhookConfig{
			Enabled:     false,
			RateLimitMs: 1000,
		},
	}
}

// Validate checks cross-field constraints not expressible as tags.
func (c *NotifyConfig) Validate() error {
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("RECLAIM_NOTIFY_WEBHOOK_URL is required when the webhook notifier is enabled")
	}
	return nil
}
