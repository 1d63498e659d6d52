// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/match"
)

// WebhookNotifier posts match notifications to a configured HTTP
// endpoint, typically the app backend that owns push delivery.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
	enabled bool
	mu      sync.RWMutex

	// Rate limiting
	lastSent  time.Time
	rateLimit time.Duration
}

// WebhookPayload is the JSON body delivered to the webhook endpoint.
type WebhookPayload struct {
	Intent    *match.NotificationIntent `json:"intent"`
	EventType string                    `json:"event_type"` // match_notification
	Timestamp time.Time                 `json:"timestamp"`
	Source    string                    `json:"source"` // reclaim
}

// NewWebhookNotifier creates a webhook notifier. A zero RateLimitMs means
// deliveries are not spaced out.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	headers := make(map[string]string)
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &WebhookNotifier{
		url:       cfg.URL,
		headers:   headers,
		enabled:   cfg.Enabled,
		rateLimit: time.Duration(cfg.RateLimitMs) * time.Millisecond,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Enabled returns whether this notifier is enabled and has somewhere to
// deliver to.
func (n *WebhookNotifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled && n.url != ""
}

// SetEnabled enables or disables the notifier.
func (n *WebhookNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetURL updates the webhook URL.
func (n *WebhookNotifier) SetURL(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.url = url
}

// SetHeaders replaces the custom headers.
func (n *WebhookNotifier) SetHeaders(headers map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.headers = make(map[string]string)
	for k, v := range headers {
		n.headers[k] = v
	}
}

// Send delivers one notification to the webhook endpoint, honoring the
// configured delivery spacing.
func (n *WebhookNotifier) Send(ctx context.Context, intent *match.NotificationIntent) error {
	n.mu.RLock()
	if !n.enabled || n.url == "" {
		n.mu.RUnlock()
		return nil
	}
	url := n.url
	headers := make(map[string]string)
	for k, v := range n.headers {
		headers[k] = v
	}
	rateLimit := n.rateLimit
	lastSent := n.lastSent
	n.mu.RUnlock()

	if wait := rateLimit - time.Since(lastSent); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	payload := WebhookPayload{
		Intent:    intent,
		EventType: "match_notification",
		Timestamp: time.Now().UTC(),
		Source:    "reclaim",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	n.mu.Lock()
	n.lastSent = time.Now()
	n.mu.Unlock()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
