// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/nadavby/reclaim/internal/metrics"
)

// DefaultCooldownWindow is how long a user stays muted after a
// notification is delivered to them.
const DefaultCooldownWindow = 5 * time.Second

// Cooldown rate-limits notifications per user. The first intent for a
// user opens the window; every further intent for that user is dropped
// until the window elapses. Denied attempts do not extend the window, so
// a user who keeps triggering matches still hears about them once per
// window rather than never.
type Cooldown struct {
	mu      sync.Mutex
	entries map[string]time.Time // user ID to window-open time
	window  time.Duration
}

// NewCooldown creates a cooldown gate with the given window. A
// non-positive window falls back to DefaultCooldownWindow.
func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldownWindow
	}
	return &Cooldown{
		entries: make(map[string]time.Time),
		window:  window,
	}
}

// Allow reports whether a notification for userID may be delivered now,
// and opens the window when it may. The check and the update happen under
// one lock, so concurrent intents for the same user admit exactly one.
func (c *Cooldown) Allow(userID string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if opened, ok := c.entries[userID]; ok && now.Sub(opened) < c.window {
		return false
	}
	c.entries[userID] = now
	return true
}

// Window returns the configured cooldown duration.
func (c *Cooldown) Window() time.Duration {
	return c.window
}

// Len returns the number of tracked users, expired windows included until
// the next sweep.
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep drops entries whose window has elapsed and returns how many were
// removed. Allow stays correct without sweeping; this only bounds memory
// on long-running processes.
func (c *Cooldown) Sweep() int {
	now := time.Now()

	c.mu.Lock()
	removed := 0
	for user, opened := range c.entries {
		if now.Sub(opened) >= c.window {
			delete(c.entries, user)
			removed++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	metrics.SetCooldownEntries(size)
	return removed
}

// Run sweeps at the given interval until ctx is cancelled. It is shaped
// as a supervised service: it blocks, and returns ctx.Err() on shutdown
// so the supervisor logs a clean exit.
func (c *Cooldown) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Sweep()
		}
	}
}
