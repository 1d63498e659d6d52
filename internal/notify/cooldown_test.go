// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestCooldown_Allow verifies the first intent opens the window and
// repeats inside it are denied, per user.
func TestCooldown_Allow(t *testing.T) {
	c := NewCooldown(time.Hour)

	if !c.Allow("user-1") {
		t.Fatal("Expected the first notification for a user to be allowed")
	}
	if c.Allow("user-1") {
		t.Error("Expected a repeat notification inside the window to be denied")
	}
	if !c.Allow("user-2") {
		t.Error("Expected a different user to be unaffected by the window")
	}
}

// TestCooldown_WindowReopens verifies a user can be notified again once
// the window elapses.
func TestCooldown_WindowReopens(t *testing.T) {
	c := NewCooldown(40 * time.Millisecond)

	if !c.Allow("user-1") {
		t.Fatal("Expected the first notification to be allowed")
	}
	time.Sleep(100 * time.Millisecond)
	if !c.Allow("user-1") {
		t.Error("Expected a notification after the window elapsed to be allowed")
	}
}

// TestCooldown_DeniedAttemptsDoNotExtendWindow verifies suppressed
// intents leave the window anchor at the delivered notification, so a
// noisy user is muted per window, not forever.
func TestCooldown_DeniedAttemptsDoNotExtendWindow(t *testing.T) {
	c := NewCooldown(time.Hour)

	if !c.Allow("user-1") {
		t.Fatal("Expected the first notification to be allowed")
	}
	c.mu.Lock()
	opened := c.entries["user-1"]
	c.mu.Unlock()

	if c.Allow("user-1") {
		t.Fatal("Expected the repeat notification to be denied")
	}
	c.mu.Lock()
	after := c.entries["user-1"]
	c.mu.Unlock()

	if !after.Equal(opened) {
		t.Errorf("Expected the window anchor to stay at %v, got %v", opened, after)
	}
}

// TestCooldown_DefaultWindow verifies a non-positive window falls back to
// the default.
func TestCooldown_DefaultWindow(t *testing.T) {
	if got := NewCooldown(0).Window(); got != DefaultCooldownWindow {
		t.Errorf("Expected default window %v, got %v", DefaultCooldownWindow, got)
	}
	if got := NewCooldown(-time.Second).Window(); got != DefaultCooldownWindow {
		t.Errorf("Expected default window %v for a negative input, got %v", DefaultCooldownWindow, got)
	}
}

// TestCooldown_Sweep verifies expired entries are reclaimed and live ones
// survive.
func TestCooldown_Sweep(t *testing.T) {
	c := NewCooldown(500 * time.Millisecond)

	c.Allow("user-1")
	c.Allow("user-2")
	time.Sleep(600 * time.Millisecond)
	c.Allow("user-3")

	if removed := c.Sweep(); removed != 2 {
		t.Errorf("Expected the sweep to remove 2 expired entries, got %d", removed)
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Expected 1 tracked user after the sweep, got %d", got)
	}
}

// TestCooldown_ConcurrentAllow verifies concurrent intents for one user
// admit exactly one notification.
func TestCooldown_ConcurrentAllow(t *testing.T) {
	c := NewCooldown(time.Hour)

	const attempts = 32
	var admitted atomic.Int32
	start := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if c.Allow("user-1") {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := admitted.Load(); got != 1 {
		t.Errorf("Expected exactly 1 admitted notification, got %d", got)
	}
}

// TestCooldown_Run verifies the sweeper stops with the context error.
func TestCooldown_Run(t *testing.T) {
	c := NewCooldown(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, 5*time.Millisecond)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected Run to return after cancellation")
	}
}
