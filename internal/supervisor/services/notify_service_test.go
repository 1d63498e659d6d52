// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/nadavby/reclaim/internal/cache"
	"github.com/nadavby/reclaim/internal/notify"
)

// fakeIntervalLoop records the interval the wrapper passes down.
type fakeIntervalLoop struct {
	gotInterval time.Duration
	err         error
}

func (f *fakeIntervalLoop) Run(ctx context.Context, interval time.Duration) error {
	f.gotInterval = interval
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestIntervalLoopInterfaces(t *testing.T) {
	var _ suture.Service = (*CooldownSweeperService)(nil)
	var _ suture.Service = (*CacheJanitorService)(nil)

	var _ IntervalLoop = (*notify.Cooldown)(nil)
	var _ IntervalLoop = (*cache.SignatureCache)(nil)
	var _ RunLoop = (*notify.Router)(nil)
}

func TestCooldownSweeperPassesInterval(t *testing.T) {
	loop := &fakeIntervalLoop{}
	svc := NewCooldownSweeperService(loop, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if loop.gotInterval != 5*time.Minute {
		t.Errorf("Expected interval 5m, got %v", loop.gotInterval)
	}
}

func TestCacheJanitorErrorWrapped(t *testing.T) {
	loop := &fakeIntervalLoop{err: errors.New("sweep aborted")}
	svc := NewCacheJanitorService(loop, time.Hour)

	err := svc.Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "cache-janitor: sweep aborted") {
		t.Errorf("Expected a wrapped janitor error, got %v", err)
	}
}

func TestIntentRouterErrorWrapped(t *testing.T) {
	loop := &fakeRunLoop{err: errors.New("subscriber closed")}
	svc := NewIntentRouterService(loop)

	err := svc.Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "intent-router: subscriber closed") {
		t.Errorf("Expected a wrapped router error, got %v", err)
	}
}

func TestIntervalServiceNames(t *testing.T) {
	if got := NewCooldownSweeperService(&fakeIntervalLoop{}, 0).String(); got != "cooldown-sweeper" {
		t.Errorf("Expected cooldown-sweeper, got %q", got)
	}
	if got := NewCacheJanitorService(&fakeIntervalLoop{}, 0).String(); got != "cache-janitor" {
		t.Errorf("Expected cache-janitor, got %q", got)
	}
	if got := NewIntentRouterService(&fakeRunLoop{}).String(); got != "intent-router" {
		t.Errorf("Expected intent-router, got %q", got)
	}
}
