// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package services

import (
	"context"
	"time"
)

// IntervalLoop matches the sweep-on-a-ticker lifecycle shared by the
// cooldown tracker and the signature cache.
//
// Satisfied by *notify.Cooldown and *cache.SignatureCache.
type IntervalLoop interface {
	Run(ctx context.Context, interval time.Duration) error
}

// IntentRouterService runs the notification router that moves intents
// from the bus through the cooldown gate to the sinks. While it is down,
// published intents queue in the bus buffer; the tree restarts it before
// the buffer becomes an outage.
type IntentRouterService struct {
	loop RunLoop
	name string
}

// NewIntentRouterService wraps the notify router.
func NewIntentRouterService(loop RunLoop) *IntentRouterService {
	return &IntentRouterService{loop: loop, name: "intent-router"}
}

// Serve implements suture.Service.
func (s *IntentRouterService) Serve(ctx context.Context) error {
	return serveLoop(ctx, s.name, s.loop)
}

// String identifies the service in supervisor logs.
func (s *IntentRouterService) String() string {
	return s.name
}

// CooldownSweeperService expires stale cooldown entries so the tracker's
// memory stays proportional to recently notified users, not to everyone
// ever notified.
type CooldownSweeperService struct {
	loop     IntervalLoop
	interval time.Duration
	name     string
}

// NewCooldownSweeperService wraps the cooldown tracker's sweep loop.
// A non-positive interval falls back to the tracker's own default.
func NewCooldownSweeperService(loop IntervalLoop, interval time.Duration) *CooldownSweeperService {
	return &CooldownSweeperService{loop: loop, interval: interval, name: "cooldown-sweeper"}
}

// Serve implements suture.Service.
func (s *CooldownSweeperService) Serve(ctx context.Context) error {
	return serveIntervalLoop(ctx, s.name, s.loop, s.interval)
}

// String identifies the service in supervisor logs.
func (s *CooldownSweeperService) String() string {
	return s.name
}

// serveIntervalLoop is serveLoop for ticker-driven sweeps.
func serveIntervalLoop(ctx context.Context, name string, loop IntervalLoop, interval time.Duration) error {
	return serveLoop(ctx, name, runLoopFunc(func(ctx context.Context) error {
		return loop.Run(ctx, interval)
	}))
}

// runLoopFunc adapts a closure to RunLoop.
type runLoopFunc func(ctx context.Context) error

func (f runLoopFunc) Run(ctx context.Context) error {
	return f(ctx)
}
