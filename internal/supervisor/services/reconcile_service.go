// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package services

import (
	"context"
)

// ReconcilerService runs the periodic re-match sweep over unresolved
// lost reports. It lives in its own supervision layer: a sweep that
// crash-loops on a provider bug must not drag down the API or the
// notification pipeline, and the sweep's first tick comes a full
// interval after each (re)start, so restarts cannot stampede the
// providers.
type ReconcilerService struct {
	loop RunLoop
	name string
}

// NewReconcilerService wraps the match reconciler.
func NewReconcilerService(loop RunLoop) *ReconcilerService {
	return &ReconcilerService{loop: loop, name: "reconciler"}
}

// Serve implements suture.Service.
func (s *ReconcilerService) Serve(ctx context.Context) error {
	return serveLoop(ctx, s.name, s.loop)
}

// String identifies the service in supervisor logs.
func (s *ReconcilerService) String() string {
	return s.name
}
