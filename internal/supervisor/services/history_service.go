// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package services

import (
	"context"
	"errors"
	"fmt"
)

// RunLoop matches the blocking run-until-canceled lifecycle shared by the
// history recorder and pruner. Both return the context error on a clean
// stop.
//
// Satisfied by *history.Recorder and *history.Pruner.
type RunLoop interface {
	Run(ctx context.Context) error
}

// HistoryRecorderService drains the orchestrator's run records into the
// history store. It must outlive the orchestrator during shutdown or
// final records are dropped, which the tree guarantees by placing it in
// the data layer.
type HistoryRecorderService struct {
	loop RunLoop
	name string
}

// NewHistoryRecorderService wraps the history recorder loop.
func NewHistoryRecorderService(loop RunLoop) *HistoryRecorderService {
	return &HistoryRecorderService{loop: loop, name: "history-recorder"}
}

// Serve implements suture.Service.
func (s *HistoryRecorderService) Serve(ctx context.Context) error {
	return serveLoop(ctx, s.name, s.loop)
}

// String identifies the service in supervisor logs.
func (s *HistoryRecorderService) String() string {
	return s.name
}

// HistoryPrunerService enforces the run-history retention window on its
// own schedule.
type HistoryPrunerService struct {
	loop RunLoop
	name string
}

// NewHistoryPrunerService wraps the history pruner loop.
func NewHistoryPrunerService(loop RunLoop) *HistoryPrunerService {
	return &HistoryPrunerService{loop: loop, name: "history-pruner"}
}

// Serve implements suture.Service.
func (s *HistoryPrunerService) Serve(ctx context.Context) error {
	return serveLoop(ctx, s.name, s.loop)
}

// String identifies the service in supervisor logs.
func (s *HistoryPrunerService) String() string {
	return s.name
}

// serveLoop runs a blocking loop and normalizes its exit: the context
// error passes through untouched so suture sees a clean stop, any other
// error is wrapped with the service name, and a nil return counts as a
// crash because these loops only ever stop when told to.
func serveLoop(ctx context.Context, name string, loop RunLoop) error {
	err := loop.Run(ctx)
	if err == nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s stopped unexpectedly", name)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w", name, err)
}
