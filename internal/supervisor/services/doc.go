// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package services provides suture.Service wrappers for the engine's
long-running components.

Each wrapper adapts one component's lifecycle to suture's context-aware
Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The components themselves stay ignorant of supervision. They expose
blocking run-until-canceled loops (Run(ctx) or Run(ctx, interval)) or, in
the HTTP server's case, the ListenAndServe plus Shutdown pair; the
wrappers translate those into Serve and normalize exits so suture can
tell a clean stop from a crash.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps the API's *http.Server
  - Drains in-flight requests for up to the shutdown timeout

Intent Router (IntentRouterService):
  - Wraps the notification router between bus, cooldown gate, and sinks
  - Intents published while it restarts queue in the bus buffer

Cooldown Sweeper (CooldownSweeperService):
  - Expires stale per-user notification cooldown entries

Cache Janitor (CacheJanitorService):
  - Sweeps expired visual signatures out of the cache

History Recorder (HistoryRecorderService):
  - Drains match-run records into the history store

History Pruner (HistoryPrunerService):
  - Enforces the run-history retention window

Reconciler (ReconcilerService):
  - Periodically re-matches unresolved lost reports

# Error Semantics

A wrapper returns the context error untouched on a clean stop, wraps any
component error with the service name so supervisor logs identify the
faulty child, and converts a silent nil return into an error, because
none of these loops may stop on their own.
*/
package services
