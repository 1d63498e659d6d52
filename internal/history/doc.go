// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package history records a summary of every match run so operators can
diagnose silent score depression: a provider that quietly degrades
drags TopScore and Matched counts down over days, and only a persisted
trail makes that visible.

Two Store backends exist. MemoryStore keeps a ring-trimmed slice for
development; DuckDBStore persists to an embedded DuckDB file and is the
one to run in production. Open selects between them from configuration.

The orchestrator never writes to a Store directly. It hands records to
a Recorder, which buffers them on a channel and persists from a single
worker, so a slow disk cannot stall scoring:

	recorder := history.NewRecorder(store, cfg.History.Buffer)
	orch.SetRecorder(recorder)
	go recorder.Run(ctx)

A Pruner enforces cfg.History.Retention by deleting old records on a
daily sweep. Records are queryable through the /api/v1/runs endpoint.
*/
package history
