// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package match decides which found reports plausibly resolve a lost report.
It owns the candidate filter, the final-score evaluator, and the
orchestrator that runs a full match from pool to ranked results.

Key Components:

  - ShouldSkip: the cheap pre-filter. Rejects pairs that are physically
    impossible matches (resolved, found before lost, different category,
    over 100 km apart) before any provider budget is spent; a missing
    field never rejects
  - Evaluator: folds the visual and text channel results into one 0..100
    score, primarily by prompting a language-model provider with the
    weighted rubric, with a deterministic fallback rubric for outages
  - Orchestrator: filters the pool, scores survivors over a bounded
    worker pool with both channels running concurrently per candidate,
    then ranks matches and emits notification intents

Degradation:

Per-channel failures are absorbed upstream in package analyzer; the one
failure the orchestrator reacts to is evaluation provider unavailability.
When that happens mid-run the entire surviving candidate set is rescored
with the deterministic fallback rubric, never just the remainder, so a
single result never mixes scores produced by different methods. The
result is marked degraded and carries itemized fallback reasoning.

Usage Example:

	orch := match.NewOrchestrator(&cfg.Matching, visual, text, eval, store)
	orch.SetRecorder(recorder)

	res, err := orch.FindMatches(ctx, lostItem)
	if err != nil {
		return err
	}
	for _, m := range res.Matches {
		fmt.Printf("%s scored %d\n", m.Item.ID, m.Score)
	}

Thread Safety:

An Orchestrator is safe for concurrent runs once wired; SetRecorder must
be called before the first run. Ranking is deterministic: stable sort by
score descending with ties kept in candidate pool order.

See Also:

  - internal/analyzer: the per-channel comparison implementations
  - internal/notify: consumes notification intents with per-user cooldown
  - internal/history: persists the per-run summaries recorded here
*/
package match
