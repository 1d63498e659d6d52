// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

/*
Package analyzer scores pairwise similarity between lost and found item
reports along two independent channels: visual signatures derived from
item images and natural-language descriptions.

Key Components:

  - VisualAnalyzer: compares provider-derived visual signatures with
    label and object overlap weighted equally, caching signatures by
    normalized image reference
  - TextAnalyzer: asks a language-model provider for a structured match
    verdict, repairing malformed JSON and degrading to deterministic
    token-overlap scoring when the provider is unavailable
  - RuleSet: versioned domain-knowledge tables (detection corrections,
    incompatible item classes, brand equivalences) shared by the visual
    analyzer and the match evaluator, overridable from YAML

Degradation:

Both analyzers absorb provider failures instead of propagating them. A
missing image, unconfigured provider, or annotation error scores the
visual channel at zero; a text provider outage falls back to lexical
similarity; an unparseable verdict becomes a non-match with a diagnostic
reason. Callers always receive a usable result and decide themselves how
much weight a degraded channel deserves.

Usage Example:

	rules, err := analyzer.LoadRuleSet("rules.yaml")
	if err != nil {
		return err
	}
	visual := analyzer.NewVisualAnalyzer(visionClient, sigCache, rules)
	text := analyzer.NewTextAnalyzer(geminiClient)

	vr := visual.Compare(ctx, lost, found)
	tr := text.CompareDescriptions(ctx, lost, found)

Thread Safety:

Analyzers hold no mutable state of their own; the signature cache is
safe for concurrent use and rule sets are read-only after load. A single
analyzer instance may be shared across scoring workers.

See Also:

  - internal/provider: vision and text provider clients
  - internal/cache: signature cache with TTL expiry
  - internal/match: evaluator and orchestrator consuming both channels
*/
package analyzer
