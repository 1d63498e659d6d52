// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nadavby/reclaim/internal/analyzer"
	"github.com/nadavby/reclaim/internal/config"
	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
	"github.com/nadavby/reclaim/internal/provider"
)

// Deterministic fallback rubric. Category agreement and location proximity
// carry equal weight; description overlap is a smaller corroborating signal.
// Categories that differ but share a brand family score below an exact
// match.
const (
	fallbackCategoryPoints = 40.0
	fallbackBrandPoints    = 30.0
	fallbackLocationPoints = 40.0
	fallbackTokenPoints    = 5
	fallbackTokenCap       = 20
)

// Evaluation is the final verdict for one lost/found pair.
type Evaluation struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// evalSchema constrains provider completions to the Evaluation shape.
var evalSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"score": {
			Type:        "integer",
			Description: "Overall match confidence from 0 to 100.",
		},
		"reasoning": {
			Type:        "string",
			Description: "Two or three sentences citing the rubric components that drove the score.",
		},
	},
	Required: []string{"score", "reasoning"},
}

// Evaluator combines the per-channel comparison results into one final
// score per pair. The primary path asks a language-model provider to apply
// the weighted rubric; EvaluateFallback is the deterministic rubric used
// when that provider is down.
type Evaluator struct {
	provider provider.TextProvider
	rules    *analyzer.RuleSet
	weights  config.WeightsConfig
	system   string
}

// NewEvaluator creates an evaluator. A nil rule set falls back to the
// compiled-in defaults, and zero weights fall back to the default rubric
// split. The system prompt is rendered once here because it depends only
// on configuration.
func NewEvaluator(p provider.TextProvider, rules *analyzer.RuleSet, weights config.WeightsConfig) *Evaluator {
	if rules == nil {
		rules = analyzer.DefaultRuleSet()
	}
	if weights == (config.WeightsConfig{}) {
		weights = config.DefaultWeightsConfig()
	}
	return &Evaluator{
		provider: p,
		rules:    rules,
		weights:  weights,
		system:   renderEvalSystem(weights, rules),
	}
}

// Evaluate scores one pair through the primary provider path.
//
// The error return is reserved for provider unavailability, which the
// orchestrator answers by rescoring the whole run with the fallback
// rubric. Any other provider misbehavior, including output that cannot be
// parsed, yields a zero score with empty reasoning and a nil error so one
// bad completion cannot take down a batch.
func (e *Evaluator) Evaluate(ctx context.Context, lost, found *models.Item, text analyzer.TextResult, visual analyzer.VisualResult) (Evaluation, error) {
	if e.provider == nil {
		return Evaluation{}, fmt.Errorf("no evaluation provider configured: %w", provider.ErrUnavailable)
	}

	completion, err := e.provider.Complete(ctx, provider.CompletionRequest{
		System:     e.system,
		Prompt:     e.evalPrompt(lost, found, text, visual),
		SchemaName: "match_evaluation",
		Schema:     evalSchema,
	})
	if err != nil {
		metrics.RecordCandidateError("evaluator")
		if errors.Is(err, provider.ErrUnavailable) {
			return Evaluation{}, err
		}
		logging.Warn().
			Err(err).
			Str("provider", e.provider.Name()).
			Msg("Evaluation failed, scoring pair as non-match")
		return Evaluation{}, nil
	}

	var eval Evaluation
	repaired, err := provider.DecodeLenient([]byte(completion), &eval)
	if err != nil {
		metrics.RecordCandidateError("evaluator")
		logging.Warn().
			Err(err).
			Str("provider", e.provider.Name()).
			Msg("Evaluator returned an unparseable verdict, scoring pair as non-match")
		return Evaluation{}, nil
	}
	if repaired {
		logging.Debug().
			Str("provider", e.provider.Name()).
			Msg("Repaired malformed JSON in evaluator verdict")
	}

	if eval.Score < 0 {
		eval.Score = 0
	}
	if eval.Score > 100 {
		eval.Score = 100
	}
	return eval, nil
}

// EvaluateFallback scores one pair with the deterministic rubric:
//
//   - exact category match contributes 40 points; categories that differ
//     but belong to the same brand family contribute 30
//   - location proximity contributes up to 40 points, decaying linearly
//     from 40 at zero distance to 0 at MaxMatchDistanceKm
//   - description overlap contributes 5 points per shared token, capped
//     at 20
//
// The brand families are the same rule-set table the primary prompt
// renders, so both scoring paths agree on what counts as a near-match.
// The method stands alone and does not assume ShouldSkip vetted the pair.
// The result carries a reasoning string that itemizes the contributions so
// degraded scores remain explainable to API consumers.
func (e *Evaluator) EvaluateFallback(lost, found *models.Item) Evaluation {
	var total float64
	var parts []string

	if categoriesEqual(lost, found) {
		total += fallbackCategoryPoints
		parts = append(parts, fmt.Sprintf("category match +%d", int(fallbackCategoryPoints)))
	} else if e.rules.BrandRelated(lost.Category, found.Category) {
		total += fallbackBrandPoints
		parts = append(parts, fmt.Sprintf("related category +%d", int(fallbackBrandPoints)))
	}

	if km, ok := lost.Location.DistanceTo(found.Location); ok && km < MaxMatchDistanceKm {
		pts := fallbackLocationPoints * (1 - km/MaxMatchDistanceKm)
		total += pts
		parts = append(parts, fmt.Sprintf("location +%d (%.1f km apart)", int(math.Round(pts)), km))
	}

	if shared := analyzer.TokenOverlap(lost.Description, found.Description); shared > 0 {
		pts := shared * fallbackTokenPoints
		if pts > fallbackTokenCap {
			pts = fallbackTokenCap
		}
		total += float64(pts)
		parts = append(parts, fmt.Sprintf("description +%d (%d shared tokens)", pts, shared))
	}

	reasoning := "fallback rubric: no overlapping evidence"
	if len(parts) > 0 {
		reasoning = "fallback rubric: " + strings.Join(parts, ", ")
	}
	return Evaluation{Score: int(math.Round(total)), Reasoning: reasoning}
}

func categoriesEqual(a, b *models.Item) bool {
	return a.HasCategory() && b.HasCategory() &&
		strings.TrimSpace(a.Category) == strings.TrimSpace(b.Category)
}

// renderEvalSystem builds the rubric prompt from the configured weights
// and the brand vocabulary of the rule set.
func renderEvalSystem(weights config.WeightsConfig, rules *analyzer.RuleSet) string {
	var sb strings.Builder
	sb.WriteString("You are the final scoring stage of a lost and found matching pipeline. ")
	sb.WriteString("Given a lost report, a found report, and the upstream comparison signals, ")
	sb.WriteString("produce one overall match score from 0 to 100.\n\n")
	fmt.Fprintf(&sb, "Weigh the evidence as: visual similarity %d%%, category and description agreement %d%%, ",
		weights.Visual, weights.Category)
	fmt.Fprintf(&sb, "temporal plausibility %d%%, location proximity %d%%.\n", weights.Temporal, weights.Location)
	sb.WriteString("A field missing from either report is neutral evidence; never penalize absence.\n")
	if len(rules.BrandGroups) > 0 {
		sb.WriteString("Treat generic terms and their brand families as near-matches in the category ")
		sb.WriteString("and description component, not as mismatches:\n")
		for _, group := range rules.BrandGroups {
			fmt.Fprintf(&sb, "  %s: %s\n", strings.Join(group.Generics, ", "), strings.Join(group.Brands, ", "))
		}
	}
	sb.WriteString("\nRespond with a single JSON object matching the provided schema.")
	return sb.String()
}

// evalPrompt renders the pair and the upstream signals into the user
// prompt. Only signals that were actually computed are included.
func (e *Evaluator) evalPrompt(lost, found *models.Item, text analyzer.TextResult, visual analyzer.VisualResult) string {
	var sb strings.Builder
	sb.WriteString(describePair("Lost report", lost))
	sb.WriteString("\n")
	sb.WriteString(describePair("Found report", found))

	sb.WriteString("\nUpstream signals:\n")
	if visual == (analyzer.VisualResult{}) {
		sb.WriteString("  visual: no shared visual evidence\n")
	} else {
		fmt.Fprintf(&sb, "  visual similarity: %d/100 (label overlap %.2f, object overlap %.2f)\n",
			visual.Score, visual.LabelOverlap, visual.ObjectOverlap)
		if visual.Adjusted {
			sb.WriteString("  the visual score includes a vocabulary adjustment\n")
		}
	}

	verdict := "no"
	if text.IsLikelyMatch {
		verdict = "yes"
	}
	fmt.Fprintf(&sb, "  description verdict: likely match %s, confidence %d/100", verdict, text.Confidence)
	if text.Reason != "" {
		fmt.Fprintf(&sb, " (%s)", text.Reason)
	}
	sb.WriteString("\n")

	if km, ok := lost.Location.DistanceTo(found.Location); ok {
		fmt.Fprintf(&sb, "  distance between reports: %.1f km\n", km)
	}
	if lost.HasTimestamp() && found.HasTimestamp() {
		gap := found.Timestamp.Sub(lost.Timestamp).Round(time.Minute)
		fmt.Fprintf(&sb, "  time from lost report to found report: %s\n", gap)
	}
	if e.rules.BrandRelated(lost.Category, found.Category) ||
		e.rules.BrandRelated(lost.Description, found.Description) {
		sb.WriteString("  note: the reports share related brand-family vocabulary\n")
	}

	sb.WriteString("\nScore this pair now.")
	return sb.String()
}

func describePair(heading string, item *models.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", heading)
	if item.HasCategory() {
		fmt.Fprintf(&sb, "  category: %s\n", item.Category)
	}
	if desc := strings.TrimSpace(item.Description); desc != "" {
		fmt.Fprintf(&sb, "  description: %s\n", desc)
	}
	if item.HasTimestamp() {
		fmt.Fprintf(&sb, "  reported: %s\n", item.Timestamp.UTC().Format(time.RFC3339))
	}
	if !item.Location.IsUnknown() {
		fmt.Fprintf(&sb, "  location: %s\n", item.Location.String())
	}
	return sb.String()
}
