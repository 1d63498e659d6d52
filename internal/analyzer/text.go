// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
	"github.com/nadavby/reclaim/internal/provider"
)

// lexicalMatchThreshold is the token-overlap similarity above which the
// degraded lexical path considers two descriptions a likely match.
const lexicalMatchThreshold = 0.5

// TextResult is the verdict of comparing two item descriptions.
type TextResult struct {
	IsLikelyMatch bool   `json:"is_likely_match"`
	Reason        string `json:"reason"`
	Confidence    int    `json:"confidence"`
}

// textVerdictSchema constrains provider completions to the TextResult
// shape. Descriptions double as instructions for the model.
var textVerdictSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"is_likely_match": {
			Type:        "boolean",
			Description: "Whether the two reports plausibly describe the same physical item.",
		},
		"reason": {
			Type:        "string",
			Description: "One sentence explaining the decision.",
		},
		"confidence": {
			Type:        "integer",
			Description: "Confidence in the decision from 0 to 100.",
		},
	},
	Required: []string{"is_likely_match", "reason", "confidence"},
}

const textCompareSystem = "You compare a lost item report with a found item report and decide " +
	"whether they plausibly describe the same physical item. Judge only what the reports say; " +
	"do not assume unstated details. Respond with a single JSON object matching the provided schema."

// TextAnalyzer compares item descriptions through a language-model
// provider, with a deterministic lexical path used when no provider is
// configured or the provider is unavailable.
//
// CompareDescriptions never returns an error: a malformed provider
// verdict becomes a non-match carrying a diagnostic reason, and outages
// degrade to token-overlap scoring.
type TextAnalyzer struct {
	provider provider.TextProvider
}

// NewTextAnalyzer creates a text analyzer. A nil provider routes every
// comparison through the lexical path.
func NewTextAnalyzer(p provider.TextProvider) *TextAnalyzer {
	return &TextAnalyzer{provider: p}
}

// CompareDescriptions decides whether two reports plausibly describe the
// same item.
func (t *TextAnalyzer) CompareDescriptions(ctx context.Context, a, b *models.Item) TextResult {
	if t.provider == nil {
		return lexicalVerdict(a, b)
	}

	completion, err := t.provider.Complete(ctx, provider.CompletionRequest{
		System:     textCompareSystem,
		Prompt:     comparePrompt(a, b),
		SchemaName: "match_verdict",
		Schema:     textVerdictSchema,
	})
	if err != nil {
		metrics.RecordCandidateError("text")
		if errors.Is(err, provider.ErrUnavailable) {
			logging.Warn().
				Err(err).
				Str("provider", t.provider.Name()).
				Msg("Text provider unavailable, falling back to lexical comparison")
			return lexicalVerdict(a, b)
		}
		logging.Warn().
			Err(err).
			Str("provider", t.provider.Name()).
			Msg("Text comparison failed")
		return TextResult{Reason: fmt.Sprintf("provider error: %v", err)}
	}

	var result TextResult
	repaired, err := provider.DecodeLenient([]byte(completion), &result)
	if err != nil {
		metrics.RecordCandidateError("text")
		logging.Warn().
			Err(err).
			Str("provider", t.provider.Name()).
			Msg("Text provider returned an unparseable verdict")
		return TextResult{Reason: fmt.Sprintf("unparseable provider verdict: %v", err)}
	}
	if repaired {
		logging.Debug().
			Str("provider", t.provider.Name()).
			Msg("Repaired malformed JSON in text provider verdict")
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 100 {
		result.Confidence = 100
	}
	return result
}

// lexicalVerdict scores two reports by description token overlap. It is
// the non-AI degraded path; the reason string makes the downgrade visible
// to API consumers.
func lexicalVerdict(a, b *models.Item) TextResult {
	sim := LexicalSimilarity(a.Description, b.Description)
	return TextResult{
		IsLikelyMatch: sim >= lexicalMatchThreshold,
		Reason:        fmt.Sprintf("lexical token overlap %.2f", sim),
		Confidence:    int(math.Round(sim * 100)),
	}
}

// comparePrompt renders both reports into the user prompt. Metadata is
// included only when present so the model is not prompted to weigh blank
// fields.
func comparePrompt(a, b *models.Item) string {
	var sb strings.Builder
	sb.WriteString(describeReport("Report A", a))
	sb.WriteString("\n")
	sb.WriteString(describeReport("Report B", b))
	sb.WriteString("\nDo these two reports plausibly describe the same physical item?")
	return sb.String()
}

func describeReport(heading string, item *models.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s item):\n", heading, item.Type)
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

// LexicalSimilarity computes Jaccard similarity over normalized
// description tokens: lowercased, punctuation stripped, split on
// whitespace, tokens of one or two characters dropped. Identical
// normalized descriptions score exactly 1.0; two descriptions with no
// usable tokens score 0.
func LexicalSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// TokenOverlap counts the normalized tokens shared by two descriptions.
func TokenOverlap(a, b string) int {
	setA := tokenSet(a)
	setB := tokenSet(b)
	shared := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			shared++
		}
	}
	return shared
}

// tokenSet normalizes a description into its comparable token set.
// Punctuation is replaced with spaces rather than removed so hyphenated
// compounds split into their parts.
func tokenSet(s string) map[string]struct{} {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}

	tokens := make(map[string]struct{})
	for _, token := range strings.Fields(sb.String()) {
		if utf8.RuneCountInString(token) > 2 {
			tokens[token] = struct{}{}
		}
	}
	return tokens
}
