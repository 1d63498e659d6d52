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
	"testing"

	"github.com/nadavby/reclaim/internal/models"
	"github.com/nadavby/reclaim/internal/provider"
)

// fakeText returns a scripted completion and captures the request.
type fakeText struct {
	response string
	err      error
	gotReq   provider.CompletionRequest
	calls    int
}

func (f *fakeText) Complete(_ context.Context, req provider.CompletionRequest) (string, error) {
	f.calls++
	f.gotReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeText) Name() string { return "fake-text" }

func describedItem(t models.ItemType, category, description string) *models.Item {
	return &models.Item{
		ID:          "item-" + string(t),
		UserID:      "u1",
		Type:        t,
		Category:    category,
		Description: description,
	}
}

// TestTextAnalyzer_CompareDescriptions verifies a well-formed provider
// verdict is returned as-is and the request carries both reports and the
// verdict schema.
func TestTextAnalyzer_CompareDescriptions(t *testing.T) {
	fake := &fakeText{
		response: `{"is_likely_match": true, "reason": "Both describe a black leather wallet", "confidence": 87}`,
	}
	a := NewTextAnalyzer(fake)

	lost := describedItem(models.ItemTypeLost, "Wallet", "black leather wallet with cards")
	found := describedItem(models.ItemTypeFound, "Wallet", "found a black wallet, leather, cards inside")

	result := a.CompareDescriptions(context.Background(), lost, found)

	if !result.IsLikelyMatch {
		t.Error("Expected a likely match")
	}
	if result.Confidence != 87 {
		t.Errorf("Expected confidence 87, got %d", result.Confidence)
	}
	if result.Reason != "Both describe a black leather wallet" {
		t.Errorf("Unexpected reason %q", result.Reason)
	}

	if fake.gotReq.SchemaName != "match_verdict" {
		t.Errorf("Expected schema name match_verdict, got %q", fake.gotReq.SchemaName)
	}
	if fake.gotReq.Schema == nil {
		t.Error("Expected a verdict schema on the request")
	}
	if fake.gotReq.System == "" {
		t.Error("Expected a system prompt")
	}
	for _, want := range []string{"Report A", "Report B", "black leather wallet with cards", "cards inside", "Wallet"} {
		if !strings.Contains(fake.gotReq.Prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

// TestTextAnalyzer_CompareDescriptions_Malformed verifies an unparseable
// verdict becomes a non-match with a diagnostic reason instead of an
// error.
func TestTextAnalyzer_CompareDescriptions_Malformed(t *testing.T) {
	fake := &fakeText{response: "Yes, probably the same wallet."}
	a := NewTextAnalyzer(fake)

	result := a.CompareDescriptions(context.Background(),
		describedItem(models.ItemTypeLost, "Wallet", "black wallet"),
		describedItem(models.ItemTypeFound, "Wallet", "black wallet"))

	if result.IsLikelyMatch {
		t.Error("Expected a non-match for an unparseable verdict")
	}
	if result.Confidence != 0 {
		t.Errorf("Expected confidence 0, got %d", result.Confidence)
	}
	if !strings.Contains(result.Reason, "unparseable") {
		t.Errorf("Expected diagnostic reason, got %q", result.Reason)
	}
}

// TestTextAnalyzer_CompareDescriptions_RepairedJSON verifies lightly
// damaged model output is repaired rather than discarded.
func TestTextAnalyzer_CompareDescriptions_RepairedJSON(t *testing.T) {
	fake := &fakeText{
		response: "```json\n{\"is_likely_match\": true, \"reason\": \"same item\", \"confidence\": 80,}\n```",
	}
	a := NewTextAnalyzer(fake)

	result := a.CompareDescriptions(context.Background(),
		describedItem(models.ItemTypeLost, "Wallet", "black wallet"),
		describedItem(models.ItemTypeFound, "Wallet", "black wallet"))

	if !result.IsLikelyMatch || result.Confidence != 80 {
		t.Errorf("Expected repaired verdict, got %+v", result)
	}
}

// TestTextAnalyzer_CompareDescriptions_Unavailable verifies provider
// outages degrade to the lexical path.
func TestTextAnalyzer_CompareDescriptions_Unavailable(t *testing.T) {
	fake := &fakeText{err: fmt.Errorf("circuit open: %w", provider.ErrUnavailable)}
	a := NewTextAnalyzer(fake)

	result := a.CompareDescriptions(context.Background(),
		describedItem(models.ItemTypeLost, "Wallet", "black leather wallet with cards"),
		describedItem(models.ItemTypeFound, "Wallet", "black leather wallet with cards"))

	if !result.IsLikelyMatch {
		t.Error("Expected identical descriptions to match on the lexical path")
	}
	if result.Confidence != 100 {
		t.Errorf("Expected confidence 100, got %d", result.Confidence)
	}
	if !strings.Contains(result.Reason, "lexical") {
		t.Errorf("Expected lexical reason, got %q", result.Reason)
	}
}

// TestTextAnalyzer_CompareDescriptions_OtherError verifies
// non-availability errors yield a diagnostic non-match rather than the
// lexical path.
func TestTextAnalyzer_CompareDescriptions_OtherError(t *testing.T) {
	fake := &fakeText{err: errors.New("boom")}
	a := NewTextAnalyzer(fake)

	result := a.CompareDescriptions(context.Background(),
		describedItem(models.ItemTypeLost, "Wallet", "black wallet"),
		describedItem(models.ItemTypeFound, "Wallet", "black wallet"))

	if result.IsLikelyMatch || result.Confidence != 0 {
		t.Errorf("Expected non-match, got %+v", result)
	}
	if !strings.Contains(result.Reason, "provider error") {
		t.Errorf("Expected provider error reason, got %q", result.Reason)
	}
}

// TestTextAnalyzer_CompareDescriptions_NoProvider verifies the analyzer
// works without any provider configured.
func TestTextAnalyzer_CompareDescriptions_NoProvider(t *testing.T) {
	a := NewTextAnalyzer(nil)

	result := a.CompareDescriptions(context.Background(),
		describedItem(models.ItemTypeLost, "Wallet", "black leather wallet"),
		describedItem(models.ItemTypeFound, "Wallet", "red umbrella"))

	if result.IsLikelyMatch {
		t.Error("Expected unrelated descriptions not to match")
	}
	if !strings.Contains(result.Reason, "lexical") {
		t.Errorf("Expected lexical reason, got %q", result.Reason)
	}
}

// TestTextAnalyzer_CompareDescriptions_ClampsConfidence verifies
// out-of-range provider confidence is clamped to 0..100.
func TestTextAnalyzer_CompareDescriptions_ClampsConfidence(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
	}{
		{"above range", `{"is_likely_match": true, "reason": "r", "confidence": 250}`, 100},
		{"below range", `{"is_likely_match": false, "reason": "r", "confidence": -5}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewTextAnalyzer(&fakeText{response: tt.response})
			result := a.CompareDescriptions(context.Background(),
				describedItem(models.ItemTypeLost, "Wallet", "black wallet"),
				describedItem(models.ItemTypeFound, "Wallet", "black wallet"))
			if result.Confidence != tt.want {
				t.Errorf("Expected confidence %d, got %d", tt.want, result.Confidence)
			}
		})
	}
}

// TestLexicalSimilarity verifies the token-overlap metric and its
// normalization rules.
func TestLexicalSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "black leather wallet", "black leather wallet", 1.0},
		{"both empty", "", "", 0},
		{"one empty", "black wallet", "", 0},
		{
			"shared wallet vocabulary",
			"Black leather wallet with cards",
			"black wallet leather cards inside",
			4.0 / 6.0,
		},
		{"punctuation split", "blue-green scarf!", "Blue green scarf", 1.0},
		{"case folded", "WALLET BLACK", "wallet black", 1.0},
		{"short tokens dropped", "id 42 tag ab", "id 42", 0},
		{"disjoint", "red umbrella", "black wallet", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LexicalSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestTokenOverlap verifies shared-token counting.
func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"two shared", "black leather wallet", "worn black wallet", 2},
		{"none shared", "red umbrella", "black wallet", 0},
		{"empty side", "", "black wallet", 0},
		{"short tokens ignored", "an id card", "an id card holder", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenOverlap(tt.a, tt.b); got != tt.want {
				t.Errorf("Expected %d shared tokens, got %d", tt.want, got)
			}
		})
	}
}

// TestLexicalVerdict_Threshold verifies the match decision at the
// similarity boundary.
func TestLexicalVerdict_Threshold(t *testing.T) {
	at := lexicalVerdict(
		describedItem(models.ItemTypeLost, "", "alpha beta"),
		describedItem(models.ItemTypeFound, "", "alpha beta gamma delta"))
	if !at.IsLikelyMatch || at.Confidence != 50 {
		t.Errorf("Expected a match at similarity 0.5, got %+v", at)
	}

	below := lexicalVerdict(
		describedItem(models.ItemTypeLost, "", "alpha beta gamma"),
		describedItem(models.ItemTypeFound, "", "alpha delta epsilon"))
	if below.IsLikelyMatch {
		t.Errorf("Expected no match below the threshold, got %+v", below)
	}
}
