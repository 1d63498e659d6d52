// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package analyzer

import (
	"context"
	"math"
	"net/url"
	"strings"

	"github.com/nadavby/reclaim/internal/cache"
	"github.com/nadavby/reclaim/internal/logging"
	"github.com/nadavby/reclaim/internal/metrics"
	"github.com/nadavby/reclaim/internal/models"
	"github.com/nadavby/reclaim/internal/provider"
)

const (
	// IncompatibilityPenalty is added to a visual score when the two
	// signatures classify into mutually exclusive item buckets. Generic
	// label overlap ("black", "accessory") otherwise inflates scores for
	// items that cannot possibly be the same object.
	IncompatibilityPenalty = -40

	labelWeight  = 0.5
	objectWeight = 0.5
)

// VisualResult is the outcome of comparing two item images.
type VisualResult struct {
	// Score is the combined similarity on a 0..100 scale.
	Score int `json:"score"`

	// LabelOverlap and ObjectOverlap are the raw per-channel similarities
	// in [0, 1], kept for diagnostics and score explanations.
	LabelOverlap  float64 `json:"label_overlap"`
	ObjectOverlap float64 `json:"object_overlap"`

	// Adjusted is true when a correction rule rewrote a detection or an
	// incompatibility penalty was applied.
	Adjusted bool `json:"adjusted"`
}

// VisualAnalyzer compares item images by their provider-derived visual
// signatures. Signatures are cached by normalized image reference so that
// repeated comparisons of the same image do not re-invoke the provider.
//
// The analyzer degrades rather than fails: a missing image, an
// unconfigured provider, or a provider error yields a zero score and the
// rest of the matching pipeline carries on with text evidence alone.
type VisualAnalyzer struct {
	provider provider.VisionProvider
	cache    *cache.SignatureCache
	rules    *RuleSet
}

// NewVisualAnalyzer creates a visual analyzer. The provider may be nil
// when image analysis is disabled; comparisons then score zero unless
// items already carry signatures. A nil rules parameter falls back to the
// compiled-in defaults.
func NewVisualAnalyzer(p provider.VisionProvider, c *cache.SignatureCache, rules *RuleSet) *VisualAnalyzer {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	return &VisualAnalyzer{
		provider: p,
		cache:    c,
		rules:    rules,
	}
}

// Compare scores the visual similarity of two items. Label overlap and
// object overlap each contribute half of the final score; correction
// rules are applied to both signatures first and an incompatibility
// penalty is applied last, with the result clamped to 0..100.
func (v *VisualAnalyzer) Compare(ctx context.Context, a, b *models.Item) VisualResult {
	sigA := v.signatureFor(ctx, a)
	sigB := v.signatureFor(ctx, b)
	if sigA.IsEmpty() || sigB.IsEmpty() {
		return VisualResult{}
	}

	correctedA, adjustedA := v.rules.CorrectSignature(sigA)
	correctedB, adjustedB := v.rules.CorrectSignature(sigB)
	adjusted := adjustedA || adjustedB
	if adjusted {
		logging.Debug().
			Str("rules_version", v.rules.Version).
			Str("item_a", a.ID).
			Str("item_b", b.ID).
			Msg("Correction rules rewrote low-confidence detections")
	}

	labelSim := labelSimilarity(correctedA.Labels, correctedB.Labels)
	objectSim := objectSimilarity(correctedA.Objects, correctedB.Objects)
	score := int(math.Round((labelSim*labelWeight + objectSim*objectWeight) * 100))

	if bucketA, bucketB, ok := v.rules.IncompatibleBuckets(
		v.rules.ClassifyBuckets(correctedA.AllTerms()),
		v.rules.ClassifyBuckets(correctedB.AllTerms()),
	); ok {
		score += IncompatibilityPenalty
		adjusted = true
		logging.Debug().
			Str("item_a", a.ID).
			Str("item_b", b.ID).
			Str("bucket_a", bucketA).
			Str("bucket_b", bucketB).
			Msg("Incompatible item classes, penalizing visual score")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return VisualResult{
		Score:         score,
		LabelOverlap:  labelSim,
		ObjectOverlap: objectSim,
		Adjusted:      adjusted,
	}
}

// signatureFor resolves an item's visual signature. Preference order: the
// signature already attached to the item, then the cache, then a provider
// call whose result is cached for subsequent comparisons. Any failure
// returns nil so the caller scores the pair on other evidence.
func (v *VisualAnalyzer) signatureFor(ctx context.Context, item *models.Item) *models.VisualSignature {
	if !item.Signature.IsEmpty() {
		return item.Signature
	}

	ref := NormalizeImageRef(item.ImageRef)
	if ref == "" {
		return nil
	}

	key := cache.Key(ref)
	if v.cache != nil {
		if sig, ok := v.cache.Get(key); ok {
			return sig
		}
	}

	if v.provider == nil {
		logging.Debug().
			Str("item_id", item.ID).
			Msg("Vision provider not configured, skipping image analysis")
		return nil
	}

	sig, err := v.provider.AnnotateImage(ctx, ref)
	if err != nil {
		metrics.RecordCandidateError("visual")
		logging.Warn().
			Err(err).
			Str("provider", v.provider.Name()).
			Str("item_id", item.ID).
			Msg("Visual signature fetch failed")
		return nil
	}

	if v.cache != nil {
		v.cache.Set(key, sig)
	}
	return sig
}

// NormalizeImageRef canonicalizes an image reference so that equivalent
// spellings resolve to the same cache entry: percent-encodings are
// unescaped, trailing slashes trimmed, and the scheme and host lowercased.
// Non-URL references are treated as opaque storage keys and only unescaped
// and trimmed, preserving their case.
func NormalizeImageRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" {
		if unescaped, uerr := url.PathUnescape(ref); uerr == nil {
			ref = unescaped
		}
		return strings.TrimRight(ref, "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if unescaped, uerr := url.PathUnescape(u.EscapedPath()); uerr == nil {
		u.Path = unescaped
		u.RawPath = ""
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// labelSimilarity measures fuzzy overlap between two label sets. Each
// label that has a counterpart on the other side counts once in each
// direction, giving a symmetric ratio in [0, 1].
func labelSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matches := 0
	for _, label := range a {
		if anyTermMatch(label, b) {
			matches++
		}
	}
	for _, label := range b {
		if anyTermMatch(label, a) {
			matches++
		}
	}
	return float64(matches) / float64(len(a)+len(b))
}

// objectSimilarity measures fuzzy overlap between detected objects,
// weighting each object by its detector confidence so that a tentative
// detection moves the score less than a confident one. Detections without
// a confidence count at full weight.
func objectSimilarity(a, b []models.DetectedObject) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	namesA := objectNames(a)
	namesB := objectNames(b)

	var total, matched float64
	for _, obj := range a {
		w := objectWeightOf(obj)
		total += w
		if anyTermMatch(obj.Name, namesB) {
			matched += w
		}
	}
	for _, obj := range b {
		w := objectWeightOf(obj)
		total += w
		if anyTermMatch(obj.Name, namesA) {
			matched += w
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

func objectWeightOf(obj models.DetectedObject) float64 {
	if obj.Score <= 0 {
		return 1
	}
	return obj.Score
}

func objectNames(objs []models.DetectedObject) []string {
	names := make([]string, 0, len(objs))
	for _, obj := range objs {
		names = append(names, obj.Name)
	}
	return names
}
