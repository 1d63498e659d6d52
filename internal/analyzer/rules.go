// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package analyzer

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/nadavby/reclaim/internal/models"
)

// RuleSet is the versioned domain-knowledge table consumed by the visual
// analyzer and the match evaluator. It bundles detection corrections,
// mutually exclusive item classes, and brand equivalence groups so that
// all scoring paths draw on a single source of truth.
//
// A compiled-in default is always available via DefaultRuleSet. Operators
// can replace individual tables from a YAML file loaded with LoadRuleSet;
// a table present in the file replaces the default table wholesale.
type RuleSet struct {
	// Version identifies the taxonomy revision, recorded in logs so that
	// score changes can be traced back to rule changes.
	Version string `koanf:"version" json:"version"`

	Corrections  []CorrectionRule   `koanf:"corrections" json:"corrections"`
	Buckets      []VocabularyBucket `koanf:"buckets" json:"buckets"`
	Incompatible []BucketPair       `koanf:"incompatible" json:"incompatible"`
	BrandGroups  []BrandGroup       `koanf:"brand_groups" json:"brand_groups"`
}

// CorrectionRule re-labels a low-confidence object detection when the
// surrounding scene labels corroborate a more specific identity. Rules are
// declarative so that new detector quirks can be handled without code
// changes.
//
// A rule fires for an object when all of the following hold:
//   - the object name fuzzily matches Target
//   - the detection confidence is below MaxScore
//   - at least MinEvidence scene labels match the Evidence vocabulary
//
// Firing renames the object to Rename and raises its confidence to
// BoostTo. Application is idempotent: an object already named Rename, or
// already at or above BoostTo confidence, is left untouched. A rule never
// fires without corroborating labels regardless of MinEvidence.
type CorrectionRule struct {
	Target      string   `koanf:"target" json:"target"`
	MaxScore    float64  `koanf:"max_score" json:"max_score"`
	Evidence    []string `koanf:"evidence" json:"evidence"`
	MinEvidence int      `koanf:"min_evidence" json:"min_evidence"`
	Rename      string   `koanf:"rename" json:"rename"`
	BoostTo     float64  `koanf:"boost_to" json:"boost_to"`
}

// VocabularyBucket names an item class and the terms that place a
// signature in it. Matching is fuzzy, so short detector names ("keys")
// match longer vocabulary terms ("car keys").
type VocabularyBucket struct {
	Name  string   `koanf:"name" json:"name"`
	Terms []string `koanf:"terms" json:"terms"`
}

// BucketPair declares two item classes that cannot describe the same
// physical object. Items classified into incompatible buckets receive a
// scoring penalty even when their generic labels overlap.
type BucketPair struct {
	A string `koanf:"a" json:"a"`
	B string `koanf:"b" json:"b"`
}

// BrandGroup equates generic marketing terms with concrete brand names so
// that category comparisons treat "designer wallet" and a branded luxury
// wallet as related rather than distinct.
type BrandGroup struct {
	Name     string   `koanf:"name" json:"name"`
	Generics []string `koanf:"generics" json:"generics"`
	Brands   []string `koanf:"brands" json:"brands"`
}

// DefaultRuleSet returns the compiled-in taxonomy. The tables are
// intentionally conservative: corrections require corroboration,
// incompatibility pairs cover only unambiguous class conflicts, and
// vocabulary terms favor multi-word forms to avoid substring
// false positives.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Version: "2026-08-01",
		Corrections: []CorrectionRule{
			{
				Target:      "accessory",
				MaxScore:    0.6,
				Evidence:    []string{"headphones", "earbuds", "earphones", "headset", "airpods", "audio", "wireless", "bluetooth"},
				MinEvidence: 1,
				Rename:      "headphones",
				BoostTo:     0.9,
			},
			{
				Target:      "case",
				MaxScore:    0.6,
				Evidence:    []string{"headphones", "earbuds", "earphones", "headset", "airpods", "charging case", "audio"},
				MinEvidence: 1,
				Rename:      "headphones",
				BoostTo:     0.9,
			},
			{
				Target:      "pouch",
				MaxScore:    0.5,
				Evidence:    []string{"wallet", "leather", "billfold", "credit card", "cards", "cash"},
				MinEvidence: 2,
				Rename:      "wallet",
				BoostTo:     0.85,
			},
		},
		Buckets: []VocabularyBucket{
			{Name: "audio", Terms: []string{"headphones", "earbuds", "earphones", "headset", "airpods", "bluetooth speaker"}},
			{Name: "wallet", Terms: []string{"wallet", "billfold", "cardholder", "card holder", "coin purse"}},
			{Name: "phone", Terms: []string{"smartphone", "iphone", "mobile phone", "cell phone", "android phone"}},
			{Name: "keys", Terms: []string{"keychain", "keyring", "key fob", "car keys", "house keys", "set of keys"}},
			{Name: "eyewear", Terms: []string{"glasses", "sunglasses", "eyeglasses", "spectacles"}},
			{Name: "bag", Terms: []string{"backpack", "handbag", "suitcase", "luggage", "duffel bag", "tote bag", "purse"}},
		},
		Incompatible: []BucketPair{
			{A: "audio", B: "wallet"},
			{A: "audio", B: "eyewear"},
			{A: "audio", B: "keys"},
			{A: "keys", B: "eyewear"},
			{A: "phone", B: "eyewear"},
		},
		BrandGroups: []BrandGroup{
			{
				Name:     "luxury",
				Generics: []string{"designer", "luxury"},
				Brands:   []string{"gucci", "prada", "louis vuitton", "chanel", "hermes", "dior", "versace", "burberry"},
			},
			{
				Name:     "athletic",
				Generics: []string{"sports", "athletic", "sportswear"},
				Brands:   []string{"nike", "adidas", "puma", "under armour", "reebok", "new balance", "asics"},
			},
		},
	}
}

// LoadRuleSet loads a rule set from a YAML file layered over the
// compiled-in defaults. Tables present in the file replace the
// corresponding default table; absent tables keep their defaults.
// The merged result is validated before being returned.
func LoadRuleSet(path string) (*RuleSet, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultRuleSet(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default rules: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load rule file %s: %w", path, err)
	}

	rs := &RuleSet{}
	if err := k.Unmarshal("", rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule file %s: %w", path, err)
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("rule file %s invalid: %w", path, err)
	}
	return rs, nil
}

// Validate checks structural integrity of the rule set: every correction
// must be able to fire safely, every incompatibility pair must reference a
// declared bucket, and every brand group must name at least one brand.
func (rs *RuleSet) Validate() error {
	if strings.TrimSpace(rs.Version) == "" {
		return fmt.Errorf("rule set version is required")
	}

	for i, rule := range rs.Corrections {
		if strings.TrimSpace(rule.Target) == "" {
			return fmt.Errorf("correction %d: target is required", i)
		}
		if strings.TrimSpace(rule.Rename) == "" {
			return fmt.Errorf("correction %d (%s): rename is required", i, rule.Target)
		}
		if len(rule.Evidence) == 0 {
			return fmt.Errorf("correction %d (%s): evidence vocabulary is required", i, rule.Target)
		}
		if rule.MinEvidence < 1 {
			return fmt.Errorf("correction %d (%s): min_evidence must be at least 1", i, rule.Target)
		}
		if rule.MaxScore <= 0 || rule.MaxScore > 1 {
			return fmt.Errorf("correction %d (%s): max_score must be in (0, 1]", i, rule.Target)
		}
		if rule.BoostTo <= 0 || rule.BoostTo > 1 {
			return fmt.Errorf("correction %d (%s): boost_to must be in (0, 1]", i, rule.Target)
		}
	}

	names := make(map[string]struct{}, len(rs.Buckets))
	for i, bucket := range rs.Buckets {
		if strings.TrimSpace(bucket.Name) == "" {
			return fmt.Errorf("bucket %d: name is required", i)
		}
		if len(bucket.Terms) == 0 {
			return fmt.Errorf("bucket %q: terms are required", bucket.Name)
		}
		if _, dup := names[bucket.Name]; dup {
			return fmt.Errorf("bucket %q: duplicate name", bucket.Name)
		}
		names[bucket.Name] = struct{}{}
	}

	for i, pair := range rs.Incompatible {
		if _, ok := names[pair.A]; !ok {
			return fmt.Errorf("incompatible pair %d: unknown bucket %q", i, pair.A)
		}
		if _, ok := names[pair.B]; !ok {
			return fmt.Errorf("incompatible pair %d: unknown bucket %q", i, pair.B)
		}
		if pair.A == pair.B {
			return fmt.Errorf("incompatible pair %d: bucket %q paired with itself", i, pair.A)
		}
	}

	for i, group := range rs.BrandGroups {
		if strings.TrimSpace(group.Name) == "" {
			return fmt.Errorf("brand group %d: name is required", i)
		}
		if len(group.Brands) == 0 {
			return fmt.Errorf("brand group %q: brands are required", group.Name)
		}
	}

	return nil
}

// CorrectSignature applies the correction table to a visual signature and
// returns the corrected signature along with whether any rule fired. The
// input is never mutated; when no rule fires the original pointer is
// returned unchanged, which keeps cached signatures immutable.
//
// Rules are evaluated in table order and the first matching rule wins for
// each object. Re-applying the table to its own output is a no-op.
func (rs *RuleSet) CorrectSignature(sig *models.VisualSignature) (*models.VisualSignature, bool) {
	if sig.IsEmpty() || len(rs.Corrections) == 0 || len(sig.Objects) == 0 {
		return sig, false
	}

	changed := false
	corrected := make([]models.DetectedObject, len(sig.Objects))
	copy(corrected, sig.Objects)

	for i, obj := range corrected {
		for _, rule := range rs.Corrections {
			if !rule.applies(obj, sig.Labels) {
				continue
			}
			corrected[i].Name = rule.Rename
			corrected[i].Score = rule.BoostTo
			changed = true
			break
		}
	}

	if !changed {
		return sig, false
	}
	return &models.VisualSignature{
		Labels:         sig.Labels,
		Objects:        corrected,
		DominantColors: sig.DominantColors,
	}, true
}

// applies reports whether the rule should fire for the given detection. A
// rule never rewrites an object that already carries the corrected name or
// a confidence at or above the boost target, and never fires without at
// least one corroborating label.
func (r CorrectionRule) applies(obj models.DetectedObject, labels []string) bool {
	if !termsMatch(obj.Name, r.Target) {
		return false
	}
	if strings.EqualFold(obj.Name, r.Rename) || obj.Score >= r.BoostTo {
		return false
	}
	if obj.Score >= r.MaxScore {
		return false
	}

	required := r.MinEvidence
	if required < 1 {
		required = 1
	}
	seen := 0
	for _, label := range labels {
		if anyTermMatch(label, r.Evidence) {
			seen++
			if seen >= required {
				return true
			}
		}
	}
	return false
}

// ClassifyBuckets returns the names of every bucket whose vocabulary
// matches at least one of the given terms, in table order.
func (rs *RuleSet) ClassifyBuckets(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	var matched []string
	for _, bucket := range rs.Buckets {
		for _, term := range terms {
			if anyTermMatch(term, bucket.Terms) {
				matched = append(matched, bucket.Name)
				break
			}
		}
	}
	return matched
}

// IncompatibleBuckets reports whether any bucket from the first set is
// declared incompatible with any bucket from the second set, returning the
// first offending pair for diagnostics.
func (rs *RuleSet) IncompatibleBuckets(a, b []string) (string, string, bool) {
	if len(a) == 0 || len(b) == 0 {
		return "", "", false
	}
	setA := make(map[string]struct{}, len(a))
	for _, name := range a {
		setA[name] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, name := range b {
		setB[name] = struct{}{}
	}
	for _, pair := range rs.Incompatible {
		if _, ok := setA[pair.A]; ok {
			if _, ok := setB[pair.B]; ok {
				return pair.A, pair.B, true
			}
		}
		if _, ok := setA[pair.B]; ok {
			if _, ok := setB[pair.A]; ok {
				return pair.B, pair.A, true
			}
		}
	}
	return "", "", false
}

// BrandRelated reports whether two category strings fall into the same
// brand group without being the same string. Equal categories are the
// caller's exact-match case and are never reported as merely related.
func (rs *RuleSet) BrandRelated(categoryA, categoryB string) bool {
	a := strings.TrimSpace(strings.ToLower(categoryA))
	b := strings.TrimSpace(strings.ToLower(categoryB))
	if a == "" || b == "" || a == b {
		return false
	}
	for _, group := range rs.BrandGroups {
		if group.matches(a) && group.matches(b) {
			return true
		}
	}
	return false
}

func (g BrandGroup) matches(category string) bool {
	for _, term := range g.Generics {
		if strings.Contains(category, strings.ToLower(term)) {
			return true
		}
	}
	for _, brand := range g.Brands {
		if strings.Contains(category, strings.ToLower(brand)) {
			return true
		}
	}
	return false
}

// termsMatch reports whether two terms refer to the same concept using
// case-insensitive substring containment in either direction, so that
// "wallet" matches "leather wallet" and vice versa.
func termsMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// anyTermMatch reports whether term fuzzily matches any entry in the
// vocabulary.
func anyTermMatch(term string, vocabulary []string) bool {
	for _, entry := range vocabulary {
		if termsMatch(term, entry) {
			return true
		}
	}
	return false
}
