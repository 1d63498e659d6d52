// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package models

// DetectedObject is a single object located by the vision provider,
// carrying the detector's confidence in [0,1].
type DetectedObject struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// VisualSignature is the vision provider's analysis of one image. It is
// the unit cached by the signature cache: computing one costs a provider
// round-trip, so signatures are reused across every comparison that
// involves the same image within the cache TTL.
type VisualSignature struct {
	// Labels are scene-level descriptors ("electronics", "leather", "blue").
	Labels []string `json:"labels"`

	// Objects are localized detections with confidence scores.
	Objects []DetectedObject `json:"objects"`

	// DominantColors are the leading colors of the image, most dominant first.
	DominantColors []string `json:"dominant_colors,omitempty"`
}

// ObjectNames returns the detected object names in detection order.
func (s *VisualSignature) ObjectNames() []string {
	names := make([]string, 0, len(s.Objects))
	for _, obj := range s.Objects {
		names = append(names, obj.Name)
	}
	return names
}

// AllTerms returns labels and object names combined, for vocabulary
// bucket classification.
func (s *VisualSignature) AllTerms() []string {
	terms := make([]string, 0, len(s.Labels)+len(s.Objects))
	terms = append(terms, s.Labels...)
	for _, obj := range s.Objects {
		terms = append(terms, obj.Name)
	}
	return terms
}

// IsEmpty reports whether the provider found nothing usable in the image.
func (s *VisualSignature) IsEmpty() bool {
	return s == nil || (len(s.Labels) == 0 && len(s.Objects) == 0)
}
