// Reclaim - Lost & Found Matching Engine
// Copyright 2026 Nadav B. (nadavby)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nadavby/reclaim

package models

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nadavby/reclaim/internal/geo"
)

// coordinateEpsilon bounds the null-island check. Feeds that lack geo data
// often emit a literal (0,0) instead of omitting the field; treating it as
// a real ocean coordinate would let the distance rule reject candidates on
// garbage data. Epsilon comparison avoids IEEE 754 equality pitfalls.
const coordinateEpsilon = 1e-9

// LocationKind identifies the variant carried by a Location value.
type LocationKind string

const (
	// LocationUnknown means no usable location data is attached to the item.
	LocationUnknown LocationKind = "unknown"

	// LocationText is a free-text place description ("Library West, 2nd floor").
	LocationText LocationKind = "text"

	// LocationCoordinates is a validated WGS84 latitude/longitude pair.
	LocationCoordinates LocationKind = "coordinates"
)

// Location is a tagged union over the three location variants an item can
// carry. Legacy feeds encoded locations as bare strings (free text,
// "lat,lon" pairs, or the literal "unknown") or as {lat,lng} objects; the
// JSON codec normalizes all of those at decode time so downstream code only
// ever switches on Kind.
//
// Malformed location payloads decode to the Unknown variant instead of
// failing the enclosing item. Absence of location data never rejects an
// item from matching.
type Location struct {
	Kind LocationKind `json:"kind"`
	Text string       `json:"text,omitempty"`
	Lat  float64      `json:"lat,omitempty"`
	Lon  float64      `json:"lon,omitempty"`
}

// UnknownLocation returns the Unknown variant.
func UnknownLocation() Location {
	return Location{Kind: LocationUnknown}
}

// TextLocation returns a free-text location. Empty or sentinel text
// collapses to Unknown.
func TextLocation(text string) Location {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "unknown") {
		return UnknownLocation()
	}
	return Location{Kind: LocationText, Text: text}
}

// CoordinateLocation returns a coordinate location. Out-of-range,
// non-finite, or null-island (0,0) components collapse to Unknown so the
// Coordinates variant always carries usable values.
func CoordinateLocation(lat, lon float64) Location {
	if !geo.ValidCoordinates(lat, lon) {
		return UnknownLocation()
	}
	if math.Abs(lat) < coordinateEpsilon && math.Abs(lon) < coordinateEpsilon {
		return UnknownLocation()
	}
	return Location{Kind: LocationCoordinates, Lat: lat, Lon: lon}
}

// IsUnknown reports whether no usable location data is present.
func (l Location) IsUnknown() bool {
	return l.Kind == LocationUnknown || l.Kind == ""
}

// HasCoordinates reports whether the location carries a coordinate pair.
func (l Location) HasCoordinates() bool {
	return l.Kind == LocationCoordinates
}

// DistanceTo returns the great-circle distance in kilometers between two
// locations. ok is false when either side has no coordinates; the distance
// value is only meaningful when ok is true, so unknown never reads as zero.
func (l Location) DistanceTo(other Location) (km float64, ok bool) {
	if !l.HasCoordinates() || !other.HasCoordinates() {
		return 0, false
	}
	return geo.Haversine(l.Lat, l.Lon, other.Lat, other.Lon), true
}

// String renders the location for log fields and reasoning text.
func (l Location) String() string {
	switch l.Kind {
	case LocationText:
		return l.Text
	case LocationCoordinates:
		return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lon, 'f', -1, 64)
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the canonical form. Unknown encodes as null so
// optional locations stay compact in stored items and API payloads.
func (l Location) MarshalJSON() ([]byte, error) {
	switch l.Kind {
	case LocationText:
		return json.Marshal(struct {
			Kind LocationKind `json:"kind"`
			Text string       `json:"text"`
		}{Kind: LocationText, Text: l.Text})
	case LocationCoordinates:
		return json.Marshal(struct {
			Kind LocationKind `json:"kind"`
			Lat  float64      `json:"lat"`
			Lon  float64      `json:"lon"`
		}{Kind: LocationCoordinates, Lat: l.Lat, Lon: l.Lon})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts the canonical form plus every legacy shape seen in
// item feeds. It never returns an error: undecodable payloads become the
// Unknown variant.
func (l *Location) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*l = UnknownLocation()
		return nil
	}

	// Legacy bare-string form: free text, "lat,lon", or "unknown".
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*l = UnknownLocation()
			return nil
		}
		*l = parseLegacyString(s)
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var raw struct {
			Kind *string  `json:"kind"`
			Text string   `json:"text"`
			Lat  *float64 `json:"lat"`
			Lon  *float64 `json:"lon"`
			Lng  *float64 `json:"lng"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			*l = UnknownLocation()
			return nil
		}

		if raw.Kind != nil {
			switch LocationKind(*raw.Kind) {
			case LocationText:
				*l = TextLocation(raw.Text)
			case LocationCoordinates:
				if raw.Lat != nil && raw.Lon != nil {
					*l = CoordinateLocation(*raw.Lat, *raw.Lon)
				} else {
					*l = UnknownLocation()
				}
			default:
				*l = UnknownLocation()
			}
			return nil
		}

		// Legacy {lat,lng} object, lng and lon both seen in the wild.
		lon := raw.Lon
		if lon == nil {
			lon = raw.Lng
		}
		if raw.Lat != nil && lon != nil {
			*l = CoordinateLocation(*raw.Lat, *lon)
			return nil
		}
		if raw.Text != "" {
			*l = TextLocation(raw.Text)
			return nil
		}
		*l = UnknownLocation()
		return nil
	}

	// Numbers, arrays, and any other shape carry no usable location.
	*l = UnknownLocation()
	return nil
}

// parseLegacyString maps a legacy location string onto a variant: the
// sentinel and empty strings are Unknown, parseable "lat,lon" pairs are
// promoted to Coordinates, everything else is free text.
func parseLegacyString(s string) Location {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "unknown") {
		return UnknownLocation()
	}
	if lat, lon, ok := geo.ParseCoordinates(s); ok {
		return CoordinateLocation(lat, lon)
	}
	return Location{Kind: LocationText, Text: s}
}
