// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package derive

import "strings"

// AllCategories is the category value that disables category filtering.
const AllCategories = "all"

// Inputs are the caller-controlled signals of a view.
type Inputs struct {
	SearchTerm string `json:"search_term"`
	Category   string `json:"category"`
}

// normalize lowercases and trims the search term and maps "all" to no
// category filter.
func (in Inputs) normalize() Inputs {
	out := Inputs{
		SearchTerm: strings.ToLower(strings.TrimSpace(in.SearchTerm)),
		Category:   strings.TrimSpace(in.Category),
	}
	if strings.EqualFold(out.Category, AllCategories) {
		out.Category = ""
	}
	return out
}

// RecipeKey is every input version a view depends on. Equal keys always
// produce identical views.
type RecipeKey struct {
	CatalogVersion uint64 `json:"catalog_version"`
	SearchTerm     string `json:"search_term"`
	Category       string `json:"category"`
	CartVersion    uint64 `json:"cart_version"`
	WindowVersion  uint64 `json:"window_version"`
}

// View is an ordered, immutable list of product ids.
type View struct {
	key    RecipeKey
	ids    []string
	scores []float64
}

// Key returns the recipe the view was built from.
func (v *View) Key() RecipeKey { return v.key }

// Len returns the number of products in the view.
func (v *View) Len() int { return len(v.ids) }

// At returns the id at position i.
func (v *View) At(i int) string { return v.ids[i] }

// ScoreAt returns the derived score of the product at position i.
func (v *View) ScoreAt(i int) float64 { return v.scores[i] }

// IDs returns a copy of the ordered ids.
func (v *View) IDs() []string {
	return append([]string(nil), v.ids...)
}

// Slice returns a copy of ids in [lo, hi), clamped to the view.
func (v *View) Slice(lo, hi int) []string {
	if lo < 0 {
		lo = 0
	}
	if hi > len(v.ids) {
		hi = len(v.ids)
	}
	if lo >= hi {
		return []string{}
	}
	return append([]string(nil), v.ids[lo:hi]...)
}

// PriceRange holds the min and max price; both are nil for an empty view.
type PriceRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// CategoryMetrics aggregates one category of a view.
type CategoryMetrics struct {
	Count        int     `json:"count"`
	AveragePrice float64 `json:"average_price"`
}

// Metrics aggregates the members of a view.
type Metrics struct {
	Count        int                        `json:"count"`
	AveragePrice float64                    `json:"average_price"`
	PriceRange   PriceRange                 `json:"price_range"`
	PerCategory  map[string]CategoryMetrics `json:"per_category"`
}

// Clone returns a deep copy so callers cannot alter memoized metrics.
func (m Metrics) Clone() Metrics {
	out := m
	if m.PriceRange.Min != nil {
		v := *m.PriceRange.Min
		out.PriceRange.Min = &v
	}
	if m.PriceRange.Max != nil {
		v := *m.PriceRange.Max
		out.PriceRange.Max = &v
	}
	out.PerCategory = make(map[string]CategoryMetrics, len(m.PerCategory))
	for k, v := range m.PerCategory {
		out.PerCategory[k] = v
	}
	return out
}
