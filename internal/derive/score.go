// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package derive

import (
	"math"

	"github.com/tomtom215/catalogview/internal/cart"
	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/telemetry"
)

// Weights scale the signal components of a score.
type Weights struct {
	// CartCategory is added per cart line in the product's category.
	CartCategory float64

	// CartTag is added per tag shared with a same-category cart line.
	CartTag float64

	// View is added per productView event in the scoring window.
	View float64
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{CartCategory: 20, CartTag: 15, View: 10}
}

// scorer computes scores for one recipe. It only reads immutable inputs.
type scorer struct {
	weights   Weights
	window    *telemetry.Window
	cartByCat map[string][]*catalog.Product
}

func newScorer(w Weights, snap *catalog.Snapshot, cs *cart.State, win *telemetry.Window) *scorer {
	s := &scorer{
		weights:   w,
		window:    win,
		cartByCat: make(map[string][]*catalog.Product),
	}
	// lines are id-ordered, so float sums are reproducible
	for _, line := range cs.Lines() {
		p, ok := snap.Get(line.ProductID)
		if !ok {
			continue
		}
		s.cartByCat[p.Category()] = append(s.cartByCat[p.Category()], p)
	}
	return s
}

// score is a pure function of the product, cart state and frozen window.
func (s *scorer) score(p *catalog.Product) float64 {
	var total float64

	for _, c := range s.cartByCat[p.Category()] {
		total += s.weights.CartCategory
		total += s.weights.CartTag * float64(p.SharedTags(c))
	}

	if s.window != nil {
		total += s.weights.View * float64(s.window.Views(p.ID()))
	}

	total += math.Log1p(p.Price()) * math.Sqrt(float64(p.ReviewCount()))
	total += p.RatingSquareSum()
	return total
}
