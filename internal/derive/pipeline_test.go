// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package derive

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/catalogview/internal/cart"
	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/telemetry"
)

type fixture struct {
	store *catalog.Store
	cart  *cart.Ledger
	bus   *telemetry.Bus
	pipe  *Pipeline
}

func newFixture(t *testing.T, records []catalog.ProductRecord) *fixture {
	t.Helper()

	f := &fixture{
		store: catalog.NewStore(nil, zerolog.Nop()),
		bus:   telemetry.NewBus(telemetry.Config{Capacity: 100, ScoringWindow: 100}, zerolog.Nop()),
	}
	f.cart = cart.NewLedger(f.bus, zerolog.Nop())
	if records != nil {
		if _, err := f.store.Replace(records); err != nil {
			t.Fatalf("Replace: %v", err)
		}
	}
	f.pipe = NewPipeline(Sources{Catalog: f.store, Cart: f.cart, Telemetry: f.bus}, Config{Weights: DefaultWeights()}, zerolog.Nop())
	return f
}

func product(id, category string, price float64, tags ...string) catalog.ProductRecord {
	return catalog.ProductRecord{
		ID:          id,
		Name:        "Item " + id,
		Description: "A " + category + " product",
		Price:       price,
		Category:    category,
		Tags:        tags,
	}
}

func TestGetView_CategoryScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []catalog.ProductRecord{
		product("A", "books", 10),
		product("B", "books", 20),
		product("C", "home", 30),
	})

	view, m := f.pipe.GetView(Inputs{Category: "books"})

	if got := view.IDs(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("view = %v, want [A B]", got)
	}
	if m.Count != 2 || m.AveragePrice != 15 {
		t.Errorf("metrics = count %d avg %v, want 2 and 15", m.Count, m.AveragePrice)
	}
	if *m.PriceRange.Min != 10 || *m.PriceRange.Max != 20 {
		t.Errorf("price range = %v..%v", *m.PriceRange.Min, *m.PriceRange.Max)
	}
	if got := m.PerCategory["books"]; got.Count != 2 || got.AveragePrice != 15 {
		t.Errorf("per category books = %+v", got)
	}
}

func TestGetView_EmptyCatalog(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	view, m := f.pipe.GetView(Inputs{})

	if view.Len() != 0 || m.Count != 0 || m.AveragePrice != 0 {
		t.Errorf("empty catalog gave len %d, metrics %+v", view.Len(), m)
	}
	if m.PriceRange.Min != nil || m.PriceRange.Max != nil {
		t.Error("price range must be nil for an empty view")
	}
}

func TestGetView_NoMatches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []catalog.ProductRecord{product("A", "books", 10)})
	view, m := f.pipe.GetView(Inputs{SearchTerm: "zzz-nothing"})

	if view.Len() != 0 || m.Count != 0 {
		t.Errorf("expected empty view, got %v", view.IDs())
	}
	if m.PriceRange.Min != nil || m.PriceRange.Max != nil {
		t.Error("min/max must be nil with zero matches")
	}
}

func TestGetView_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []catalog.ProductRecord{product("A", "books", 10), product("B", "home", 20)})

	v1, m1 := f.pipe.GetView(Inputs{SearchTerm: " Item "})
	v2, m2 := f.pipe.GetView(Inputs{SearchTerm: "item"})

	if v1 != v2 {
		t.Error("equal recipe keys must return the same view")
	}
	if !reflect.DeepEqual(m1, m2) {
		t.Errorf("metrics differ: %+v vs %+v", m1, m2)
	}
	if s := f.pipe.Stats(); s.Recomputes != 1 || s.Hits != 1 {
		t.Errorf("stats = %+v, want 1 recompute and 1 hit", s)
	}

	// callers cannot corrupt the memo through returned metrics
	m2.PerCategory["books"] = CategoryMetrics{Count: 99}
	*m2.PriceRange.Min = -1
	_, m3 := f.pipe.GetView(Inputs{SearchTerm: "item"})
	if m3.PerCategory["books"].Count != 1 || *m3.PriceRange.Min != 10 {
		t.Errorf("memoized metrics were mutated: %+v", m3)
	}
}

func TestGetView_Deterministic(t *testing.T) {
	t.Parallel()

	records, err := catalog.NewGeneratedFeed(200, 42).LoadCatalog(context.Background())
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	build := func() ([]string, []float64) {
		f := newFixture(t, records)
		f.cart.Add(records[3].ID)
		f.cart.Add(records[10].ID)
		view, _ := f.pipe.GetView(Inputs{})
		scores := make([]float64, view.Len())
		for i := range scores {
			scores[i] = view.ScoreAt(i)
		}
		return view.IDs(), scores
	}

	ids1, scores1 := build()
	ids2, scores2 := build()
	if !reflect.DeepEqual(ids1, ids2) || !reflect.DeepEqual(scores1, scores2) {
		t.Error("identical inputs produced different views")
	}

	for i := 1; i < len(ids1); i++ {
		if scores1[i] > scores1[i-1] || (scores1[i] == scores1[i-1] && ids1[i] < ids1[i-1]) {
			t.Fatalf("ordering violated at %d: (%v,%s) after (%v,%s)", i, scores1[i], ids1[i], scores1[i-1], ids1[i-1])
		}
	}
}

func TestGetView_FilterCorrectness(t *testing.T) {
	t.Parallel()

	records := []catalog.ProductRecord{
		product("A", "books", 10, "sale"),
		product("B", "books", 20, "new"),
		product("C", "home", 30, "sale"),
		{ID: "D", Name: "Desk Lamp", Description: "bright", Price: 5, Category: "home"},
	}
	f := newFixture(t, records)

	tests := []struct {
		name string
		in   Inputs
		want []string
	}{
		{"all", Inputs{Category: "all"}, []string{"A", "B", "C", "D"}},
		{"all uppercase", Inputs{Category: "ALL"}, []string{"A", "B", "C", "D"}},
		{"category", Inputs{Category: "home"}, []string{"C", "D"}},
		{"tag match", Inputs{SearchTerm: "SALE"}, []string{"A", "C"}},
		{"name match", Inputs{SearchTerm: "lamp"}, []string{"D"}},
		{"description match", Inputs{SearchTerm: "bright"}, []string{"D"}},
		{"term and category", Inputs{SearchTerm: "sale", Category: "books"}, []string{"A"}},
		{"unknown category", Inputs{Category: "garden"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, _ := f.pipe.GetView(tt.in)
			got := view.IDs()
			if got == nil {
				got = []string{}
			}
			// scores can reorder, compare as sets
			if !sameSet(got, tt.want) {
				t.Errorf("view = %v, want %v", got, tt.want)
			}
		})
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

func TestGetView_CartAffinity(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []catalog.ProductRecord{
		product("A", "books", 10, "sale"),
		product("B", "home", 10, "sale"),
		product("C", "home", 10, "new"),
	})

	before, _ := f.pipe.GetView(Inputs{})
	if got := before.IDs(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("baseline = %v", got)
	}

	f.cart.Add("C")
	after, _ := f.pipe.GetView(Inputs{})

	if after == before {
		t.Fatal("cart change must invalidate the memo")
	}
	if after.Key().CartVersion != 1 {
		t.Errorf("CartVersion = %d, want 1", after.Key().CartVersion)
	}
	// B and C share the home category with the cart line; C also shares its tag.
	if got := after.IDs(); !reflect.DeepEqual(got, []string{"C", "B", "A"}) {
		t.Errorf("view = %v, want [C B A]", got)
	}
	if after.ScoreAt(0) != 20+15+0 || after.ScoreAt(1) != 20 {
		t.Errorf("scores = %v, %v", after.ScoreAt(0), after.ScoreAt(1))
	}
}

func TestGetView_TelemetryWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []catalog.ProductRecord{product("A", "books", 10), product("B", "books", 10)})

	f.bus.Publish(telemetry.Event{Kind: telemetry.KindProductView, ProductID: "B"})

	// the window version has not moved, so the view is unchanged
	v1, _ := f.pipe.GetView(Inputs{})
	if v1.At(0) != "A" {
		t.Fatalf("view before rollup = %v", v1.IDs())
	}

	f.bus.Rollup()
	v2, _ := f.pipe.GetView(Inputs{})
	if v2.At(0) != "B" || v2.ScoreAt(0) != 10 {
		t.Errorf("view after rollup = %v (score %v)", v2.IDs(), v2.ScoreAt(0))
	}
	if v2.Key().WindowVersion != 1 {
		t.Errorf("WindowVersion = %d", v2.Key().WindowVersion)
	}
}

func TestGetView_FaultKeepsPreviousView(t *testing.T) {
	t.Parallel()

	var faults []error
	f := newFixture(t, []catalog.ProductRecord{product("A", "books", 10)})
	f.pipe.cfg.OnFault = func(err error) { faults = append(faults, err) }

	good, _ := f.pipe.GetView(Inputs{})

	f.pipe.beforeRecompute = func(RecipeKey) { panic("corrupt input") }
	got, m := f.pipe.GetView(Inputs{SearchTerm: "item"})

	if got != good {
		t.Error("a faulted recomputation must return the previous good view")
	}
	if m.Count != 1 {
		t.Errorf("metrics count = %d, want 1", m.Count)
	}
	if len(faults) != 1 || !errors.Is(faults[0], ErrRecomputeFault) || !strings.Contains(faults[0].Error(), "corrupt input") {
		t.Errorf("faults = %v", faults)
	}
	if f.pipe.Stats().Faults != 1 {
		t.Errorf("Faults = %d, want 1", f.pipe.Stats().Faults)
	}
}

func TestGetView_FaultWithoutPreviousView(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []catalog.ProductRecord{product("A", "books", 10)})
	f.pipe.beforeRecompute = func(RecipeKey) { panic("boom") }

	view, m := f.pipe.GetView(Inputs{})
	if view == nil || view.Len() != 0 || m.Count != 0 {
		t.Errorf("expected empty fallback, got %v %+v", view, m)
	}
	if _, _, ok := f.pipe.Last(); ok {
		t.Error("a fault must not populate the memo")
	}
}

func TestRelated(t *testing.T) {
	t.Parallel()

	store := catalog.NewStore(nil, zerolog.Nop())
	snap, err := store.Replace([]catalog.ProductRecord{
		product("A", "books", 100, "sale", "new"),
		product("B", "books", 120, "SALE"),
		product("C", "books", 150, "sale"),
		product("D", "books", 110, "limited"),
		product("E", "home", 100, "sale"),
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}

	ids, ok := Related(snap, "A", 50)
	if !ok {
		t.Fatal("Related reported A missing")
	}
	// C is exactly 50 away, D shares no tag, E is another category
	if !reflect.DeepEqual(ids, []string{"B"}) {
		t.Errorf("Related(A) = %v, want [B]", ids)
	}

	if _, ok := Related(snap, "missing", 50); ok {
		t.Error("Related on an unknown id should report !ok")
	}
}
