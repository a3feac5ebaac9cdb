// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package catalog

import (
	"context"
	"math"
	"reflect"
	"testing"
)

func TestProductRecord_DisplayHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		price, orig  float64
		wantDiscount int
		wantSavings  float64
	}{
		{"discounted", 75, 100, 25, 25},
		{"no original price", 75, 0, 0, 0},
		{"price above original", 120, 100, 0, 0},
		{"rounding", 66, 99, 33, 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ProductRecord{Price: tt.price, OriginalPrice: tt.orig}
			if got := r.DiscountPercent(); got != tt.wantDiscount {
				t.Errorf("DiscountPercent() = %d, want %d", got, tt.wantDiscount)
			}
			if got := r.Savings(); got != tt.wantSavings {
				t.Errorf("Savings() = %v, want %v", got, tt.wantSavings)
			}
		})
	}
}

func TestProductRecord_Ratings(t *testing.T) {
	t.Parallel()

	r := ProductRecord{Reviews: []Review{{Rating: 0.5}, {Rating: 1}, {Rating: 3.9}, {Rating: 5}, {Rating: 4.2}}}

	if got, want := r.AverageRating(), 2.92; math.Abs(got-want) > 1e-9 {
		t.Errorf("AverageRating() = %v, want %v", got, want)
	}
	if got, want := r.RatingDistribution(), [5]int{2, 0, 1, 1, 1}; got != want {
		t.Errorf("RatingDistribution() = %v, want %v", got, want)
	}
	if got := (ProductRecord{}).AverageRating(); got != 0 {
		t.Errorf("AverageRating() without reviews = %v, want 0", got)
	}
}

func TestProduct_Accessors(t *testing.T) {
	t.Parallel()

	p := newProduct(ProductRecord{
		ID:       "p1",
		Name:     "Desk Lamp",
		Category: "Lighting",
		Price:    39.5,
		ImageRef: "img://lamp",
		Reviews:  []Review{{Rating: 4}, {Rating: 5}},
	})

	if got := p.ID(); got != "p1" {
		t.Errorf("ID() = %q, want p1", got)
	}
	if got := p.Name(); got != "Desk Lamp" {
		t.Errorf("Name() = %q, want Desk Lamp", got)
	}
	if got := p.Category(); got != "Lighting" {
		t.Errorf("Category() = %q, want Lighting", got)
	}
	if got := p.Price(); got != 39.5 {
		t.Errorf("Price() = %v, want 39.5", got)
	}
	if got := p.ImageRef(); got != "img://lamp" {
		t.Errorf("ImageRef() = %q, want img://lamp", got)
	}
	if got := p.ReviewCount(); got != 2 {
		t.Errorf("ReviewCount() = %d, want 2", got)
	}
}

func TestProduct_Matches(t *testing.T) {
	t.Parallel()

	p := newProduct(ProductRecord{
		ID:          "p1",
		Name:        "Trail Running Shoe",
		Description: "Lightweight and Waterproof",
		Tags:        []string{"Sale", "outdoor"},
	})

	tests := []struct {
		term string
		want bool
	}{
		{"", true},
		{"running", true},
		{"waterproof", true},
		{"sale", true},
		{"door", true},
		{"p1", false},
		{"boots", false},
	}
	for _, tt := range tests {
		if got := p.Matches(tt.term); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.term, got, tt.want)
		}
	}
}

func TestProduct_SharedTags(t *testing.T) {
	t.Parallel()

	a := newProduct(ProductRecord{ID: "a", Tags: []string{"Sale", "new", "new", " popular "}})
	b := newProduct(ProductRecord{ID: "b", Tags: []string{"sale", "popular", "limited"}})
	c := newProduct(ProductRecord{ID: "c"})

	if got := a.SharedTags(b); got != 2 {
		t.Errorf("SharedTags(a, b) = %d, want 2", got)
	}
	if got := a.SharedTags(c); got != 0 {
		t.Errorf("SharedTags(a, c) = %d, want 0", got)
	}
	if got := a.Record().Tags; !reflect.DeepEqual(got, []string{"Sale", "new", "popular"}) {
		t.Errorf("normalized tags = %v", got)
	}
}

func TestGeneratedFeed_Deterministic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	first, err := NewGeneratedFeed(50, 7).LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	second, _ := NewGeneratedFeed(50, 7).LoadCatalog(ctx)
	other, _ := NewGeneratedFeed(50, 8).LoadCatalog(ctx)

	if !reflect.DeepEqual(first, second) {
		t.Error("same seed produced different catalogs")
	}
	if reflect.DeepEqual(first, other) {
		t.Error("different seeds produced identical catalogs")
	}
	if len(first) != 50 {
		t.Fatalf("len = %d, want 50", len(first))
	}

	cats, _ := NewGeneratedFeed(1, 1).LoadCategories(ctx)
	if len(cats) != 5 {
		t.Errorf("categories = %v", cats)
	}

	// generated data must pass ingest validation
	if err := validateRecords(first); err != nil {
		t.Errorf("generated records rejected: %v", err)
	}
}
