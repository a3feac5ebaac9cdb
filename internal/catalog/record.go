// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package catalog

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Review is a single rating left for a product.
type Review struct {
	Rating     float64   `json:"rating" validate:"finite,gte=0,lte=5"`
	ReviewerID string    `json:"reviewer_id"`
	Comment    string    `json:"comment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProductRecord is a catalog entry as delivered by the upstream feed.
type ProductRecord struct {
	ID            string   `json:"id" validate:"nonblank"`
	Name          string   `json:"name" validate:"nonblank"`
	Description   string   `json:"description"`
	Price         float64  `json:"price" validate:"finite,gte=0"`
	OriginalPrice float64  `json:"original_price" validate:"finite,gte=0"`
	Category      string   `json:"category" validate:"nonblank"`
	Tags          []string `json:"tags"`
	Reviews       []Review `json:"reviews" validate:"dive"`
	ImageRef      string   `json:"image_ref"`
}

// Clone returns a deep copy of r.
func (r ProductRecord) Clone() ProductRecord {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.Reviews != nil {
		out.Reviews = append([]Review(nil), r.Reviews...)
	}
	return out
}

// DiscountPercent is the rounded percentage off the original price.
// Zero when there is no discount.
func (r ProductRecord) DiscountPercent() int {
	if r.OriginalPrice <= 0 || r.Price >= r.OriginalPrice {
		return 0
	}
	return int(math.Round((r.OriginalPrice - r.Price) / r.OriginalPrice * 100))
}

// Savings is the absolute amount off the original price, never negative.
func (r ProductRecord) Savings() float64 {
	if r.Price >= r.OriginalPrice {
		return 0
	}
	return r.OriginalPrice - r.Price
}

// AverageRating is the mean review rating, 0 without reviews.
func (r ProductRecord) AverageRating() float64 {
	if len(r.Reviews) == 0 {
		return 0
	}
	var sum float64
	for _, rv := range r.Reviews {
		sum += rv.Rating
	}
	return sum / float64(len(r.Reviews))
}

// RatingDistribution counts reviews per star bucket. Index 0 is one star,
// index 4 is five stars; ratings below 1 fall into the one-star bucket.
func (r ProductRecord) RatingDistribution() [5]int {
	var dist [5]int
	for _, rv := range r.Reviews {
		bucket := int(math.Floor(rv.Rating)) - 1
		if bucket < 0 {
			bucket = 0
		}
		if bucket > 4 {
			bucket = 4
		}
		dist[bucket]++
	}
	return dist
}

// Product is an ingested, read-only record with precomputed search and
// scoring fields.
type Product struct {
	rec ProductRecord

	nameLower string
	descLower string
	tagsLower []string // sorted, de-duplicated

	ratingSquares float64
}

func newProduct(r ProductRecord) *Product {
	p := &Product{
		rec:       r.Clone(),
		nameLower: strings.ToLower(r.Name),
		descLower: strings.ToLower(r.Description),
	}
	p.rec.Tags = normalizeTags(r.Tags)

	seen := make(map[string]struct{}, len(p.rec.Tags))
	for _, t := range p.rec.Tags {
		lt := strings.ToLower(t)
		if _, ok := seen[lt]; ok {
			continue
		}
		seen[lt] = struct{}{}
		p.tagsLower = append(p.tagsLower, lt)
	}
	sort.Strings(p.tagsLower)

	for _, rv := range r.Reviews {
		p.ratingSquares += rv.Rating * rv.Rating
	}
	return p
}

// normalizeTags trims, drops empties, de-duplicates and sorts tags.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := set[t]; ok {
			continue
		}
		set[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ID returns the product id.
func (p *Product) ID() string { return p.rec.ID }

// Name returns the display name.
func (p *Product) Name() string { return p.rec.Name }

// Category returns the category as ingested.
func (p *Product) Category() string { return p.rec.Category }

// Price returns the current price.
func (p *Product) Price() float64 { return p.rec.Price }

// ImageRef returns the thumbnail reference handed to the asset codec.
func (p *Product) ImageRef() string { return p.rec.ImageRef }

// ReviewCount returns the number of reviews.
func (p *Product) ReviewCount() int { return len(p.rec.Reviews) }

// RatingSquareSum is the sum of squared review ratings.
func (p *Product) RatingSquareSum() float64 { return p.ratingSquares }

// Record returns a deep copy of the underlying record.
func (p *Product) Record() ProductRecord { return p.rec.Clone() }

// Matches reports whether the lowercase term is a substring of the name,
// description or any tag. An empty term matches everything.
func (p *Product) Matches(termLower string) bool {
	if termLower == "" {
		return true
	}
	if strings.Contains(p.nameLower, termLower) || strings.Contains(p.descLower, termLower) {
		return true
	}
	for _, t := range p.tagsLower {
		if strings.Contains(t, termLower) {
			return true
		}
	}
	return false
}

// SharedTags counts case-insensitive tags p has in common with other.
func (p *Product) SharedTags(other *Product) int {
	i, j, n := 0, 0, 0
	for i < len(p.tagsLower) && j < len(other.tagsLower) {
		switch {
		case p.tagsLower[i] == other.tagsLower[j]:
			n++
			i++
			j++
		case p.tagsLower[i] < other.tagsLower[j]:
			i++
		default:
			j++
		}
	}
	return n
}
