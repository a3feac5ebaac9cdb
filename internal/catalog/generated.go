// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package catalog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

var (
	generatedCategories = []string{"electronics", "clothing", "home", "sports", "books"}
	generatedTags       = []string{"new", "sale", "popular", "trending", "limited"}
)

// GeneratedFeed produces a synthetic catalog for demos and load tests.
// The same size and seed always yield the same records.
type GeneratedFeed struct {
	size  int
	seed  uint64
	epoch time.Time
}

// NewGeneratedFeed creates a generator of size products.
func NewGeneratedFeed(size int, seed int64) *GeneratedFeed {
	if size < 0 {
		size = 0
	}
	return &GeneratedFeed{
		size:  size,
		seed:  uint64(seed),
		epoch: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// LoadCatalog returns the generated records.
func (g *GeneratedFeed) LoadCatalog(ctx context.Context) ([]ProductRecord, error) {
	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))

	records := make([]ProductRecord, 0, g.size)
	for i := 1; i <= g.size; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		category := generatedCategories[i%len(generatedCategories)]

		reviews := make([]Review, rng.IntN(50)+10)
		for j := range reviews {
			reviews[j] = Review{
				Rating:     float64(rng.IntN(501)) / 100,
				ReviewerID: fmt.Sprintf("user-%d", rng.IntN(100)),
				Comment:    fmt.Sprintf("Review %d for product %d.", j, i),
				Timestamp:  g.epoch.Add(-time.Duration(rng.IntN(30*24)) * time.Hour),
			}
		}

		tags := make([]string, len(generatedTags))
		copy(tags, generatedTags)
		rng.Shuffle(len(tags), func(a, b int) { tags[a], tags[b] = tags[b], tags[a] })

		records = append(records, ProductRecord{
			ID:            fmt.Sprintf("p-%05d", i),
			Name:          fmt.Sprintf("Product %d - %s", i, category),
			Description:   fmt.Sprintf("This is a detailed description for product %d. It contains information about features and benefits.", i),
			Price:         float64(rng.IntN(900) + 100),
			OriginalPrice: float64(rng.IntN(1000) + 200),
			Category:      category,
			Tags:          tags[:rng.IntN(3)+1],
			Reviews:       reviews,
			ImageRef:      fmt.Sprintf("https://picsum.photos/200/200?random=%d", i),
		})
	}
	return records, nil
}

// LoadCategories returns the fixed category list.
func (g *GeneratedFeed) LoadCategories(context.Context) ([]string, error) {
	return append([]string(nil), generatedCategories...), nil
}
