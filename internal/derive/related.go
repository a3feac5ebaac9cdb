// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package derive

import (
	"math"

	"github.com/tomtom215/catalogview/internal/catalog"
)

// DefaultRelatedPriceDelta is the default price window for Related.
const DefaultRelatedPriceDelta = 50

// Related returns products related to id: same category, at least one
// shared tag and a price within maxPriceDelta (exclusive). The product
// itself is excluded. Ids are returned in ascending order; ok is false when
// id is not in the snapshot.
//
// Related is an annotation for a product page. It never filters the view.
func Related(snap *catalog.Snapshot, id string, maxPriceDelta float64) (ids []string, ok bool) {
	target, ok := snap.Get(id)
	if !ok {
		return nil, false
	}

	ids = []string{}
	snap.Range(func(p *catalog.Product) bool {
		if p.ID() == id || p.Category() != target.Category() {
			return true
		}
		if math.Abs(p.Price()-target.Price()) >= maxPriceDelta {
			return true
		}
		if p.SharedTags(target) == 0 {
			return true
		}
		ids = append(ids, p.ID())
		return true
	})
	return ids, true
}
