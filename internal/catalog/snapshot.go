// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package catalog

import "sort"

// Snapshot is an immutable, versioned catalog. A Snapshot is never modified
// after the Store publishes it; a refresh produces a new one.
type Snapshot struct {
	version    uint64
	byID       map[string]*Product
	ids        []string // sorted
	categories []string // sorted
}

func emptySnapshot() *Snapshot {
	return &Snapshot{byID: map[string]*Product{}}
}

// Version increases strictly with every replace. Zero is the empty catalog
// that exists before the first load.
func (s *Snapshot) Version() uint64 { return s.version }

// Len returns the number of products.
func (s *Snapshot) Len() int { return len(s.ids) }

// Get returns the product with the given id.
func (s *Snapshot) Get(id string) (*Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Record returns a copy of the record with the given id.
func (s *Snapshot) Record(id string) (ProductRecord, bool) {
	p, ok := s.byID[id]
	if !ok {
		return ProductRecord{}, false
	}
	return p.Record(), true
}

// IDs returns all product ids in ascending order.
func (s *Snapshot) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Range calls fn for each product in id order until fn returns false.
func (s *Snapshot) Range(fn func(*Product) bool) {
	for _, id := range s.ids {
		if !fn(s.byID[id]) {
			return
		}
	}
}

// Categories returns the known categories in ascending order.
func (s *Snapshot) Categories() []string {
	return append([]string(nil), s.categories...)
}

// Records returns copies of every record in id order.
func (s *Snapshot) Records() []ProductRecord {
	out := make([]ProductRecord, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id].Record())
	}
	return out
}

// buildSnapshot indexes validated records. Categories is the union of the
// feed's categories and those used by records.
func buildSnapshot(version uint64, records []ProductRecord, categories []string) *Snapshot {
	s := &Snapshot{
		version: version,
		byID:    make(map[string]*Product, len(records)),
		ids:     make([]string, 0, len(records)),
	}

	catSet := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if c != "" {
			catSet[c] = struct{}{}
		}
	}
	for i := range records {
		p := newProduct(records[i])
		s.byID[p.ID()] = p
		s.ids = append(s.ids, p.ID())
		catSet[p.Category()] = struct{}{}
	}
	sort.Strings(s.ids)

	s.categories = make([]string, 0, len(catSet))
	for c := range catSet {
		s.categories = append(s.categories, c)
	}
	sort.Strings(s.categories)
	return s
}
