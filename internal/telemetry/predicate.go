// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package telemetry

// Predicate selects the events a subscriber receives.
type Predicate func(Event) bool

// Handler receives events accepted by its predicate. It runs on the
// publisher's goroutine and must not block.
type Handler func(Event) error

// All accepts every event.
func All() Predicate {
	return func(Event) bool { return true }
}

// Kinds accepts events of the listed kinds.
func Kinds(kinds ...Kind) Predicate {
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(e Event) bool {
		_, ok := set[e.Kind]
		return ok
	}
}

// ForProduct accepts events about a single product.
func ForProduct(id string) Predicate {
	return func(e Event) bool { return e.ProductID == id }
}

// And accepts events every predicate accepts.
func And(preds ...Predicate) Predicate {
	return func(e Event) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}
