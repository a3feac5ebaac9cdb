// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package telemetry

import (
	"fmt"
	"time"
)

// Kind identifies the type of an interaction event.
type Kind string

// Event kinds.
const (
	KindSearch         Kind = "search"
	KindCategorySelect Kind = "categorySelect"
	KindProductView    Kind = "productView"
	KindScroll         Kind = "scroll"
	KindCartChange     Kind = "cartChange"
	KindError          Kind = "error"
)

var allKinds = []Kind{
	KindSearch,
	KindCategorySelect,
	KindProductView,
	KindScroll,
	KindCartChange,
	KindError,
}

// AllKinds returns every valid event kind.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is a single interaction or diagnostic event.
//
// Payload fields are flat values so an event never references the log it
// was stored in. Only the fields relevant to the kind are set.
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	ProductID string  `json:"product_id,omitempty"`
	Query     string  `json:"query,omitempty"`
	Category  string  `json:"category,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	Offset    float64 `json:"offset,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

// ValidationError describes an event rejected by Validate.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// Validate checks that the event is publishable.
func (e *Event) Validate() error {
	if !e.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", e.Kind)}
	}
	if e.Kind == KindProductView && e.ProductID == "" {
		return &ValidationError{Field: "product_id", Message: "required for productView"}
	}
	return nil
}
