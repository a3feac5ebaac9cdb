// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package engine

import (
	"errors"

	"github.com/tomtom215/catalogview/internal/cart"
	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/telemetry"
	"github.com/tomtom215/catalogview/internal/window"
)

var (
	// ErrUnknownProduct is returned for product ids absent from the catalog.
	ErrUnknownProduct = errors.New("unknown product")

	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("missing engine dependency")

	// ErrNoFeed is returned by Refresh when the engine has no upstream feed.
	ErrNoFeed = errors.New("no catalog feed configured")
)

// ErrorClass groups errors by how a caller should react to them.
type ErrorClass string

// Error classes.
const (
	ClassNone ErrorClass = ""

	// ClassIngest is a recoverable upstream feed failure. The previous
	// catalog stays in place.
	ClassIngest ErrorClass = "ingest"

	// ClassInvariant is a rejected mutation. Nothing was changed.
	ClassInvariant ErrorClass = "invariant"

	// ClassValidation is a malformed request.
	ClassValidation ErrorClass = "validation"

	// ClassAsset is a failed thumbnail fetch. The UI shows a placeholder.
	ClassAsset ErrorClass = "asset"

	ClassInternal ErrorClass = "internal"
)

// Classify maps err to its ErrorClass.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	var verr *telemetry.ValidationError
	switch {
	case errors.Is(err, catalog.ErrIngest), errors.Is(err, ErrNoFeed):
		return ClassIngest
	case errors.Is(err, catalog.ErrDuplicateID),
		errors.Is(err, catalog.ErrInvalidRecord),
		errors.Is(err, cart.ErrNotInCart),
		errors.Is(err, ErrUnknownProduct):
		return ClassInvariant
	case errors.Is(err, cart.ErrEmptyProductID), errors.As(err, &verr):
		return ClassValidation
	case errors.Is(err, window.ErrAssetFetch):
		return ClassAsset
	default:
		return ClassInternal
	}
}
