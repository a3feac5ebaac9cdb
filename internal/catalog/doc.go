// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package catalog provides the versioned product store.

A Store always holds exactly one immutable Snapshot. Replace validates the
complete record set (field rules plus id uniqueness) before anything is
committed, then swaps in a new Snapshot with the next version number.
Readers never see a partially loaded catalog.

	store := catalog.NewStore(breaker, logger)
	snap, err := store.Refresh(ctx, catalog.NewHTTPFeed(url, 30*time.Second))
	if errors.Is(err, catalog.ErrIngest) {
	    // the previous snapshot is still current
	}

Feeds:
  - HTTPFeed reads JSON from an upstream service
  - GeneratedFeed produces a deterministic synthetic catalog

Archive keeps the last good snapshot in BadgerDB for warm restarts.
*/
package catalog
