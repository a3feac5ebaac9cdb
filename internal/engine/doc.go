// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package engine is the UI boundary of the catalog derivation engine.

An Engine owns the cart ledger, the derivation pipeline and the render
window scheduler, and connects them to a product store and a telemetry bus
supplied by the caller:

	eng, err := engine.New(engine.Deps{
	    Store: store,
	    Bus:   bus,
	    Codec: window.NewHTTPCodec(15*time.Second, 0),
	    Feed:  feed,
	}, engine.DefaultConfig(), logger)

Search terms pass through a debouncer, so a burst of keystrokes causes one
recomputation. Category changes apply immediately. The engine subscribes to
every bus event; when a cart change or a window bump alters the recipe key
of the current inputs, the view is recomputed once and handed to the
functions registered with OnViewChanged.

Errors returned by the engine wrap package sentinels. Classify groups them
into ingest, invariant, validation, asset and internal classes.
*/
package engine
