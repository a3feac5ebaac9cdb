// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package websocket pushes view change notifications to connected UIs.

A Hub owns the set of clients and fans out messages in client id order.
Each Client runs a read pump, which answers application-level pings, and
a write pump, which sends queued messages and keepalive pings. A client
whose send buffer is full is dropped rather than blocking the hub.

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx)

	hub.BroadcastViewChanged(websocket.ViewChangedData{CatalogVersion: 3, Count: 42})

Message types:

  - view_changed: the derived view was recomputed (versions, inputs, count)
  - ping / pong: application keepalive initiated by the client
*/
package websocket
