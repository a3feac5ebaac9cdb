// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package services provides suture.Service wrappers for Catalogview components.

Each wrapper translates a component's lifecycle (ListenAndServe, Run, a
periodic tick) into suture's context-aware Serve pattern and identifies
itself through fmt.Stringer for supervisor logs.

# Available Services

HTTPServerService wraps the API server. Canceling the context triggers a
graceful Shutdown bounded by the configured timeout.

WebSocketHubService runs the realtime hub's event loop.

RefreshService reloads the catalog from its feed on an interval. Feed
errors are logged and retried; the previous catalog stays in place. An
engine without a feed returns suture.ErrDoNotRestart.

RollupService bumps the telemetry window on a timer.

SinkForwarderService drains the analytics forwarder. A closed forwarder
returns suture.ErrDoNotRestart.

# Usage

	tree.AddIngestService(services.NewRefreshService(eng, services.RefreshServiceConfig{
	    RefreshOnStartup: true,
	    Interval:         cfg.Catalog.RefreshInterval,
	}, logger))
	tree.AddDeliveryService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
*/
package services
