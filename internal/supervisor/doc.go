// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package supervisor provides process supervision for Catalogview using suture v4.

# Overview

Long-running work is organized into three layers that restart
independently:

	RootSupervisor ("catalogview")
	├── IngestSupervisor ("ingest-layer")
	│   ├── CatalogRefreshService
	│   └── WindowRollupService
	├── DeliverySupervisor ("delivery-layer")
	│   ├── WebSocketHubService
	│   └── SinkForwarderService (if sink.enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A feed outage that keeps crashing the refresh loop never takes down the
HTTP server, and a stuck websocket client never stalls catalog refresh.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddIngestService(services.NewRefreshService(eng, services.RefreshServiceConfig{Interval: cfg.Catalog.RefreshInterval}, logger))
	tree.AddDeliveryService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Past FailureThreshold the supervisor waits FailureBackoff before the next
restart. Services return suture.ErrDoNotRestart when restarting cannot help.

# Shutdown

Canceling the context stops every layer. Services that do not return
within ShutdownTimeout are listed by UnstoppedServiceReport.
*/
package supervisor
