// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package metrics provides Prometheus metrics collection and export for observability.

Collectors are registered on the default registry through promauto and are
updated by the engine components directly or through the Record helpers.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8480/metrics

# Available Metrics

Product store:
  - catalog_snapshot_version, catalog_products, catalog_ingest_total{result}

Telemetry bus:
  - telemetry_events_total{kind}, telemetry_evictions_total
  - telemetry_subscriber_failures_total, telemetry_window_version

Derivation pipeline:
  - pipeline_recomputes_total, pipeline_recompute_duration_seconds
  - pipeline_faults_total, cache_hits_total{cache_type="view_memo"}

Render window:
  - cache_entries{cache_type="asset"}, cache_evictions_total{cache_type="asset"}
  - asset_fetch_total{result}, render_window_generation

Sink, API and resilience:
  - sink_records_delivered_total, sink_records_dropped_total{reason}
  - api_requests_total, api_request_duration_seconds
  - circuit_breaker_state, circuit_breaker_requests_total
*/
package metrics
