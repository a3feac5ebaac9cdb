// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Product store snapshots and feed ingest
// - Telemetry bus throughput, evictions and subscriber failures
// - Derivation pipeline memo efficiency and recompute latency
// - Asset cache residency and thumbnail fetches
// - Analytics sink delivery
// - API endpoint latency and circuit breakers

var (
	// Product Store Metrics
	CatalogVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_snapshot_version",
			Help: "Version of the currently authoritative catalog snapshot",
		},
	)

	CatalogProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_products",
			Help: "Number of products in the current catalog snapshot",
		},
	)

	CatalogIngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_ingest_total",
			Help: "Total number of catalog ingest attempts",
		},
		[]string{"result"}, // "success", "rejected", "feed_error"
	)

	// Telemetry Bus Metrics
	TelemetryEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_total",
			Help: "Total number of events appended to the telemetry log",
		},
		[]string{"kind"},
	)

	TelemetryEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_evictions_total",
			Help: "Total number of events evicted from the telemetry ring",
		},
	)

	TelemetrySubscriberFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_subscriber_failures_total",
			Help: "Total number of subscriber handler errors and panics",
		},
	)

	TelemetryWindowVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_window_version",
			Help: "Current coarse telemetry window version used for scoring",
		},
	)

	TelemetrySubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_subscribers",
			Help: "Current number of telemetry subscriptions",
		},
	)

	// Derivation Pipeline Metrics
	PipelineRecomputes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_recomputes_total",
			Help: "Total number of view recomputations",
		},
	)

	PipelineRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_recompute_duration_seconds",
			Help:    "Duration of view recomputations in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	PipelineFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_faults_total",
			Help: "Total number of recomputations that faulted and kept the previous view",
		},
	)

	PipelineViewSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_view_size",
			Help: "Number of products in the most recently computed view",
		},
	)

	// Cache Metrics (General)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "view_memo", "asset"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of LRU evictions",
		},
		[]string{"cache_type"},
	)

	// Render Window Metrics
	AssetFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_fetch_total",
			Help: "Total number of thumbnail fetches by outcome",
		},
		[]string{"result"}, // "stored", "failed", "stale", "rejected"
	)

	WindowGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_window_generation",
			Help: "Current render window generation",
		},
	)

	// Analytics Sink Metrics
	SinkDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sink_records_delivered_total",
			Help: "Total number of analytics records delivered to the sink",
		},
	)

	SinkDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_records_dropped_total",
			Help: "Total number of analytics records dropped",
		},
		[]string{"reason"}, // "queue_full", "deliver_error"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages broadcast",
		},
	)
)

// RecordCatalogReplace records a committed snapshot.
func RecordCatalogReplace(version uint64, products int) {
	CatalogIngestTotal.WithLabelValues("success").Inc()
	CatalogVersion.Set(float64(version))
	CatalogProducts.Set(float64(products))
}

// RecordCatalogRejected records an ingest that failed before commit.
// feedError distinguishes upstream failures from invariant violations.
func RecordCatalogRejected(feedError bool) {
	if feedError {
		CatalogIngestTotal.WithLabelValues("feed_error").Inc()
		return
	}
	CatalogIngestTotal.WithLabelValues("rejected").Inc()
}

// RecordTelemetryEvent records one appended event and whether it evicted another.
func RecordTelemetryEvent(kind string, evicted bool) {
	TelemetryEventsTotal.WithLabelValues(kind).Inc()
	if evicted {
		TelemetryEvictions.Inc()
	}
}

// RecordRecompute records a pipeline recomputation.
func RecordRecompute(duration time.Duration, viewSize int) {
	PipelineRecomputes.Inc()
	PipelineRecomputeDuration.Observe(duration.Seconds())
	PipelineViewSize.Set(float64(viewSize))
	CacheMisses.WithLabelValues("view_memo").Inc()
}

// RecordMemoHit records a pipeline memo hit.
func RecordMemoHit() {
	CacheHits.WithLabelValues("view_memo").Inc()
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
