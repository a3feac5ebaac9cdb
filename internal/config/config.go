// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Catalog    CatalogConfig    `koanf:"catalog"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Window     WindowConfig     `koanf:"window"`
	Sink       SinkConfig       `koanf:"sink"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// CatalogConfig controls the product store and its upstream feed.
type CatalogConfig struct {
	// FeedURL is the base URL of the upstream catalog feed.
	// Empty selects the built-in generated catalog.
	FeedURL string `koanf:"feed_url"`

	// FeedTimeout bounds a single feed request.
	FeedTimeout time.Duration `koanf:"feed_timeout"`

	// RefreshInterval is how often the catalog is reloaded from the feed.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// ArchivePath is the BadgerDB directory holding the last good snapshot.
	// Empty disables the archive.
	ArchivePath string `koanf:"archive_path"`

	// GeneratedSize and GeneratedSeed drive the built-in catalog generator.
	GeneratedSize int   `koanf:"generated_size"`
	GeneratedSeed int64 `koanf:"generated_seed"`
}

// TelemetryConfig controls the telemetry bus.
type TelemetryConfig struct {
	// Capacity is the fixed ring buffer size.
	Capacity int `koanf:"capacity"`

	// RollupEvery bumps the window version after this many events.
	RollupEvery int `koanf:"rollup_every"`

	// RollupInterval bumps the window version on a timer when events arrived.
	RollupInterval time.Duration `koanf:"rollup_interval"`

	// ScoringWindow is how many recent events a frozen window holds.
	ScoringWindow int `koanf:"scoring_window"`
}

// PipelineConfig controls the derivation pipeline.
type PipelineConfig struct {
	// SearchDebounce is the quiet period before a search term is applied.
	SearchDebounce time.Duration `koanf:"search_debounce"`

	CartCategoryWeight float64 `koanf:"cart_category_weight"`
	CartTagWeight      float64 `koanf:"cart_tag_weight"`
	ViewWeight         float64 `koanf:"view_weight"`

	// RelatedPriceDelta bounds the price difference for related products.
	RelatedPriceDelta float64 `koanf:"related_price_delta"`
}

// WindowConfig controls the render window scheduler.
type WindowConfig struct {
	ItemHeight       float64       `koanf:"item_height"`
	PrefetchMargin   int           `koanf:"prefetch_margin"`
	AssetCapacity    int           `koanf:"asset_capacity"`
	FetchConcurrency int           `koanf:"fetch_concurrency"`
	FetchTimeout     time.Duration `koanf:"fetch_timeout"`
}

// SinkConfig controls the analytics sink forwarder.
type SinkConfig struct {
	Enabled bool `koanf:"enabled"`

	// Topic is the watermill topic records are published on.
	Topic string `koanf:"topic"`

	// QueueSize bounds records buffered between the bus and the sink.
	QueueSize int `koanf:"queue_size"`

	// RatePerSecond limits deliveries; 0 disables limiting.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`

	// MaxFieldLength truncates flattened string fields.
	MaxFieldLength int `koanf:"max_field_length"`

	// Kinds restricts forwarded event kinds; empty forwards all.
	Kinds []string `koanf:"kinds"`

	// NATSURL publishes records to an external NATS server instead of the
	// in-process channel.
	NATSURL       string `koanf:"nats_url"`
	NATSJetStream bool   `koanf:"nats_jetstream"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int           `koanf:"port"`
	Host              string        `koanf:"host"`
	Timeout           time.Duration `koanf:"timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig holds suture tree tuning.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}
