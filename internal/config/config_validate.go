// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/catalogview/internal/logging"
)

// Validate checks that configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateWindow(); err != nil {
		return err
	}
	if err := c.validateSink(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalog() error {
	if c.Catalog.FeedURL != "" {
		u, err := url.Parse(c.Catalog.FeedURL)
		if err != nil {
			return fmt.Errorf("CATALOG_FEED_URL is invalid: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("CATALOG_FEED_URL must use http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("CATALOG_FEED_URL must include a host")
		}
	} else if c.Catalog.GeneratedSize < 0 {
		return fmt.Errorf("CATALOG_GENERATED_SIZE must be non-negative, got %d", c.Catalog.GeneratedSize)
	}
	if c.Catalog.RefreshInterval < time.Second {
		return fmt.Errorf("CATALOG_REFRESH_INTERVAL must be at least 1s, got %v", c.Catalog.RefreshInterval)
	}
	if c.Catalog.FeedTimeout <= 0 {
		return fmt.Errorf("CATALOG_FEED_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	t := c.Telemetry
	if t.Capacity < 1 {
		return fmt.Errorf("TELEMETRY_CAPACITY must be at least 1, got %d", t.Capacity)
	}
	if t.RollupEvery < 1 {
		return fmt.Errorf("TELEMETRY_ROLLUP_EVERY must be at least 1, got %d", t.RollupEvery)
	}
	if t.RollupInterval <= 0 {
		return fmt.Errorf("TELEMETRY_ROLLUP_INTERVAL must be positive")
	}
	if t.ScoringWindow < 0 || t.ScoringWindow > t.Capacity {
		return fmt.Errorf("TELEMETRY_SCORING_WINDOW must be between 0 and capacity (%d), got %d", t.Capacity, t.ScoringWindow)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if p.SearchDebounce < 0 {
		return fmt.Errorf("SEARCH_DEBOUNCE must be non-negative")
	}
	if p.CartCategoryWeight < 0 || p.CartTagWeight < 0 || p.ViewWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if p.RelatedPriceDelta <= 0 {
		return fmt.Errorf("RELATED_PRICE_DELTA must be positive")
	}
	return nil
}

func (c *Config) validateWindow() error {
	w := c.Window
	if w.ItemHeight <= 0 {
		return fmt.Errorf("WINDOW_ITEM_HEIGHT must be positive, got %v", w.ItemHeight)
	}
	if w.PrefetchMargin < 0 {
		return fmt.Errorf("WINDOW_PREFETCH_MARGIN must be non-negative, got %d", w.PrefetchMargin)
	}
	if w.AssetCapacity < 1 {
		return fmt.Errorf("ASSET_CACHE_CAPACITY must be at least 1, got %d", w.AssetCapacity)
	}
	if w.FetchConcurrency < 1 {
		return fmt.Errorf("ASSET_FETCH_CONCURRENCY must be at least 1, got %d", w.FetchConcurrency)
	}
	return nil
}

var validEventKinds = map[string]bool{
	"search": true, "categorySelect": true, "productView": true,
	"scroll": true, "cartChange": true, "error": true,
}

func (c *Config) validateSink() error {
	s := c.Sink
	if !s.Enabled {
		return nil
	}
	if strings.TrimSpace(s.Topic) == "" {
		return fmt.Errorf("SINK_TOPIC is required when SINK_ENABLED=true")
	}
	if s.QueueSize < 1 {
		return fmt.Errorf("SINK_QUEUE_SIZE must be at least 1, got %d", s.QueueSize)
	}
	if s.RatePerSecond < 0 {
		return fmt.Errorf("SINK_RATE_PER_SECOND must be non-negative")
	}
	if s.MaxFieldLength < 1 {
		return fmt.Errorf("SINK_MAX_FIELD_LENGTH must be at least 1, got %d", s.MaxFieldLength)
	}
	for _, k := range s.Kinds {
		if !validEventKinds[k] {
			return fmt.Errorf("SINK_KINDS contains unknown event kind %q", k)
		}
	}
	if s.NATSURL != "" {
		u, err := url.Parse(s.NATSURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("SINK_NATS_URL must be a valid URL, got %q", s.NATSURL)
		}
		switch u.Scheme {
		case "nats", "tls", "ws", "wss":
		default:
			return fmt.Errorf("SINK_NATS_URL scheme must be nats, tls, ws or wss, got %q", u.Scheme)
		}
	}
	if s.NATSJetStream && s.NATSURL == "" {
		return fmt.Errorf("SINK_NATS_JETSTREAM requires SINK_NATS_URL")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !c.Server.RateLimitDisabled && c.Server.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1 when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
