// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/catalogview/config.yaml",
	"/etc/catalogview/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			FeedURL:         "", // Generated catalog when no upstream feed is configured
			FeedTimeout:     10 * time.Second,
			RefreshInterval: 5 * time.Minute,
			ArchivePath:     "",
			GeneratedSize:   100,
			GeneratedSeed:   1,
		},
		Telemetry: TelemetryConfig{
			Capacity:       500,
			RollupEvery:    50,
			RollupInterval: 2 * time.Second,
			ScoringWindow:  100,
		},
		Pipeline: PipelineConfig{
			SearchDebounce:     250 * time.Millisecond,
			CartCategoryWeight: 20,
			CartTagWeight:      15,
			ViewWeight:         10,
			RelatedPriceDelta:  50,
		},
		Window: WindowConfig{
			ItemHeight:       150,
			PrefetchMargin:   5,
			AssetCapacity:    200,
			FetchConcurrency: 8,
			FetchTimeout:     15 * time.Second,
		},
		Sink: SinkConfig{
			Enabled:        false,
			Topic:          "catalog.analytics",
			QueueSize:      1024,
			RatePerSecond:  200,
			Burst:          50,
			MaxFieldLength: 256,
			Kinds:          []string{},
		},
		Server: ServerConfig{
			Port:            8480,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// TELEMETRY_CAPACITY -> telemetry.capacity
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"sink.kinds",
	"server.cors_origins",
}

// processSliceFields converts comma-separated env values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Catalog
	"catalog_feed_url":         "catalog.feed_url",
	"catalog_feed_timeout":     "catalog.feed_timeout",
	"catalog_refresh_interval": "catalog.refresh_interval",
	"catalog_archive_path":     "catalog.archive_path",
	"catalog_generated_size":   "catalog.generated_size",
	"catalog_generated_seed":   "catalog.generated_seed",

	// Telemetry
	"telemetry_capacity":        "telemetry.capacity",
	"telemetry_rollup_every":    "telemetry.rollup_every",
	"telemetry_rollup_interval": "telemetry.rollup_interval",
	"telemetry_scoring_window":  "telemetry.scoring_window",

	// Pipeline
	"search_debounce":      "pipeline.search_debounce",
	"cart_category_weight": "pipeline.cart_category_weight",
	"cart_tag_weight":      "pipeline.cart_tag_weight",
	"view_weight":          "pipeline.view_weight",
	"related_price_delta":  "pipeline.related_price_delta",

	// Render window
	"window_item_height":      "window.item_height",
	"window_prefetch_margin":  "window.prefetch_margin",
	"asset_cache_capacity":    "window.asset_capacity",
	"asset_fetch_concurrency": "window.fetch_concurrency",
	"asset_fetch_timeout":     "window.fetch_timeout",

	// Sink
	"sink_enabled":          "sink.enabled",
	"sink_topic":            "sink.topic",
	"sink_queue_size":       "sink.queue_size",
	"sink_rate_per_second":  "sink.rate_per_second",
	"sink_burst":            "sink.burst",
	"sink_max_field_length": "sink.max_field_length",
	"sink_kinds":            "sink.kinds",
	"sink_nats_url":         "sink.nats_url",
	"sink_nats_jetstream":   "sink.nats_jetstream",

	// Server
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"cors_origins":        "server.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - TELEMETRY_CAPACITY -> telemetry.capacity
//   - SEARCH_DEBOUNCE -> pipeline.search_debounce
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Unmapped keys are skipped so unrelated environment variables never pollute config.
	return ""
}
