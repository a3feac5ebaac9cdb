// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package config provides centralized configuration management for Catalogview.

Configuration is layered with Koanf v2: built-in defaults, then an optional
YAML file (CONFIG_PATH or config.yaml), then environment variables. Only the
environment variables listed in envMappings are read.

# Configuration Structure

  - CatalogConfig: upstream feed, refresh interval, snapshot archive
  - TelemetryConfig: ring capacity and window rollup cadence
  - PipelineConfig: search debounce and scoring weights
  - WindowConfig: item height, prefetch margin, asset cache capacity
  - SinkConfig: analytics forwarder queue, rate and field bounds
  - ServerConfig: HTTP boundary, rate limiting, CORS
  - LoggingConfig: zerolog level and format
  - SupervisorConfig: suture failure handling

# Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
*/
package config
