// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

// Package logging provides centralized zerolog-based structured logging for Catalogview.
//
// The package owns the single process-wide logger. Every engine component
// receives a zerolog.Logger through its constructor; the global logger exists
// for the binary, the supervisor tree, and adapters that need one.
//
// # Overview
//
// The package provides:
//   - JSON output for production and console output for development
//   - Component loggers via WithComponent
//   - Context-aware logging with correlation ID propagation
//   - An slog.Handler adapter for sutureslog
//   - A watermill.LoggerAdapter for the analytics sink publisher
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Uint64("catalog_version", v).Msg("Catalog replaced")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Feed refresh failed")
//
// # Configuration
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller info (default: false)
//
// Always terminate log chains with .Msg() or .Send().
package logging
