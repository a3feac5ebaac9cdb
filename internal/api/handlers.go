// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"time"

	"github.com/tomtom215/catalogview/internal/engine"
	ws "github.com/tomtom215/catalogview/internal/websocket"
)

// HandlerConfig tunes request handling.
type HandlerConfig struct {
	// DefaultPageSize is used when a view request has no limit.
	DefaultPageSize int

	// MaxPageSize caps the limit of a view request.
	MaxPageSize int

	// AssetTimeout bounds the background thumbnail fetch started by a
	// window request.
	AssetTimeout time.Duration

	// HeadSize is the number of leading ids included in view_changed broadcasts.
	HeadSize int

	// ItemHeight is used by window requests that omit item_height.
	ItemHeight float64
}

// DefaultHandlerConfig returns the default handler configuration.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		DefaultPageSize: 50,
		MaxPageSize:     500,
		AssetTimeout:    30 * time.Second,
		HeadSize:        20,
		ItemHeight:      150,
	}
}

// Handler serves the engine over HTTP.
//
// Handler methods are split across files by resource:
//   - handlers_health.go: liveness and readiness
//   - handlers_view.go: derived view, search and category filter
//   - handlers_catalog.go: products, related products, categories, refresh
//   - handlers_cart.go: cart mutations and summary
//   - handlers_events.go: telemetry publishing and recent events
//   - handlers_window.go: render window and thumbnail assets
//   - handlers_websocket.go: realtime view_changed stream
type Handler struct {
	engine    *engine.Engine
	wsHub     *ws.Hub
	mw        *ChiMiddleware
	cfg       HandlerConfig
	startTime time.Time
}

// NewHandler creates a handler. hub may be nil, in which case the realtime
// endpoint reports the service as unavailable.
func NewHandler(eng *engine.Engine, hub *ws.Hub, mw *ChiMiddleware, cfg HandlerConfig) *Handler {
	def := DefaultHandlerConfig()
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = def.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = def.MaxPageSize
	}
	if cfg.AssetTimeout <= 0 {
		cfg.AssetTimeout = def.AssetTimeout
	}
	if cfg.HeadSize <= 0 {
		cfg.HeadSize = def.HeadSize
	}
	if cfg.ItemHeight <= 0 {
		cfg.ItemHeight = def.ItemHeight
	}
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Handler{
		engine:    eng,
		wsHub:     hub,
		mw:        mw,
		cfg:       cfg,
		startTime: time.Now(),
	}
}
