// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/catalogview/internal/engine"
	"github.com/tomtom215/catalogview/internal/logging"
	ws "github.com/tomtom215/catalogview/internal/websocket"
)

// WebSocket upgrades the connection and registers it with the hub. Clients
// receive a view_changed message after every recomputed view.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts only origins in the CORS allow list.
// Browsers always send Origin, so a missing header is rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	if h.mw.AllowsOrigin(origin) {
		return true
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// StartRealtime broadcasts a view_changed message for every new view. The
// returned function stops the broadcasts.
func (h *Handler) StartRealtime() (stop func()) {
	if h.wsHub == nil {
		return func() {}
	}
	return h.engine.OnViewChanged(func(state engine.ViewState) {
		key := state.View.Key()
		h.wsHub.BroadcastViewChanged(ws.ViewChangedData{
			CatalogVersion: key.CatalogVersion,
			CartVersion:    key.CartVersion,
			WindowVersion:  key.WindowVersion,
			SearchTerm:     state.Inputs.SearchTerm,
			Category:       state.Inputs.Category,
			Count:          state.View.Len(),
			Head:           state.View.Slice(0, h.cfg.HeadSize),
		})
	})
}
