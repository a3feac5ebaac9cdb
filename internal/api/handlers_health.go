// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status         string  `json:"status"`
	CatalogVersion uint64  `json:"catalog_version"`
	Products       int     `json:"products"`
	Subscribers    int     `json:"subscribers"`
	WSClients      int     `json:"ws_clients"`
	Uptime         float64 `json:"uptime_seconds"`
}

// Health reports overall status. The service is degraded until the first
// catalog has been loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()

	status := "healthy"
	if stats.Catalog.Version == 0 {
		status = "degraded"
	}

	clients := 0
	if h.wsHub != nil {
		clients = h.wsHub.GetClientCount()
	}

	respondOK(w, r, HealthStatus{
		Status:         status,
		CatalogVersion: stats.Catalog.Version,
		Products:       stats.Catalog.Products,
		Subscribers:    stats.Telemetry.Subscribers,
		WSClients:      clients,
		Uptime:         time.Since(h.startTime).Seconds(),
	})
}

// HealthLive returns 200 while the process is alive.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 503 until a catalog has been committed.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.engine.Stats().Catalog.Version == 0 {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Catalog not loaded", nil)
		return
	}
	respondOK(w, r, map[string]interface{}{"ready": true})
}
