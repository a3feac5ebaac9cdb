// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"net/http"

	"github.com/tomtom215/catalogview/internal/telemetry"
)

// EventRequest is a UI interaction event. Sequence and timestamp are
// assigned by the bus.
type EventRequest struct {
	Kind      string  `json:"kind" validate:"nonblank"`
	ProductID string  `json:"product_id" validate:"max=256"`
	Query     string  `json:"query" validate:"max=256"`
	Category  string  `json:"category" validate:"max=256"`
	Quantity  int     `json:"quantity"`
	Offset    float64 `json:"offset" validate:"finite"`
	Detail    string  `json:"detail" validate:"max=1024"`
}

const defaultRecentEvents = 50

// PublishEvent records an interaction event.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ev, err := h.engine.Publish(telemetry.Event{
		Kind:      telemetry.Kind(req.Kind),
		ProductID: req.ProductID,
		Query:     req.Query,
		Category:  req.Category,
		Quantity:  req.Quantity,
		Offset:    req.Offset,
		Detail:    req.Detail,
	})
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondOK(w, r, ev)
}

// RecentEvents returns the newest events in sequence order.
// Query parameter n bounds the count (default 50).
func (h *Handler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	n := getIntParam(r, "n", defaultRecentEvents)
	if n <= 0 {
		n = defaultRecentEvents
	}
	events := h.engine.RecentEvents(n)
	respondOK(w, r, map[string]interface{}{"count": len(events), "events": events})
}
