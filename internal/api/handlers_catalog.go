// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/catalogview/internal/catalog"
)

// ProductDetail is a catalog record with its derived figures.
type ProductDetail struct {
	catalog.ProductRecord
	DiscountPercent    int     `json:"discount_percent"`
	Savings            float64 `json:"savings"`
	AverageRating      float64 `json:"average_rating"`
	RatingDistribution [5]int  `json:"rating_distribution"`
	InCart             int     `json:"in_cart"`
}

// Product returns one catalog product.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Product(chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	respondOK(w, r, ProductDetail{
		ProductRecord:      rec,
		DiscountPercent:    rec.DiscountPercent(),
		Savings:            rec.Savings(),
		AverageRating:      rec.AverageRating(),
		RatingDistribution: rec.RatingDistribution(),
		InCart:             h.engine.Cart().Quantity(rec.ID),
	})
}

// Related returns the ids of products related to a product.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ids, err := h.engine.Related(id)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondOK(w, r, map[string]interface{}{"product_id": id, "related": ids})
}

// Categories lists the categories of the current catalog.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, map[string]interface{}{"categories": h.engine.Categories()})
}

// Refresh reloads the catalog from the feed. A failed refresh keeps the
// previous catalog.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Refresh(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondOK(w, r, map[string]interface{}{
		"version":    snap.Version(),
		"products":   snap.Len(),
		"categories": snap.Categories(),
	})
}

// Stats reports component counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, h.engine.Stats())
}
