// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CartItemRequest adds one unit of a product.
type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"nonblank,max=256"`
}

// Cart returns the cart summary.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	respondOK(w, r, h.engine.CartSummary())
}

// AddCartItem adds one unit of a product.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.engine.AddToCart(req.ProductID); err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondOK(w, r, h.engine.CartSummary())
}

// RemoveCartItem removes one unit of a product.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.RemoveFromCart(chi.URLParam(r, "id")); err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondOK(w, r, h.engine.CartSummary())
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearCart()
	respondOK(w, r, h.engine.CartSummary())
}
