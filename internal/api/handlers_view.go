// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"net/http"

	"github.com/tomtom215/catalogview/internal/derive"
)

// ViewItem is one entry of a view page.
type ViewItem struct {
	Position int     `json:"position"`
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Score    float64 `json:"score"`
	InCart   int     `json:"in_cart,omitempty"`
}

// ViewPage is the body of the view endpoint.
type ViewPage struct {
	Inputs  derive.Inputs    `json:"inputs"`
	Key     derive.RecipeKey `json:"key"`
	Metrics derive.Metrics   `json:"metrics"`
	Items   []ViewItem       `json:"items"`
}

// SearchRequest sets the search term.
type SearchRequest struct {
	Term string `json:"term" validate:"max=256"`

	// Flush applies the term immediately instead of after the debounce period.
	Flush bool `json:"flush"`
}

// CategoryRequest selects a category filter.
type CategoryRequest struct {
	Category string `json:"category" validate:"max=256"`
}

// View returns one page of the current derived view.
//
// Query parameters: offset (default 0), limit (default DefaultPageSize,
// capped at MaxPageSize).
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	offset := getIntParam(r, "offset", 0)
	limit := getIntParam(r, "limit", h.cfg.DefaultPageSize)
	if offset < 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "offset must be non-negative", nil)
		return
	}
	if limit <= 0 {
		limit = h.cfg.DefaultPageSize
	}
	if limit > h.cfg.MaxPageSize {
		limit = h.cfg.MaxPageSize
	}

	state := h.engine.View()
	cartState := h.engine.Cart()
	view := state.View

	// clamp before adding so a huge offset cannot overflow
	if offset > view.Len() {
		offset = view.Len()
	}
	end := offset + min(limit, view.Len()-offset)

	items := make([]ViewItem, 0, limit)
	for i := offset; i < end; i++ {
		id := view.At(i)
		item := ViewItem{Position: i, ID: id, Score: view.ScoreAt(i), InCart: cartState.Quantity(id)}
		if rec, err := h.engine.Product(id); err == nil {
			item.Name = rec.Name
			item.Category = rec.Category
			item.Price = rec.Price
		}
		items = append(items, item)
	}

	meta := newMetadata(r)
	meta.Pagination = &Pagination{
		Total:   view.Len(),
		Count:   len(items),
		Offset:  offset,
		Limit:   limit,
		HasMore: end < view.Len(),
	}
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: ViewPage{
			Inputs:  state.Inputs,
			Key:     view.Key(),
			Metrics: state.Metrics,
			Items:   items,
		},
		Metadata: meta,
	})
}

// Search schedules a new search term. The view updates after the debounce
// period unless flush is set.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.engine.SetSearchTerm(req.Term)
	applied := false
	if req.Flush {
		applied = h.engine.FlushSearch()
	}

	respondOK(w, r, map[string]interface{}{
		"term":    req.Term,
		"applied": applied,
		"inputs":  h.engine.Inputs(),
	})
}

// SelectCategory applies a category filter. Empty or "all" clears it.
func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.engine.SelectCategory(req.Category)
	respondOK(w, r, map[string]interface{}{"inputs": h.engine.Inputs()})
}
