// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/catalogview/internal/logging"
	"github.com/tomtom215/catalogview/internal/window"
)

// WindowRequest describes the viewport over the current view.
type WindowRequest struct {
	Top        float64 `json:"top" validate:"finite"`
	Height     float64 `json:"height" validate:"finite"`
	ItemHeight float64 `json:"item_height" validate:"finite"` // 0 uses the configured height

	// Wait blocks until the window's thumbnails are fetched.
	Wait bool `json:"wait"`
}

// WindowResponse is the scheduled window and, when the request waited,
// the outcome of the thumbnail fetch.
type WindowResponse struct {
	window.Window
	AssetError string `json:"asset_error,omitempty"`
}

// AssetStatus describes one cached thumbnail.
type AssetStatus struct {
	ProductID  string        `json:"product_id"`
	Status     window.Status `json:"status"`
	LastAccess uint64        `json:"last_access,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Window computes the visible range for a viewport and fetches its
// thumbnails. Invalid geometry yields an empty window.
func (h *Handler) Window(w http.ResponseWriter, r *http.Request) {
	var req WindowRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ItemHeight == 0 {
		req.ItemHeight = h.cfg.ItemHeight
	}
	win := h.engine.ComputeWindow(req.Top, req.Height, req.ItemHeight)
	ids := make([]string, 0, len(win.VisibleIDs)+len(win.PrefetchIDs))
	ids = append(ids, win.VisibleIDs...)
	ids = append(ids, win.PrefetchIDs...)

	resp := WindowResponse{Window: win}
	if len(ids) > 0 {
		if req.Wait {
			if err := h.engine.EnsureAssets(r.Context(), ids); err != nil {
				resp.AssetError = err.Error()
			}
		} else {
			h.fetchAssetsAsync(r.Context(), ids)
		}
	}

	respondOK(w, r, resp)
}

// fetchAssetsAsync fetches ids after the response is written. A later
// window move cancels fetches that fall out of range.
func (h *Handler) fetchAssetsAsync(parent context.Context, ids []string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.cfg.AssetTimeout)
	go func() {
		defer cancel()
		if err := h.engine.EnsureAssets(ctx, ids); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Int("ids", len(ids)).Msg("Background asset fetch incomplete")
		}
	}()
}

// Asset reports the cache status of a product thumbnail.
func (h *Handler) Asset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.engine.Product(id); err != nil {
		respondEngineError(w, r, err)
		return
	}

	asset, status := h.engine.Asset(id)
	out := AssetStatus{ProductID: id, Status: status, LastAccess: asset.LastAccess}
	if asset.Err != nil {
		out.Error = asset.Err.Error()
	}
	respondOK(w, r, out)
}

// AssetImage serves the raw bytes of a resident thumbnail.
func (h *Handler) AssetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asset, status := h.engine.Asset(id)
	if status != window.StatusResident {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Thumbnail not cached", nil)
		return
	}

	thumb, ok := asset.Handle.(*window.Thumbnail)
	if !ok {
		respondError(w, r, http.StatusNotAcceptable, ErrCodeBadRequest, "Thumbnail has no raw image", nil)
		return
	}

	contentType := thumb.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(thumb.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(thumb.Data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write thumbnail")
	}
}
