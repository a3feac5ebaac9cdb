// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/catalogview/internal/middleware"
)

// Router builds the HTTP route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router for handler. A nil mw uses the handler's.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = handler.mw
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())

		// websocket upgrades bypass metrics and compression wrappers
		r.Get("/ws", router.handler.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware(middleware.PrometheusMetrics))
			r.Use(chimiddleware.Compress(5, "application/json"))

			r.Get("/view", router.handler.View)
			r.Post("/search", router.handler.Search)
			r.Post("/category", router.handler.SelectCategory)

			r.Get("/categories", router.handler.Categories)
			r.Get("/products/{id}", router.handler.Product)
			r.Get("/products/{id}/related", router.handler.Related)
			r.Post("/catalog/refresh", router.handler.Refresh)

			r.Get("/cart", router.handler.Cart)
			r.Delete("/cart", router.handler.ClearCart)
			r.Post("/cart/items", router.handler.AddCartItem)
			r.Delete("/cart/items/{id}", router.handler.RemoveCartItem)

			r.Get("/events", router.handler.RecentEvents)
			r.Post("/events", router.handler.PublishEvent)

			r.Post("/window", router.handler.Window)
			r.Get("/assets/{id}", router.handler.Asset)
			r.Get("/assets/{id}/image", router.handler.AssetImage)

			r.Get("/stats", router.handler.Stats)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}
