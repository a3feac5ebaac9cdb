// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package api serves the catalog engine over HTTP using the Chi router.

# Routes

	GET    /api/v1/health             overall status
	GET    /api/v1/health/live        liveness probe
	GET    /api/v1/health/ready       503 until a catalog is loaded
	GET    /api/v1/view               page of the derived view (offset, limit)
	POST   /api/v1/search             {"term": "...", "flush": false}
	POST   /api/v1/category           {"category": "..."}; "" or "all" clears
	GET    /api/v1/categories
	GET    /api/v1/products/{id}
	GET    /api/v1/products/{id}/related
	POST   /api/v1/catalog/refresh
	GET    /api/v1/cart               cart summary
	DELETE /api/v1/cart               clear
	POST   /api/v1/cart/items         {"product_id": "..."}
	DELETE /api/v1/cart/items/{id}    remove one unit
	GET    /api/v1/events             recent telemetry (n)
	POST   /api/v1/events             publish an interaction event
	POST   /api/v1/window             viewport -> visible and prefetch ids
	GET    /api/v1/assets/{id}        thumbnail cache status
	GET    /api/v1/assets/{id}/image  cached thumbnail bytes
	GET    /api/v1/stats              component counters
	GET    /api/v1/ws                 realtime view_changed stream
	GET    /metrics                   Prometheus

# Responses

Every JSON response uses the same envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "...", "request_id": "..."}}
	{"status": "error", "error": {"code": "NOT_FOUND", "message": "..."}, "metadata": {...}}

Engine errors map to status codes by class: validation 400, unknown product
404, other invariant violations 409, feed failures 502, missing feed 503.

# Middleware

Request IDs, real IP extraction, panic recovery and CORS apply to every
route. API routes add per-IP rate limiting (go-chi/httprate), Prometheus
instrumentation and gzip for JSON.
*/
package api
