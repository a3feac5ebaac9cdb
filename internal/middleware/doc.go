// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package middleware provides HTTP middleware for the Catalogview API.

  - RequestID: UUID request IDs propagated to the logging context
  - PrometheusMetrics: request count, latency and in-flight gauge

Both are written as http.HandlerFunc decorators and adapted to chi's
func(http.Handler) http.Handler form by the api package:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

Metrics are labeled with the chi route pattern, so path parameters do not
create one series per product.
*/
package middleware
