// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package middleware provides the HTTP instrumentation shared by every route.

Key Components:

  - RequestID: reuses or creates X-Request-ID and makes it the logging
    correlation id, so an API call and the directive it produces share one id
  - PrometheusMetrics: request counts, latency and in-flight gauge, labeled by
    the chi route pattern rather than the raw path to keep cardinality bounded

Both are plain func(http.Handler) http.Handler and mount with chi's r.Use.
*/
package middleware
