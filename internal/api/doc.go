// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package api exposes the engine over HTTP with the chi router.

Routes:

	POST /api/v1/signals                     record a signal, returns the outcome
	                                         (?async=true queues it and returns 202)
	GET  /api/v1/subjects/{id}/assessment    score without touching state
	GET  /api/v1/subjects/{id}/state         escalation state snapshot
	POST /api/v1/subjects/{id}/recover       manual recovery (admin)
	POST /api/v1/confirmations/{id}          {"approve": bool} (admin)
	GET  /api/v1/alerts/recent?limit=N       dashboard alert feed
	GET  /ws                                 dashboard WebSocket stream
	GET  /metrics                            Prometheus exposition
	GET  /healthz                            liveness and engine counters

Middleware, outermost first: request id and correlation id, real IP, panic
recovery, CORS, then per group httprate limiting, security headers and
Prometheus instrumentation. Admin routes also pass auth.Middleware.

Every JSON response uses the models.Response envelope.
*/
package api
