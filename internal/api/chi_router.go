// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/riskguard/internal/auth"
	"github.com/tomtom215/riskguard/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler *Handler
	edge    *Edge
	auth    *auth.Middleware
}

// NewRouter creates a router. A nil edge uses DefaultEdgePolicy; a nil auth
// middleware leaves the admin routes answering 503.
func NewRouter(handler *Handler, edge *Edge, authMW *auth.Middleware) *Router {
	if edge == nil {
		edge = NewEdge(DefaultEdgePolicy())
	}
	if authMW == nil {
		authMW = auth.NewMiddleware(nil)
	}
	return &Router{handler: handler, edge: edge, auth: authMW}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.edge.CORS()) // global so OPTIONS preflight is answered

	// ========================
	// Operational Endpoints
	// ========================
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// The upgrade needs the raw ResponseWriter, so the stream skips the
	// instrumented group.
	r.Get("/ws", h.WebSocket)

	// ========================
	// Engine API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(securityHeaders)
		r.Use(middleware.PrometheusMetrics)

		r.With(router.edge.Limit(signalBudgetFactor)).Post("/signals", h.RecordSignal)

		r.Group(func(r chi.Router) {
			r.Use(router.edge.Limit(1))

			r.Get("/subjects/{id}/assessment", h.SubjectAssessment)
			r.Get("/subjects/{id}/state", h.SubjectState)
			r.Get("/alerts/recent", h.RecentAlerts)

			// Admin: these change enforcement state
			r.Group(func(r chi.Router) {
				r.Use(router.auth.RequireRole(auth.RoleAdmin))

				r.Post("/subjects/{id}/recover", h.RecoverSubject)
				r.Post("/confirmations/{id}", h.ResolveConfirmation)
			})
		})
	})

	return r
}
