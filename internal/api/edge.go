// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// signalBudgetFactor scales the per-client budget for POST /signals, since
// collaborators report every event they observe.
const signalBudgetFactor = 10

// EdgePolicy configures the protections applied before any handler runs.
type EdgePolicy struct {
	// Origins allowed by CORS. Empty allows none; "*" allows all.
	Origins []string

	// Requests per Window per client. Zero in either disables limiting.
	Requests int
	Window   time.Duration

	// ClientKey identifies a client for limiting. Defaults to the remote IP.
	ClientKey httprate.KeyFunc
}

// DefaultEdgePolicy allows no cross-origin callers and 100 requests a minute.
func DefaultEdgePolicy() EdgePolicy {
	return EdgePolicy{Requests: 100, Window: time.Minute}
}

// EdgePolicyFromServer reads the policy from the server section.
func EdgePolicyFromServer(cfg config.ServerConfig) EdgePolicy {
	return EdgePolicy{
		Origins:  cfg.CORSOrigins,
		Requests: cfg.RateLimitReqs,
		Window:   cfg.RateLimitWindow,
	}
}

// Edge builds the middleware for an EdgePolicy.
type Edge struct {
	policy EdgePolicy
	cors   func(http.Handler) http.Handler
}

func NewEdge(policy EdgePolicy) *Edge {
	if policy.ClientKey == nil {
		policy.ClientKey = httprate.KeyByIP
	}
	return &Edge{
		policy: policy,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: policy.Origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         int((24 * time.Hour).Seconds()),
		}),
	}
}

// CORS answers preflights and tags responses for allowed origins.
func (e *Edge) CORS() func(http.Handler) http.Handler { return e.cors }

// Limit enforces factor times the policy's per-client budget.
func (e *Edge) Limit(factor int) func(http.Handler) http.Handler {
	n := e.policy.Requests * factor
	if n <= 0 || e.policy.Window <= 0 {
		return passThrough
	}
	return httprate.Limit(n, e.policy.Window,
		httprate.WithKeyFuncs(e.policy.ClientKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondFailure(w, r, http.StatusTooManyRequests, &models.ErrorBody{Code: CodeRateLimited, Message: "Too many requests"})
		}),
	)
}

func passThrough(next http.Handler) http.Handler { return next }

// securityHeaders sets response headers for the JSON endpoints. HSTS is sent
// only over TLS, directly or via a terminating proxy.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
