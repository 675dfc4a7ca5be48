// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/riskguard/internal/engine"
)

// HealthStatus is the /healthz body.
type HealthStatus struct {
	Status           string       `json:"status"`
	UptimeSeconds    float64      `json:"uptime_seconds"`
	Engine           engine.Stats `json:"engine"`
	DashboardClients int          `json:"dashboard_clients"`
	AsyncIngest      bool         `json:"async_ingest"`
}

// Health handles GET /healthz. The engine is in-process, so answering at all
// means it is up; evaluation errors are reported as counters, not as a
// degraded status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Engine:        h.engine.Stats(),
		AsyncIngest:   h.publisher != nil,
	}
	if h.clients != nil {
		health.DashboardClients = h.clients.GetClientCount()
	}
	respondOK(w, r, http.StatusOK, health)
}
