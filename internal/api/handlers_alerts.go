// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"net/http"

	"github.com/tomtom215/riskguard/internal/models"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// RecentAlerts handles GET /api/v1/alerts/recent, newest first.
func (h *Handler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Dashboard channel is disabled", nil)
		return
	}
	alerts := h.alerts.Recent(getIntParam(r, "limit", defaultAlertLimit, maxAlertLimit))
	if alerts == nil {
		alerts = []models.Envelope{}
	}
	respondOK(w, r, http.StatusOK, alerts)
}
