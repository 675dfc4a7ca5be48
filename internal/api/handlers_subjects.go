// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/riskguard/internal/action"
	"github.com/tomtom215/riskguard/internal/auth"
)

const maxSubjectIDLen = 256

// subjectParam returns the {id} path value or writes a 400.
func subjectParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxSubjectIDLen {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "Subject id must be 1 to 256 characters", nil)
		return "", false
	}
	return id, true
}

// operator names the authenticated admin for audit fields.
func operator(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Operator != "" {
		return claims.Operator
	}
	return "api"
}

// SubjectAssessment handles GET /api/v1/subjects/{id}/assessment.
func (h *Handler) SubjectAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	respondOK(w, r, http.StatusOK, h.engine.Assess(r.Context(), id))
}

// SubjectState handles GET /api/v1/subjects/{id}/state. Unknown subjects
// report an empty Normal record.
func (h *Handler) SubjectState(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	state, err := h.engine.State(r.Context(), id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeEngine, "Escalation state unavailable", err)
		return
	}
	respondOK(w, r, http.StatusOK, state)
}

// RecoverSubject handles POST /api/v1/subjects/{id}/recover.
func (h *Handler) RecoverSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectParam(w, r)
	if !ok {
		return
	}
	res, err := h.engine.Recover(r.Context(), id, operator(r))
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeEngine, "Recovery failed", err)
		return
	}
	respondOK(w, r, resultStatus(res), res)
}

// resultStatus maps an executor result to an HTTP status. A failed identity
// call is the upstream's fault.
func resultStatus(res action.Result) int {
	if res.Status == action.StatusApplyFailed {
		return http.StatusBadGateway
	}
	return http.StatusOK
}
