// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/riskguard/internal/action"
)

// confirmationRequest is the body of POST /api/v1/confirmations/{id}.
type confirmationRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

// ResolveConfirmation handles POST /api/v1/confirmations/{id}. Approval
// enforces the held action; denial restores the prior status.
func (h *Handler) ResolveConfirmation(w http.ResponseWriter, r *http.Request) {
	pendingID := chi.URLParam(r, "id")
	if pendingID == "" {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "Confirmation id is required", nil)
		return
	}

	var req confirmationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidJSON, `Body must be {"approve": true|false}`, nil)
		return
	}
	if body := validateRequest(&req); body != nil {
		respondFailure(w, r, http.StatusBadRequest, body)
		return
	}

	res, err := h.engine.ApproveConfirmation(r.Context(), pendingID, *req.Approve, operator(r))
	switch {
	case errors.Is(err, action.ErrPendingNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, "No pending confirmation with that id", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeEngine, "Confirmation could not be resolved", err)
		return
	}
	respondOK(w, r, resultStatus(res), res)
}
