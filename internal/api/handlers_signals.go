// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/riskguard/internal/engine"
	"github.com/tomtom215/riskguard/internal/models"
)

// queuedSignal is the 202 body for asynchronous intake.
type queuedSignal struct {
	Queued    bool              `json:"queued"`
	SubjectID string            `json:"subject_id"`
	Kind      models.SignalKind `json:"kind"`
}

// RecordSignal handles POST /api/v1/signals.
//
// The default is synchronous: the signal is recorded, the subject evaluated
// and the full outcome returned. With ?async=true the signal goes onto the
// ingest queue and the call returns 202 without an outcome.
func (h *Handler) RecordSignal(w http.ResponseWriter, r *http.Request) {
	var sig models.Signal
	if err := decodeJSON(w, r, &sig); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeInvalidJSON, "Request body must be a signal object", nil)
		return
	}
	if body := validateRequest(&sig); body != nil {
		respondFailure(w, r, http.StatusBadRequest, body)
		return
	}

	if getBoolParam(r, "async") {
		h.queueSignal(w, r, sig)
		return
	}

	out, err := h.engine.RecordSignal(r.Context(), sig)
	switch {
	case errors.Is(err, engine.ErrInvalidSignal):
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, CodeEngine, "Signal could not be evaluated", err)
		return
	}
	respondOK(w, r, http.StatusOK, out)
}

func (h *Handler) queueSignal(w http.ResponseWriter, r *http.Request, sig models.Signal) {
	if h.publisher == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Asynchronous ingest is not enabled", nil)
		return
	}
	if err := h.publisher.Publish(sig); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeQueue, "Signal could not be queued", err)
		return
	}
	respondOK(w, r, http.StatusAccepted, queuedSignal{Queued: true, SubjectID: sig.SubjectID, Kind: sig.Kind})
}
