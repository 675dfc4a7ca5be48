// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/riskguard/internal/action"
	"github.com/tomtom215/riskguard/internal/engine"
	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/models"
)

// Engine is the part of *engine.Engine the handlers use.
type Engine interface {
	RecordSignal(ctx context.Context, sig models.Signal) (*engine.Outcome, error)
	Assess(ctx context.Context, subjectID string) models.Assessment
	State(ctx context.Context, subjectID string) (*escalation.State, error)
	ApproveConfirmation(ctx context.Context, pendingID string, approve bool, by string) (action.Result, error)
	Recover(ctx context.Context, subjectID, by string) (action.Result, error)
	Stats() engine.Stats
}

// AlertFeed serves the dashboard's recent alerts.
type AlertFeed interface {
	Recent(limit int) []models.Envelope
}

// SignalPublisher queues signals for asynchronous ingestion.
type SignalPublisher interface {
	Publish(sig models.Signal) error
}

// ClientCounter reports connected dashboard clients.
type ClientCounter interface {
	GetClientCount() int
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_signals.go: signal intake
//   - handlers_subjects.go: assessment, state, recovery
//   - handlers_confirmations.go: pending confirmation approval
//   - handlers_alerts.go: dashboard feed
//   - handlers_health.go: health
type Handler struct {
	engine    Engine
	alerts    AlertFeed
	publisher SignalPublisher
	clients   ClientCounter
	websocket http.HandlerFunc
	startTime time.Time
}

// HandlerOption configures optional collaborators.
type HandlerOption func(*Handler)

// WithAlertFeed serves /api/v1/alerts/recent from feed.
func WithAlertFeed(feed AlertFeed) HandlerOption {
	return func(h *Handler) { h.alerts = feed }
}

// WithPublisher enables ?async=true signal intake.
func WithPublisher(p SignalPublisher) HandlerOption {
	return func(h *Handler) { h.publisher = p }
}

// WithWebSocket mounts the dashboard stream handler and reports its client count.
func WithWebSocket(serve http.HandlerFunc, clients ClientCounter) HandlerOption {
	return func(h *Handler) {
		h.websocket = serve
		h.clients = clients
	}
}

// NewHandler creates the API handler.
func NewHandler(eng Engine, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:    eng,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WebSocket upgrades the dashboard connection.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.websocket == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Dashboard stream not configured", nil)
		return
	}
	h.websocket(w, r)
}
