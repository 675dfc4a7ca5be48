// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

// Package identity talks to the external identity and session system: it
// reads subject profiles and applies or lifts enforcement actions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/models"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, 5xx responses,
	// connection errors and an open circuit breaker.
	ErrTransient = errors.New("transient identity system error")

	// ErrUnknownSubject is returned when the identity system has no profile.
	ErrUnknownSubject = errors.New("unknown subject")
)

// Profiles reads subject profiles.
type Profiles interface {
	Profile(ctx context.Context, subjectID string) (models.Subject, error)
}

// Enforcer applies and lifts actions.
type Enforcer interface {
	Enforce(ctx context.Context, subjectID string, action models.Action) error
	Lift(ctx context.Context, subjectID string, kind models.ActionKind) error
}

// Provider is the full identity system surface.
type Provider interface {
	Profiles
	Enforcer
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// New builds the configured provider.
func New(cfg config.IdentityConfig, limits config.RateLimitTiers) (Provider, error) {
	switch cfg.Mode {
	case "", "static":
		return NewStaticProvider(cfg), nil
	case "http":
		return NewHTTPClient(cfg, limits)
	default:
		return nil, &config.ConfigurationError{Field: "identity.mode", Reason: fmt.Sprintf("unknown mode %q", cfg.Mode)}
	}
}

// StaticProvider serves default profiles with optional per-subject overrides
// and keeps enforcement in memory. It is used for development and as the
// fallback when no identity system is configured.
type StaticProvider struct {
	defaultRole models.Role
	defaultAge  int

	mu          sync.RWMutex
	profiles    map[string]models.Subject
	enforcement map[string]map[models.ActionKind]models.Action
}

// NewStaticProvider creates a static provider from the identity defaults.
func NewStaticProvider(cfg config.IdentityConfig) *StaticProvider {
	role := models.Role(cfg.DefaultRole)
	if role == "" {
		role = models.RoleUser
	}
	return &StaticProvider{
		defaultRole: role,
		defaultAge:  cfg.DefaultAccountAgeDays,
		profiles:    make(map[string]models.Subject),
		enforcement: make(map[string]map[models.ActionKind]models.Action),
	}
}

// SetProfile overrides the profile for one subject.
func (p *StaticProvider) SetProfile(s models.Subject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[s.ID] = s
}

// Profile returns the override or the default profile. IP subjects carry
// their address and no role.
func (p *StaticProvider) Profile(_ context.Context, subjectID string) (models.Subject, error) {
	p.mu.RLock()
	s, ok := p.profiles[subjectID]
	p.mu.RUnlock()
	if ok {
		return s, nil
	}

	if models.IsIPSubject(subjectID) {
		return models.Subject{
			ID:             subjectID,
			AccountAgeDays: p.defaultAge,
			IPAddress:      strings.TrimPrefix(subjectID, models.IPSubjectPrefix),
		}, nil
	}
	return models.Subject{ID: subjectID, Role: p.defaultRole, AccountAgeDays: p.defaultAge}, nil
}

// Enforce records the action as in effect.
func (p *StaticProvider) Enforce(_ context.Context, subjectID string, action models.Action) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.enforcement[subjectID]
	if !ok {
		m = make(map[models.ActionKind]models.Action)
		p.enforcement[subjectID] = m
	}
	m[action.Kind] = action

	logging.Info().
		Str("subject_id", logging.SanitizeSubjectID(subjectID)).
		Str("action", action.String()).
		Msg("Static identity provider applied enforcement")
	return nil
}

// Lift removes an action.
func (p *StaticProvider) Lift(_ context.Context, subjectID string, kind models.ActionKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.enforcement[subjectID]; ok {
		delete(m, kind)
		if len(m) == 0 {
			delete(p.enforcement, subjectID)
		}
	}
	return nil
}

// Enforcements returns the actions currently in effect for a subject.
func (p *StaticProvider) Enforcements(subjectID string) []models.Action {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Action, 0, len(p.enforcement[subjectID]))
	for _, a := range p.enforcement[subjectID] {
		out = append(out, a)
	}
	return out
}
