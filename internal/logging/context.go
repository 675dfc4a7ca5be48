// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// scope is the set of ids a context contributes to log entries. It is
// copied on every change and never mutated in place.
type scope struct {
	correlationID string
	subjectID     string
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// ContextWithCorrelationID tags ctx with the id that follows one signal
// through scoring, policy, enforcement and dispatch.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	s := scopeFrom(ctx)
	s.correlationID = id
	return context.WithValue(ctx, scopeKey{}, s)
}

// CorrelationIDFromContext returns the correlation id, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).correlationID
}

// ContextWithSubjectID tags ctx with the subject under evaluation.
func ContextWithSubjectID(ctx context.Context, subjectID string) context.Context {
	s := scopeFrom(ctx)
	s.subjectID = SanitizeSubjectID(subjectID)
	return context.WithValue(ctx, scopeKey{}, s)
}

// Ctx returns the global logger with the ids carried by ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := Logger()
	if s := scopeFrom(ctx); s != (scope{}) {
		logger = s.apply(logger.With()).Logger()
	}
	return &logger
}

func (s scope) apply(c zerolog.Context) zerolog.Context {
	if s.correlationID != "" {
		c = c.Str("correlation_id", s.correlationID)
	}
	if s.subjectID != "" {
		c = c.Str("subject_id", s.subjectID)
	}
	return c
}

// WithComponent returns a child of the global logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}
