// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package logging

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomtom215/riskguard/internal/models"
)

// maxLoggedIDLength bounds identifiers copied from untrusted signal payloads.
const maxLoggedIDLength = 128

// DecisionLogger writes the moderation audit trail: every directive, every
// enforcement outcome and every policy suppression.
type DecisionLogger struct {
	logger zerolog.Logger
}

// NewDecisionLogger creates a decision logger on the global logger.
func NewDecisionLogger() *DecisionLogger {
	return &DecisionLogger{logger: WithComponent("decisions")}
}

// NewDecisionLoggerWithLogger creates a decision logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewDecisionLoggerWithLogger(logger zerolog.Logger) *DecisionLogger {
	return &DecisionLogger{logger: logger.With().Str("component", "decisions").Logger()}
}

func (l *DecisionLogger) with(ctx context.Context) *zerolog.Logger {
	logger := l.logger
	if id := CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With().Str("correlation_id", id).Logger()
	}
	return &logger
}

// LogDirective records a policy decision with its evidence summary.
func (l *DecisionLogger) LogDirective(ctx context.Context, d *models.Directive) {
	actions := make([]string, 0, len(d.Actions))
	for _, a := range d.Actions {
		actions = append(actions, a.String())
	}

	e := l.with(ctx).Info().
		Str("event", "directive").
		Str("directive_id", d.ID).
		Str("subject_id", SanitizeSubjectID(d.SubjectID)).
		Str("level", d.Level.String()).
		Strs("actions", actions).
		Int("score", d.Evidence.AdjustedScore).
		Bool("requires_confirmation", d.RequiresConfirmation)
	if d.Rule != "" {
		e = e.Str("rule", d.Rule)
	}
	if d.Factor != "" {
		e = e.Str("factor", string(d.Factor))
	}
	e.Msg("Directive decided")
}

// LogEnforcement records the outcome of applying an action. Failures log at error.
func (l *DecisionLogger) LogEnforcement(ctx context.Context, subjectID string, action models.Action, status string, err error) {
	logger := l.with(ctx)
	var e *zerolog.Event
	if err != nil {
		e = logger.Error().Err(err)
	} else {
		e = logger.Info()
	}
	e.Str("event", "enforcement").
		Str("subject_id", SanitizeSubjectID(subjectID)).
		Str("action", action.String()).
		Dur("duration", action.Duration).
		Str("status", status).
		Msg("Enforcement outcome")
}

// LogSuppressed records a SuppressedByPolicy outcome. Suppression is not an
// error and is logged at info.
func (l *DecisionLogger) LogSuppressed(ctx context.Context, subjectID, reason string) {
	l.with(ctx).Info().
		Str("event", "suppressed").
		Str("subject_id", SanitizeSubjectID(subjectID)).
		Str("reason", reason).
		Msg("Suppressed by policy")
}

// SanitizeSubjectID strips control characters and truncates identifiers that
// arrive from upstream collaborators before they reach the log stream.
func SanitizeSubjectID(id string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, id)
	if len(clean) > maxLoggedIDLength {
		return clean[:maxLoggedIDLength] + "..."
	}
	return clean
}
