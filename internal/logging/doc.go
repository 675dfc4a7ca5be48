// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package logging is the zerolog pipeline every riskguard component writes to.

Scoring, enforcement and alerting share one structured stream, so a single
signal can be followed end to end by its correlation_id:

	logging.Init(logging.Config{Level: "info", Format: "json"})

	ctx = logging.ContextWithCorrelationID(ctx, requestID)
	ctx = logging.ContextWithSubjectID(ctx, sig.SubjectID)
	logging.Ctx(ctx).Info().Str("level", lvl.String()).Msg("Assessment computed")

DecisionLogger writes the moderation audit trail (directives, enforcement
outcomes, suppressions) under component=decisions.

SlogHandler bridges log/slog into the same stream; the supervisor tree
(sutureslog) and the Watermill router log through it.

Events are only written once terminated with Msg or Send.
*/
package logging
