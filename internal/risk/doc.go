// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package risk turns signal windows into a bounded risk assessment.

# Pipeline

	Scorer.Score     counts each factor's window, sums triggered weights
	Adjuster         applies factor-scoped multipliers before summing and
	                 role / account-age / load threshold multipliers after
	Classifier       maps the adjusted score to a level using inclusive bands

# Multiplier Semantics

Role, account-age and load multipliers scale trigger thresholds. A subject with
an admin multiplier of 2.0 needs twice the activity to reach the same level, so
the summed contribution is divided by the product of these multipliers.

A factor-scoped multiplier (for example off_hours_activity x1.5) scales only
that factor's contribution and is applied before summing.

The adjusted score is rounded and clamped to [0, 100].

# Exemptions

Subjects matching an exempt role, subject id, trusted CIDR or carrying the
identity system's exempt flag always classify Safe. Scoring still runs so the
assessment shows what would have triggered.

Scoring is a pure function of the current windows, the subject profile, the
load bracket and static configuration.
*/
package risk
