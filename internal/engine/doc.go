// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package engine wires the moderation pipeline together.

One recorded signal flows one way through the components:

	signals.Recorder      append to the subject's window (plus derived kinds)
	risk.Scorer           score and classify the subject
	escalation.Tracker    append to score history, advance Normal -> Escalating
	escalation.Evaluator  check cross-cutting rules, pick the winning match
	policy.Policy         resolve the directive (tiers, cooldowns, exemptions)
	action.Executor       apply it to escalation state and the identity system
	alert.Dispatcher      notify administrators, rate-limited per subject

Signals carrying an "ip" metadata value also feed the ip:<addr> subject so
shared-IP abuse is scored and escalated on its own.

The Sweeper runs the time-driven half: grace-period activation, expiry,
reviews, pending confirmation timeouts and cache pruning.
*/
package engine
