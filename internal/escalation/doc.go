// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package escalation tracks per-subject incident history and evaluates the
cross-cutting escalation rules.

# State Machine

	Normal      -> Escalating   warning-or-above classification or a rule fires
	Escalating  -> Suspended    warning limit reached, critical classification
	Suspended   -> Normal       suspension expired with no new triggers, or manual recovery
	any         -> Blocked      emergency classification or security-threat signal
	Suspended   -> UnderReview  auto-review deadline passed without administrator action
	Blocked     -> UnderReview  auto-review deadline passed without administrator action
	UnderReview -> Normal       auto_approve resolution or manual recovery
	UnderReview -> prior state  auto_reject resolution

Escalating returns to Normal once no actions remain in effect and the incident
horizon has passed without new incidents.

# Rule Precedence

Rules are evaluated in declaration order. When several fire in one cycle the
rule with the most severe action wins; equal severity resolves to the rule
declared first.

# Storage

State is persisted through the Store interface. MemoryStore keeps everything in
process; BadgerStore persists JSON-encoded records so suspension counts and
pending confirmations survive restarts.

# Concurrency

Tracker.Update is the only read-modify-write path. It serializes updates per
subject with a dedicated mutex while updates for different subjects run in
parallel.
*/
package escalation
