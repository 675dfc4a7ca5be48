// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package models

import (
	"fmt"
	"time"
)

// ActionKind identifies an automated moderation action.
type ActionKind string

const (
	ActionNone                ActionKind = "none"
	ActionMonitor             ActionKind = "monitor"
	ActionRateLimit           ActionKind = "rate_limit"
	ActionAutoReport          ActionKind = "auto_report"
	ActionWarning             ActionKind = "warning"
	ActionContentQuarantine   ActionKind = "content_quarantine"
	ActionTemporarySuspension ActionKind = "temporary_suspension"
	ActionImmediateBlock      ActionKind = "immediate_block"

	// ActionLift is only sent to the identity system to remove enforcement.
	ActionLift ActionKind = "lift"
)

// actionRanks orders action kinds from least to most severe.
var actionRanks = map[ActionKind]int{
	ActionNone:                0,
	ActionMonitor:             1,
	ActionAutoReport:          2,
	ActionRateLimit:           3,
	ActionWarning:             4,
	ActionContentQuarantine:   5,
	ActionTemporarySuspension: 6,
	ActionImmediateBlock:      7,
}

// Rank returns the ordinal severity of the kind, or -1 for unknown kinds.
func (k ActionKind) Rank() int {
	if r, ok := actionRanks[k]; ok {
		return r
	}
	return -1
}

// Valid reports whether the kind can appear in a directive.
func (k ActionKind) Valid() bool {
	return k.Rank() >= 0
}

// Enforced reports whether the action changes account or session state
// in the identity system, as opposed to being bookkeeping only.
func (k ActionKind) Enforced() bool {
	switch k {
	case ActionRateLimit, ActionContentQuarantine, ActionTemporarySuspension, ActionImmediateBlock:
		return true
	default:
		return false
	}
}

// Tier parameterizes rate limiting and suspension.
type Tier string

const (
	TierNone       Tier = ""
	TierLight      Tier = "light"
	TierModerate   Tier = "moderate"
	TierStrict     Tier = "strict"
	TierFirst      Tier = "first"
	TierSecond     Tier = "second"
	TierThird      Tier = "third"
	TierSubsequent Tier = "subsequent"
)

// RateLimitTiers lists rate limit tiers in escalation order.
var RateLimitTiers = []Tier{TierLight, TierModerate, TierStrict}

// SuspensionTiers lists suspension tiers in escalation order.
var SuspensionTiers = []Tier{TierFirst, TierSecond, TierThird, TierSubsequent}

func tierRank(t Tier) int {
	for i, v := range RateLimitTiers {
		if v == t {
			return i + 1
		}
	}
	for i, v := range SuspensionTiers {
		if v == t {
			return i + 1
		}
	}
	return 0
}

// Action is one parameterized action inside a directive.
type Action struct {
	Kind     ActionKind    `json:"kind"`
	Tier     Tier          `json:"tier,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Severity orders actions across kinds and, within a kind, by tier.
func (a Action) Severity() int {
	return a.Kind.Rank()*10 + tierRank(a.Tier)
}

// String renders the action for logs.
func (a Action) String() string {
	if a.Tier == TierNone {
		return string(a.Kind)
	}
	return fmt.Sprintf("%s/%s", a.Kind, a.Tier)
}

// Directive is the concrete action decision for one evaluation cycle.
type Directive struct {
	ID                   string     `json:"id"`
	SubjectID            string     `json:"subject_id"`
	Level                Level      `json:"level"`
	Actions              []Action   `json:"actions"`
	Rule                 string     `json:"rule,omitempty"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
	Reason               string     `json:"reason,omitempty"`
	Factor               FactorKind `json:"factor,omitempty"`
	Evidence             Assessment `json:"evidence"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Primary returns the most severe action. A directive without actions
// returns ActionNone.
func (d *Directive) Primary() Action {
	best := Action{Kind: ActionNone}
	for _, a := range d.Actions {
		if a.Severity() > best.Severity() {
			best = a
		}
	}
	return best
}

// IsNoop reports whether the directive carries no action at all.
func (d *Directive) IsNoop() bool {
	return d.Primary().Kind == ActionNone
}

// Has reports whether the directive includes an action of the given kind.
func (d *Directive) Has(kind ActionKind) bool {
	for _, a := range d.Actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

// Severity returns the severity of the primary action.
func (d *Directive) Severity() int {
	return d.Primary().Severity()
}
