// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

// Package policy turns a classified assessment and the subject's escalation
// state into a concrete, parameterized action directive.
package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/models"
)

// Reasons attached to no-op directives.
const (
	ReasonNoAction       = "no action for level"
	ReasonCooldown       = "warning cooldown active"
	ReasonExempt         = "subject is exempt"
	ReasonSupersededBy   = "subject already under %s"
	ReasonPendingConfirm = "confirmation already pending"
)

// Input is one decision request.
type Input struct {
	Assessment models.Assessment
	State      *escalation.State
	// Match is the winning escalation rule for this cycle, if any.
	Match *escalation.Match
}

// Policy resolves directives from level defaults, escalation overrides and
// the configured tiers and cooldowns.
type Policy struct {
	levelActions map[models.Level][]models.ActionKind
	actions      config.ActionsConfig
	cooldowns    config.CooldownConfig
	clock        clock.Clock
}

// New compiles the level action table.
func New(actions config.ActionsConfig, cooldowns config.CooldownConfig, clk clock.Clock) (*Policy, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	p := &Policy{
		levelActions: make(map[models.Level][]models.ActionKind, len(actions.LevelActions)),
		actions:      actions,
		cooldowns:    cooldowns,
		clock:        clk,
	}
	for name, kinds := range actions.LevelActions {
		level, err := models.ParseLevel(name)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "actions.level_actions." + name, Reason: err.Error()}
		}
		for _, k := range kinds {
			kind := models.ActionKind(k)
			if !kind.Valid() || kind == models.ActionNone {
				return nil, &config.ConfigurationError{
					Field:  "actions.level_actions." + name,
					Reason: fmt.Sprintf("unknown action kind %q", k),
				}
			}
			p.levelActions[level] = append(p.levelActions[level], kind)
		}
	}
	return p, nil
}

// LevelActions returns the default action kinds for level.
func (p *Policy) LevelActions(level models.Level) []models.ActionKind {
	return append([]models.ActionKind(nil), p.levelActions[level]...)
}

// Decide builds the directive for one evaluation. It never returns nil; a
// directive with no actions is a no-op and carries the reason.
func (p *Policy) Decide(in Input) *models.Directive {
	now := p.clock.Now()
	state := in.State
	if state == nil {
		state = escalation.NewState(in.Assessment.SubjectID)
	}

	d := &models.Directive{
		ID:        uuid.New().String(),
		SubjectID: in.Assessment.SubjectID,
		Level:     in.Assessment.Level,
		Factor:    in.Assessment.PrimaryFactor(),
		Evidence:  in.Assessment,
		CreatedAt: now,
	}
	if in.Match != nil {
		d.Rule = in.Match.Rule
	}

	kinds := p.selectKinds(in)
	if in.Assessment.Exempt {
		kinds = capExempt(kinds)
		if len(kinds) == 0 {
			d.Reason = ReasonExempt
			return d
		}
	}
	if len(kinds) == 0 {
		d.Reason = ReasonNoAction
		return d
	}

	for _, k := range kinds {
		d.Actions = append(d.Actions, p.resolve(k, state, now))
	}
	sort.SliceStable(d.Actions, func(i, j int) bool {
		return d.Actions[i].Severity() > d.Actions[j].Severity()
	})

	if d.Has(models.ActionWarning) && state.WarningCooldown(d.Factor, p.cooldowns.SameType, p.cooldowns.AnyType, now) {
		if d.Primary().Kind == models.ActionWarning {
			return noop(d, ReasonCooldown)
		}
		d.Actions = without(d.Actions, models.ActionWarning)
	}

	// a subject already under a more severe action gets nothing new
	if current, ok := state.MostSevereActive(); ok && d.Primary().Severity() < current.Action.Severity() {
		return noop(d, fmt.Sprintf(ReasonSupersededBy, current.Action))
	}
	if state.Pending != nil && d.Primary().Severity() <= state.Pending.Action.Severity() {
		return noop(d, ReasonPendingConfirm)
	}

	d.RequiresConfirmation = d.Has(models.ActionImmediateBlock) && p.actions.BlockRequiresConfirmation
	if in.Match != nil {
		d.Reason = fmt.Sprintf("rule %s: %s", in.Match.Rule, in.Match.Detail)
	} else {
		d.Reason = "level " + d.Level.String()
	}
	return d
}

// selectKinds merges level defaults with the escalation override. A rule
// action at least as severe as every level default replaces the set, keeping
// auto_report; a weaker rule action is added alongside the defaults.
func (p *Policy) selectKinds(in Input) []models.ActionKind {
	defaults := p.levelActions[in.Assessment.Level]
	if in.Match == nil {
		return append([]models.ActionKind(nil), defaults...)
	}

	override := in.Match.Action
	strongest := 0
	for _, k := range defaults {
		if k.Rank() > strongest {
			strongest = k.Rank()
		}
	}
	if override.Rank() >= strongest {
		out := []models.ActionKind{override}
		for _, k := range defaults {
			if k == models.ActionAutoReport && override != models.ActionAutoReport {
				out = append(out, k)
			}
		}
		return out
	}

	out := append([]models.ActionKind(nil), defaults...)
	for _, k := range defaults {
		if k == override {
			return out
		}
	}
	return append(out, override)
}

func capExempt(kinds []models.ActionKind) []models.ActionKind {
	if len(kinds) == 0 {
		return nil
	}
	return []models.ActionKind{models.ActionMonitor}
}

// resolve picks the tier and duration for one action kind. An action already
// in effect keeps its tier so repeated evaluations stay idempotent.
func (p *Policy) resolve(kind models.ActionKind, state *escalation.State, now time.Time) models.Action {
	switch kind {
	case models.ActionTemporarySuspension:
		if active, ok := state.ActiveOf(kind); ok {
			return active.Action
		}
		return p.SuspensionTier(state.SuspensionCount)

	case models.ActionRateLimit:
		if active, ok := state.ActiveOf(kind); ok {
			return active.Action
		}
		return p.RateLimitTier(state.RateLimitsSince(now.Add(-p.actions.RateLimit.EscalationWindow)))

	case models.ActionMonitor:
		return models.Action{Kind: kind, Duration: p.actions.MonitorDuration}

	case models.ActionContentQuarantine:
		return models.Action{Kind: kind, Duration: p.actions.QuarantineDuration}
	}
	return models.Action{Kind: kind}
}

// SuspensionTier returns the suspension for a subject with count prior suspensions.
func (p *Policy) SuspensionTier(count int) models.Action {
	s := p.actions.Suspension
	switch {
	case count <= 0:
		return models.Action{Kind: models.ActionTemporarySuspension, Tier: models.TierFirst, Duration: s.First}
	case count == 1:
		return models.Action{Kind: models.ActionTemporarySuspension, Tier: models.TierSecond, Duration: s.Second}
	case count == 2:
		return models.Action{Kind: models.ActionTemporarySuspension, Tier: models.TierThird, Duration: s.Third}
	default:
		return models.Action{Kind: models.ActionTemporarySuspension, Tier: models.TierSubsequent, Duration: s.Subsequent}
	}
}

// RateLimitTier returns the rate limit for a subject with recent prior rate limits.
func (p *Policy) RateLimitTier(recent int) models.Action {
	r := p.actions.RateLimit
	switch {
	case recent <= 0:
		return models.Action{Kind: models.ActionRateLimit, Tier: models.TierLight, Duration: r.Light}
	case recent == 1:
		return models.Action{Kind: models.ActionRateLimit, Tier: models.TierModerate, Duration: r.Moderate}
	default:
		return models.Action{Kind: models.ActionRateLimit, Tier: models.TierStrict, Duration: r.Strict}
	}
}

// PerMinute returns the request cap for a rate-limit tier.
func (p *Policy) PerMinute(tier models.Tier) int {
	r := p.actions.RateLimit
	switch tier {
	case models.TierModerate:
		return r.ModeratePerMinute
	case models.TierStrict:
		return r.StrictPerMinute
	default:
		return r.LightPerMinute
	}
}

func noop(d *models.Directive, reason string) *models.Directive {
	d.Actions = nil
	d.RequiresConfirmation = false
	d.Reason = reason
	return d
}

func without(actions []models.Action, kind models.ActionKind) []models.Action {
	out := actions[:0]
	for _, a := range actions {
		if a.Kind != kind {
			out = append(out, a)
		}
	}
	return out
}
