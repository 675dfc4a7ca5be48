// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package escalation

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// SignalCounter reads trailing signal counts for the security-threat and
// shared-IP conditions.
type SignalCounter interface {
	Count(subjectID string, kind models.SignalKind, window time.Duration) int
	CountDistinct(subjectID string, kind models.SignalKind, window time.Duration, key string) int
}

// Rule is one compiled escalation rule.
type Rule struct {
	Name      string
	Condition string
	Threshold int
	Window    time.Duration
	Action    models.ActionKind
	order     int
}

// Match describes a rule that fired.
type Match struct {
	Rule      string
	Condition string
	Action    models.ActionKind
	Detail    string
	Order     int
}

// Input is everything a rule may look at for one evaluation.
type Input struct {
	Assessment models.Assessment
	State      *State
	Load       models.LoadBracket
	Now        time.Time
}

// Evaluator checks the ordered rule list.
type Evaluator struct {
	rules   []Rule
	counter SignalCounter
}

// NewEvaluator compiles the enabled rules in declaration order.
func NewEvaluator(cfg config.EscalationConfig, counter SignalCounter) (*Evaluator, error) {
	e := &Evaluator{counter: counter}
	for i, r := range cfg.Rules {
		if !r.Enabled {
			continue
		}
		kind := models.ActionKind(r.Action)
		if !kind.Valid() || kind == models.ActionNone {
			return nil, &config.ConfigurationError{
				Field:  fmt.Sprintf("escalation.rules[%d].action", i),
				Reason: fmt.Sprintf("unknown action kind %q", r.Action),
			}
		}
		e.rules = append(e.rules, Rule{
			Name:      r.Name,
			Condition: r.Condition,
			Threshold: r.Threshold,
			Window:    r.Window,
			Action:    kind,
			order:     i,
		})
	}
	return e, nil
}

// Rules returns the compiled rules in evaluation order.
func (e *Evaluator) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns every rule that fired, in declaration order, and the
// winning match. Exempt subjects never match.
func (e *Evaluator) Evaluate(in Input) (*Match, []Match) {
	if in.Assessment.Exempt {
		return nil, nil
	}
	if in.State == nil {
		in.State = NewState(in.Assessment.SubjectID)
	}

	var fired []Match
	for _, r := range e.rules {
		detail, ok := e.check(r, in)
		if !ok {
			continue
		}
		fired = append(fired, Match{
			Rule:      r.Name,
			Condition: r.Condition,
			Action:    r.Action,
			Detail:    detail,
			Order:     r.order,
		})
	}
	return Select(fired), fired
}

// Select picks the most severe match; equal severity resolves to the earliest rule.
func Select(matches []Match) *Match {
	var best *Match
	for i := range matches {
		m := &matches[i]
		if best == nil ||
			m.Action.Rank() > best.Action.Rank() ||
			(m.Action.Rank() == best.Action.Rank() && m.Order < best.Order) {
			best = m
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func (e *Evaluator) check(r Rule, in Input) (string, bool) {
	s := in.State
	subjectID := in.Assessment.SubjectID
	since := in.Now.Add(-r.Window)

	switch r.Condition {
	case config.ConditionSecurityThreat:
		if e.counter == nil {
			return "", false
		}
		n := e.counter.Count(subjectID, models.SignalSecurityThreat, r.Window) +
			e.counter.Count(subjectID, models.SignalMalware, r.Window)
		return fmt.Sprintf("%d security signals in %s", n, r.Window), n >= max(r.Threshold, 1)

	case config.ConditionConsecutiveCritical:
		n := s.ConsecutiveCritical
		return fmt.Sprintf("%d consecutive critical evaluations", n), n >= r.Threshold

	case config.ConditionWarningLimit:
		n := s.WarningsSince(since)
		return fmt.Sprintf("%d warnings in %s", n, r.Window), n >= r.Threshold

	case config.ConditionRapidScoreIncrease:
		return rapidIncrease(s.Scores, since, r.Threshold)

	case config.ConditionSustainedHighScore:
		return sustainedHigh(s.Scores, in.Now, r.Window, r.Threshold)

	case config.ConditionRepeatedViolations:
		factor, n := s.MaxViolationsSince(since)
		return fmt.Sprintf("%d %s violations in %s", n, factor, r.Window), n >= r.Threshold

	case config.ConditionSharedIP:
		if e.counter == nil || !models.IsIPSubject(subjectID) {
			return "", false
		}
		n := e.counter.CountDistinct(subjectID, models.SignalIPUser, r.Window, models.MetaUser)
		return fmt.Sprintf("%d users on %s in %s", n, strings.TrimPrefix(subjectID, models.IPSubjectPrefix), r.Window), n >= r.Threshold

	case config.ConditionSystemOverload:
		ok := in.Load == models.LoadHigh && in.Assessment.Level >= models.Level(r.Threshold)
		return fmt.Sprintf("load %s at level %s", in.Load, in.Assessment.Level), ok
	}
	return "", false
}

// rapidIncrease compares the latest score against the lowest earlier score
// inside the window.
func rapidIncrease(scores []ScorePoint, since time.Time, delta int) (string, bool) {
	if len(scores) < 2 {
		return "", false
	}
	latest := scores[len(scores)-1]
	lowest, found := 0, false
	for _, p := range scores[:len(scores)-1] {
		if p.At.Before(since) {
			continue
		}
		if !found || p.Score < lowest {
			lowest, found = p.Score, true
		}
	}
	if !found {
		return "", false
	}
	rise := latest.Score - lowest
	return fmt.Sprintf("score rose %d -> %d", lowest, latest.Score), rise >= delta
}

// sustainedHigh fires when every score for at least window has stayed above limit.
func sustainedHigh(scores []ScorePoint, now time.Time, window time.Duration, limit int) (string, bool) {
	if len(scores) == 0 || scores[len(scores)-1].Score <= limit {
		return "", false
	}
	start := scores[len(scores)-1].At
	for i := len(scores) - 1; i >= 0; i-- {
		if scores[i].Score <= limit {
			break
		}
		start = scores[i].At
	}
	held := now.Sub(start)
	return fmt.Sprintf("score above %d for %s", limit, held.Truncate(time.Second)), held >= window
}
