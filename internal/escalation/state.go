// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package escalation

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/riskguard/internal/models"
)

// Status is a subject's position in the escalation state machine.
type Status string

// Escalation statuses.
const (
	StatusNormal      Status = "normal"
	StatusEscalating  Status = "escalating"
	StatusSuspended   Status = "suspended"
	StatusBlocked     Status = "blocked"
	StatusUnderReview Status = "under_review"
)

// transitions lists the allowed status changes. Same-status updates are always allowed.
var transitions = map[Status][]Status{
	StatusNormal:      {StatusEscalating, StatusSuspended, StatusBlocked},
	StatusEscalating:  {StatusNormal, StatusSuspended, StatusBlocked},
	StatusSuspended:   {StatusNormal, StatusBlocked, StatusUnderReview},
	StatusBlocked:     {StatusNormal, StatusUnderReview},
	StatusUnderReview: {StatusNormal, StatusSuspended, StatusBlocked},
}

// ErrInvalidTransition is returned for status changes the state machine forbids.
var ErrInvalidTransition = errors.New("invalid escalation transition")

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Incident is a timestamped warning or violation attributed to a factor.
type Incident struct {
	At     time.Time         `json:"at"`
	Factor models.FactorKind `json:"factor,omitempty"`
}

// ScorePoint is one adjusted score observation.
type ScorePoint struct {
	At    time.Time    `json:"at"`
	Score int          `json:"score"`
	Level models.Level `json:"level"`
}

// ActiveAction is an action currently in effect, or waiting out its grace period.
type ActiveAction struct {
	Action      models.Action     `json:"action"`
	DirectiveID string            `json:"directive_id"`
	Rule        string            `json:"rule,omitempty"`
	Factor      models.FactorKind `json:"factor,omitempty"`
	AppliedAt   time.Time         `json:"applied_at"`
	ActivatesAt time.Time         `json:"activates_at"`
	ExpiresAt   time.Time         `json:"expires_at,omitempty"` // zero: until reviewed
	ReviewAt    time.Time         `json:"review_at,omitempty"`
	Enforced    bool              `json:"enforced"`
	// FailedAt is the last failed enforcement attempt; sweeps retry it.
	FailedAt time.Time `json:"failed_at,omitempty"`
}

// Activated reports whether the grace period has ended.
func (a ActiveAction) Activated(now time.Time) bool {
	return !now.Before(a.ActivatesAt)
}

// Expired reports whether a timed action has run out.
func (a ActiveAction) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// PendingAction is an action waiting for administrator confirmation.
type PendingAction struct {
	ID          string           `json:"id"`
	Directive   models.Directive `json:"directive"`
	Action      models.Action    `json:"action"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	PriorStatus Status           `json:"prior_status"`
}

// State is the durable escalation record for one subject.
type State struct {
	SubjectID           string         `json:"subject_id"`
	Status              Status         `json:"status"`
	Warnings            []Incident     `json:"warnings,omitempty"`
	Violations          []Incident     `json:"violations,omitempty"`
	RateLimits          []time.Time    `json:"rate_limits,omitempty"`
	SuspensionCount     int            `json:"suspension_count"`
	LastSuspensionTier  models.Tier    `json:"last_suspension_tier,omitempty"`
	Scores              []ScorePoint   `json:"scores,omitempty"`
	ConsecutiveCritical int            `json:"consecutive_critical"`
	Active              []ActiveAction `json:"active,omitempty"`
	Pending             *PendingAction `json:"pending,omitempty"`
	// Flagged is set when a new escalation trigger arrives while suspended or
	// blocked; a flagged suspension is reviewed instead of silently expiring.
	Flagged         bool      `json:"flagged"`
	ReviewFrom      Status    `json:"review_from,omitempty"`
	ReviewStartedAt time.Time `json:"review_started_at,omitempty"`
	LastIncidentAt  time.Time `json:"last_incident_at,omitempty"`
	// RecentDirectives holds the last applied directive ids for replay detection.
	RecentDirectives []string  `json:"recent_directives,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

const recentDirectiveLimit = 16

// NewState returns an empty Normal record.
func NewState(subjectID string) *State {
	return &State{SubjectID: subjectID, Status: StatusNormal}
}

// Transition moves the state machine, rejecting forbidden changes.
func (s *State) Transition(to Status) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	return nil
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Warnings = append([]Incident(nil), s.Warnings...)
	c.Violations = append([]Incident(nil), s.Violations...)
	c.RateLimits = append([]time.Time(nil), s.RateLimits...)
	c.Scores = append([]ScorePoint(nil), s.Scores...)
	c.Active = append([]ActiveAction(nil), s.Active...)
	c.RecentDirectives = append([]string(nil), s.RecentDirectives...)
	if s.Pending != nil {
		p := *s.Pending
		p.Directive.Actions = append([]models.Action(nil), s.Pending.Directive.Actions...)
		p.Directive.Evidence.Factors = append([]models.FactorContribution(nil), s.Pending.Directive.Evidence.Factors...)
		c.Pending = &p
	}
	return &c
}

// WarningsSince counts warnings at or after since.
func (s *State) WarningsSince(since time.Time) int {
	n := 0
	for _, w := range s.Warnings {
		if !w.At.Before(since) {
			n++
		}
	}
	return n
}

// LastWarning returns the most recent warning, optionally restricted to one factor.
func (s *State) LastWarning(factor models.FactorKind) (time.Time, bool) {
	var last time.Time
	found := false
	for _, w := range s.Warnings {
		if factor != "" && w.Factor != factor {
			continue
		}
		if !found || w.At.After(last) {
			last, found = w.At, true
		}
	}
	return last, found
}

// WarningCooldown reports whether a warning for factor at now falls inside
// either cooldown: anyType since the last warning of any factor, or sameType
// since the last warning for factor.
func (s *State) WarningCooldown(factor models.FactorKind, sameType, anyType time.Duration, now time.Time) bool {
	if last, ok := s.LastWarning(""); ok && now.Sub(last) < anyType {
		return true
	}
	if factor == "" {
		return false
	}
	last, ok := s.LastWarning(factor)
	return ok && now.Sub(last) < sameType
}

// MaxViolationsSince returns the highest per-factor violation count at or after since.
func (s *State) MaxViolationsSince(since time.Time) (models.FactorKind, int) {
	counts := make(map[models.FactorKind]int)
	var best models.FactorKind
	bestN := 0
	for _, v := range s.Violations {
		if v.At.Before(since) {
			continue
		}
		counts[v.Factor]++
		if n := counts[v.Factor]; n > bestN {
			best, bestN = v.Factor, n
		}
	}
	return best, bestN
}

// RateLimitsSince counts applied rate limits at or after since.
func (s *State) RateLimitsSince(since time.Time) int {
	n := 0
	for _, at := range s.RateLimits {
		if !at.Before(since) {
			n++
		}
	}
	return n
}

// ActiveOf returns the in-effect action of kind, if any.
func (s *State) ActiveOf(kind models.ActionKind) (ActiveAction, bool) {
	for _, a := range s.Active {
		if a.Action.Kind == kind {
			return a, true
		}
	}
	return ActiveAction{}, false
}

// SetActive replaces or adds the in-effect action of the same kind.
func (s *State) SetActive(a ActiveAction) {
	for i := range s.Active {
		if s.Active[i].Action.Kind == a.Action.Kind {
			s.Active[i] = a
			return
		}
	}
	s.Active = append(s.Active, a)
}

// RemoveActive drops the in-effect action of kind and reports whether one existed.
func (s *State) RemoveActive(kind models.ActionKind) (ActiveAction, bool) {
	for i, a := range s.Active {
		if a.Action.Kind == kind {
			s.Active = append(s.Active[:i], s.Active[i+1:]...)
			return a, true
		}
	}
	return ActiveAction{}, false
}

// MostSevereActive returns the in-effect action with the highest severity.
func (s *State) MostSevereActive() (ActiveAction, bool) {
	var best ActiveAction
	found := false
	for _, a := range s.Active {
		if !found || a.Action.Severity() > best.Action.Severity() {
			best, found = a, true
		}
	}
	return best, found
}

// SeenDirective reports whether id was already applied.
func (s *State) SeenDirective(id string) bool {
	for _, d := range s.RecentDirectives {
		if d == id {
			return true
		}
	}
	return false
}

// RememberDirective records id, keeping a bounded history.
func (s *State) RememberDirective(id string) {
	if id == "" || s.SeenDirective(id) {
		return
	}
	s.RecentDirectives = append(s.RecentDirectives, id)
	if over := len(s.RecentDirectives) - recentDirectiveLimit; over > 0 {
		s.RecentDirectives = s.RecentDirectives[over:]
	}
}

// Prune drops incidents older than incidentHorizon and scores older than scoreHorizon.
func (s *State) Prune(now time.Time, incidentHorizon, scoreHorizon time.Duration) {
	incidentCutoff := now.Add(-incidentHorizon)
	s.Warnings = pruneIncidents(s.Warnings, incidentCutoff)
	s.Violations = pruneIncidents(s.Violations, incidentCutoff)

	kept := s.RateLimits[:0]
	for _, at := range s.RateLimits {
		if !at.Before(incidentCutoff) {
			kept = append(kept, at)
		}
	}
	s.RateLimits = kept

	scoreCutoff := now.Add(-scoreHorizon)
	i := 0
	for i < len(s.Scores) && s.Scores[i].At.Before(scoreCutoff) {
		i++
	}
	s.Scores = s.Scores[i:]
}

func pruneIncidents(in []Incident, cutoff time.Time) []Incident {
	kept := in[:0]
	for _, inc := range in {
		if !inc.At.Before(cutoff) {
			kept = append(kept, inc)
		}
	}
	return kept
}

// Empty reports whether the record carries nothing worth keeping.
// A non-zero suspension count is history that selects future tiers.
func (s *State) Empty() bool {
	return s.Status == StatusNormal &&
		len(s.Warnings) == 0 &&
		len(s.Violations) == 0 &&
		len(s.RateLimits) == 0 &&
		len(s.Scores) == 0 &&
		len(s.Active) == 0 &&
		s.Pending == nil &&
		s.SuspensionCount == 0 &&
		s.ConsecutiveCritical == 0
}
