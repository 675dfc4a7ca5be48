// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package action

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/models"
)

// SweepStats counts the lifecycle changes made by one sweep.
type SweepStats struct {
	Subjects         int `json:"subjects"`
	Activated        int `json:"activated"`
	Expired          int `json:"expired"`
	ReviewStarted    int `json:"review_started"`
	ReviewResolved   int `json:"review_resolved"`
	PendingActivated int `json:"pending_activated"`
	PendingExpired   int `json:"pending_expired"`
	EnforceFailed    int `json:"enforce_failed"`
	LiftFailed       int `json:"lift_failed"`
	// Pending is the number of confirmations still outstanding.
	Pending int `json:"pending"`
}

func (s *SweepStats) add(o SweepStats) {
	s.Activated += o.Activated
	s.Expired += o.Expired
	s.ReviewStarted += o.ReviewStarted
	s.ReviewResolved += o.ReviewResolved
	s.PendingActivated += o.PendingActivated
	s.PendingExpired += o.PendingExpired
	s.EnforceFailed += o.EnforceFailed
	s.LiftFailed += o.LiftFailed
	s.Pending += o.Pending
}

// Sweep advances time-driven lifecycles for every subject: actions whose
// grace period ended are enforced, expired actions are lifted, overdue
// suspensions and blocks move to review, reviews past their timeout are
// resolved, and pending confirmations past their timeout are activated or
// dropped. Each subject is locked only for its own update and identity
// system calls happen outside the lock.
func (e *Executor) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	states, err := e.tracker.List(ctx)
	if err != nil {
		return stats, err
	}

	for _, st := range states {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if len(st.Active) == 0 && st.Pending == nil && st.Status != escalation.StatusUnderReview {
			continue
		}
		stats.Subjects++
		delta, err := e.sweepSubject(ctx, st.SubjectID)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("subject_id", logging.SanitizeSubjectID(st.SubjectID)).
				Msg("Sweep failed for subject")
			continue
		}
		stats.add(delta)
	}

	metrics.PendingConfirmations.Set(float64(stats.Pending))
	recordTransitions(stats)
	return stats, nil
}

func recordTransitions(s SweepStats) {
	for kind, n := range map[string]int{
		"activated":         s.Activated,
		"expired":           s.Expired,
		"review_started":    s.ReviewStarted,
		"review_resolved":   s.ReviewResolved,
		"pending_activated": s.PendingActivated,
		"pending_expired":   s.PendingExpired,
	} {
		for i := 0; i < n; i++ {
			metrics.RecordSweepTransition(kind)
		}
	}
}

func (e *Executor) sweepSubject(ctx context.Context, subjectID string) (SweepStats, error) {
	now := e.clock.Now()
	var delta SweepStats
	var enforce, lifts []escalation.ActiveAction
	var pendingDirective *models.Directive

	_, err := e.tracker.Update(ctx, subjectID, func(s *escalation.State) error {
		delta, enforce, lifts, pendingDirective = SweepStats{}, nil, nil, nil
		changed := false

		if p := s.Pending; p != nil && !now.Before(p.ExpiresAt) {
			s.Pending = nil
			changed = true
			if e.actions.PendingTimeoutPolicy == config.PendingActivate {
				dir := p.Directive
				aa, _ := e.activate(s, &dir, p.Action, now)
				s.LastIncidentAt = now
				enforce = append(enforce, aa)
				pendingDirective = &dir
				delta.PendingActivated++
			} else {
				delta.PendingExpired++
			}
		}

		for _, a := range append([]escalation.ActiveAction(nil), s.Active...) {
			kind := a.Action.Kind
			if a.Expired(now) {
				if kind == models.ActionTemporarySuspension {
					if s.Status == escalation.StatusUnderReview && s.ReviewFrom == escalation.StatusSuspended {
						continue
					}
					if s.Status == escalation.StatusSuspended && s.Flagged {
						e.startReview(s, now)
						delta.ReviewStarted++
						changed = true
						continue
					}
				}
				s.RemoveActive(kind)
				changed = true
				delta.Expired++
				if a.Enforced {
					lifts = append(lifts, a)
				}
				if kind == models.ActionTemporarySuspension && s.Status == escalation.StatusSuspended {
					s.Status = escalation.StatusNormal
				}
				continue
			}
			if kind.Enforced() && !a.Enforced && a.Activated(now) && !containsKind(enforce, kind) {
				enforce = append(enforce, a)
				if a.FailedAt.IsZero() {
					delta.Activated++
				}
			}
		}

		if e.reviewDue(s, now) {
			e.startReview(s, now)
			delta.ReviewStarted++
			changed = true
		}
		if s.Status == escalation.StatusUnderReview && !s.ReviewStartedAt.IsZero() &&
			now.Sub(s.ReviewStartedAt) >= e.escalation.UnderReviewTimeout {
			lifts = append(lifts, e.resolveReview(s, now)...)
			delta.ReviewResolved++
			changed = true
		}

		if s.Pending != nil {
			delta.Pending = 1
		}
		if !changed && len(enforce) == 0 {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return delta, nil
	}
	if err != nil {
		return SweepStats{}, err
	}

	for _, a := range lifts {
		if err := e.lift(ctx, subjectID, a.Action.Kind); err != nil {
			delta.LiftFailed++
		}
	}

	outcomes := e.enforceAll(ctx, subjectID, enforce)
	e.reconcile(ctx, subjectID, outcomes)
	for _, o := range outcomes {
		if o.err == nil {
			continue
		}
		delta.EnforceFailed++
		if e.notifier == nil {
			continue
		}
		d := pendingDirective
		if d == nil || d.ID != o.active.DirectiveID {
			d = &models.Directive{
				ID:        o.active.DirectiveID,
				SubjectID: subjectID,
				Rule:      o.active.Rule,
				Factor:    o.active.Factor,
				Actions:   []models.Action{o.active.Action},
				CreatedAt: o.active.AppliedAt,
			}
		}
		e.notifier.NotifyApplyFailed(ctx, d, o.active.Action, o.err)
	}
	return delta, nil
}

func containsKind(list []escalation.ActiveAction, kind models.ActionKind) bool {
	for _, a := range list {
		if a.Action.Kind == kind {
			return true
		}
	}
	return false
}

// reviewDue reports whether the action behind a Suspended or Blocked status
// has passed its auto-review deadline.
func (e *Executor) reviewDue(s *escalation.State, now time.Time) bool {
	var kind models.ActionKind
	switch s.Status {
	case escalation.StatusSuspended:
		kind = models.ActionTemporarySuspension
	case escalation.StatusBlocked:
		kind = models.ActionImmediateBlock
	default:
		return false
	}
	a, ok := s.ActiveOf(kind)
	return ok && !a.ReviewAt.IsZero() && !now.Before(a.ReviewAt)
}

func (e *Executor) startReview(s *escalation.State, now time.Time) {
	s.ReviewFrom = s.Status
	s.Status = escalation.StatusUnderReview
	s.ReviewStartedAt = now
}

// resolveReview applies the configured no-response resolution and returns
// the actions to lift. auto_approve releases the subject; auto_reject keeps
// the action in effect, extends a suspension to at least one more full term
// and schedules the next review.
func (e *Executor) resolveReview(s *escalation.State, now time.Time) []escalation.ActiveAction {
	from := s.ReviewFrom
	s.ReviewFrom = ""
	s.ReviewStartedAt = time.Time{}
	s.Flagged = false

	kind := models.ActionTemporarySuspension
	if from == escalation.StatusBlocked {
		kind = models.ActionImmediateBlock
	}
	held, ok := s.ActiveOf(kind)

	if e.escalation.ReviewResolution == config.ReviewAutoApprove || !ok {
		var lifts []escalation.ActiveAction
		for _, k := range []models.ActionKind{models.ActionTemporarySuspension, models.ActionImmediateBlock} {
			if a, removed := s.RemoveActive(k); removed && a.Enforced {
				lifts = append(lifts, a)
			}
		}
		s.Status = escalation.StatusNormal
		s.Warnings = nil
		return lifts
	}

	s.Status = from
	held.ReviewAt = now.Add(e.actions.AutoReviewAfter)
	if kind == models.ActionTemporarySuspension {
		if floor := now.Add(held.Action.Duration); held.ExpiresAt.Before(floor) {
			held.ExpiresAt = floor
		}
	}
	s.SetActive(held)
	return nil
}
