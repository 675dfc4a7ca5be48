// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/models"
)

// Approve resolves a pending confirmation. Approval activates and enforces
// the action; denial clears the pending record and leaves the subject's
// status as it was before the action was queued.
func (e *Executor) Approve(ctx context.Context, pendingID string, approve bool, by string) (Result, error) {
	subjectID, ok := e.tracker.SubjectForPending(pendingID)
	if !ok {
		return Result{}, ErrPendingNotFound
	}

	now := e.clock.Now()
	res := Result{SubjectID: subjectID, PendingID: pendingID}
	var due []escalation.ActiveAction
	var directive models.Directive

	_, err := e.tracker.Update(ctx, subjectID, func(s *escalation.State) error {
		due, res.Applied = nil, nil
		if s.Pending == nil || s.Pending.ID != pendingID {
			return ErrPendingNotFound
		}
		p := *s.Pending
		s.Pending = nil
		directive = p.Directive
		res.DirectiveID = p.Directive.ID

		if !approve {
			if s.Status != p.PriorStatus && escalation.CanTransition(s.Status, p.PriorStatus) && len(s.Active) == 0 {
				s.Status = p.PriorStatus
			}
			return nil
		}

		aa, _ := e.activate(s, &p.Directive, p.Action, now)
		s.LastIncidentAt = now
		res.Applied = append(res.Applied, p.Action)
		due = append(due, aa)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrPendingNotFound) {
			res.Status, res.Err = StatusApplyFailed, err
			e.finish(res)
		}
		return res, err
	}

	logging.Ctx(ctx).Info().
		Str("subject_id", logging.SanitizeSubjectID(subjectID)).
		Str("pending_id", pendingID).
		Str("by", by).
		Bool("approved", approve).
		Msg("Pending confirmation resolved")

	if !approve {
		res.Status, res.Reason = StatusSkipped, "confirmation denied by "+by
		return e.finish(res), nil
	}

	outcomes := e.enforceAll(ctx, subjectID, due)
	e.reconcile(ctx, subjectID, outcomes)
	for _, o := range outcomes {
		if o.err != nil {
			res.Failed = append(res.Failed, o.active.Action)
			res.Err = o.err
			if e.notifier != nil {
				e.notifier.NotifyApplyFailed(ctx, &directive, o.active.Action, o.err)
			}
		}
	}
	if len(res.Failed) > 0 {
		res.Status, res.Reason = StatusApplyFailed, fmt.Sprintf("enforcement failed: %v", res.Err)
	} else {
		res.Status, res.Reason = StatusApplied, "confirmed by "+by
	}
	return e.finish(res), nil
}

// Recover returns a subject to Normal, clears every action in effect and any
// pending confirmation, and lifts enforcement. Applied lists the lifted
// actions. Suspension history is kept so future suspensions still escalate.
func (e *Executor) Recover(ctx context.Context, subjectID, by string) (Result, error) {
	res := Result{SubjectID: subjectID}
	var lifts []escalation.ActiveAction

	_, err := e.tracker.Update(ctx, subjectID, func(s *escalation.State) error {
		lifts = lifts[:0]
		for _, a := range s.Active {
			if a.Enforced {
				lifts = append(lifts, a)
			}
		}
		s.Active = nil
		s.Pending = nil
		s.Warnings = nil
		s.Status = escalation.StatusNormal
		s.Flagged = false
		s.ReviewFrom = ""
		s.ReviewStartedAt = time.Time{}
		s.ConsecutiveCritical = 0
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("recover subject: %w", err)
	}

	for _, a := range lifts {
		if err := e.lift(ctx, subjectID, a.Action.Kind); err != nil {
			res.Failed = append(res.Failed, a.Action)
			res.Err = err
			continue
		}
		res.Applied = append(res.Applied, a.Action)
	}

	logging.Ctx(ctx).Info().
		Str("subject_id", logging.SanitizeSubjectID(subjectID)).
		Str("by", by).
		Int("lifted", len(res.Applied)).
		Int("lift_failures", len(res.Failed)).
		Msg("Subject manually recovered")

	if len(res.Failed) > 0 {
		res.Status, res.Reason = StatusApplyFailed, fmt.Sprintf("lift failed: %v", res.Err)
	} else {
		res.Status, res.Reason = StatusApplied, "recovered by "+by
	}
	return e.finish(res), nil
}
