// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

// Package action applies directives to escalation state and to the external
// identity system.
//
// Every apply runs in three steps: the state change is made under the
// subject lock, the identity system is called with the lock released, and
// the outcome is reconciled under the lock again. Enforcement calls are
// retried once with backoff; a second failure leaves the action recorded but
// unenforced, reports apply_failed and notifies an administrator. Sweeps
// retry unenforced actions.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/identity"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/models"
)

// Status is the outcome of applying a directive.
type Status string

const (
	StatusApplied              Status = "applied"
	StatusSkipped              Status = "skipped"
	StatusRequiresConfirmation Status = "requires_confirmation"
	StatusApplyFailed          Status = "apply_failed"
)

// Skip reasons.
const (
	ReasonDuplicate     = "directive already applied"
	ReasonAlreadyActive = "actions already in effect"
	ReasonNoActions     = "directive has no actions"
	ReasonCooldown      = "warning cooldown active"
)

// ErrPendingNotFound is returned when a confirmation id is unknown or already resolved.
var ErrPendingNotFound = errors.New("pending confirmation not found")

// errNoChange aborts a tracker update without writing.
var errNoChange = errors.New("no change")

// Result is the structured outcome of Apply, Approve and Recover.
type Result struct {
	Status      Status          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	DirectiveID string          `json:"directive_id,omitempty"`
	SubjectID   string          `json:"subject_id"`
	PendingID   string          `json:"pending_id,omitempty"`
	Applied     []models.Action `json:"applied,omitempty"`
	Skipped     []models.Action `json:"skipped,omitempty"`
	Failed      []models.Action `json:"failed,omitempty"`
	Err         error           `json:"-"`
}

// Enforcer is the identity system surface the executor drives.
type Enforcer interface {
	Enforce(ctx context.Context, subjectID string, action models.Action) error
	Lift(ctx context.Context, subjectID string, kind models.ActionKind) error
}

// FailureNotifier is told about actions that could not be enforced.
type FailureNotifier interface {
	NotifyApplyFailed(ctx context.Context, d *models.Directive, action models.Action, err error)
}

// Executor applies directives.
type Executor struct {
	tracker  *escalation.Tracker
	enforcer Enforcer
	notifier FailureNotifier
	audit    *logging.DecisionLogger
	clock    clock.Clock

	actions    config.ActionsConfig
	escalation config.EscalationConfig
	cooldowns  config.CooldownConfig
}

// NewExecutor creates an executor. notifier may be nil.
func NewExecutor(tracker *escalation.Tracker, enforcer Enforcer, notifier FailureNotifier, cfg *config.Config, clk clock.Clock) *Executor {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Executor{
		tracker:    tracker,
		enforcer:   enforcer,
		notifier:   notifier,
		audit:      logging.NewDecisionLogger(),
		clock:      clk,
		actions:    cfg.Actions,
		escalation: cfg.Escalation,
		cooldowns:  cfg.Cooldowns,
	}
}

// SetNotifier replaces the failure notifier.
func (e *Executor) SetNotifier(n FailureNotifier) {
	e.notifier = n
}

// outcome is the result of one identity system call.
type outcome struct {
	active escalation.ActiveAction
	err    error
}

// Apply applies d. Re-applying the same directive, or one that is not
// strictly more severe than what is already in effect, changes nothing.
func (e *Executor) Apply(ctx context.Context, d *models.Directive) Result {
	if d == nil {
		return e.finish(Result{Status: StatusSkipped, Reason: ReasonNoActions})
	}
	res := Result{DirectiveID: d.ID, SubjectID: d.SubjectID}
	if d.IsNoop() {
		res.Status, res.Reason = StatusSkipped, d.Reason
		if res.Reason == "" {
			res.Reason = ReasonNoActions
		}
		return e.finish(res)
	}

	now := e.clock.Now()
	var due []escalation.ActiveAction

	_, err := e.tracker.Update(ctx, d.SubjectID, func(s *escalation.State) error {
		res.Applied, res.Skipped, res.PendingID, due = nil, nil, "", nil

		if s.SeenDirective(d.ID) {
			res.Reason = ReasonDuplicate
			return errNoChange
		}

		changed, cooled := false, false
		var reports []models.Action
		for _, a := range d.Actions {
			if a.Kind == models.ActionAutoReport {
				reports = append(reports, a)
				continue
			}
			if a.Kind == models.ActionImmediateBlock && d.RequiresConfirmation {
				if !e.queueConfirmation(s, d, a, now) {
					res.Skipped = append(res.Skipped, a)
					continue
				}
				res.PendingID = s.Pending.ID
				changed = true
				continue
			}
			// the directive may have been decided on a snapshot older than s
			if a.Kind == models.ActionWarning && s.WarningCooldown(d.Factor, e.cooldowns.SameType, e.cooldowns.AnyType, now) {
				res.Skipped = append(res.Skipped, a)
				cooled = true
				continue
			}
			if cur, ok := s.ActiveOf(a.Kind); ok && a.Severity() <= cur.Action.Severity() {
				res.Skipped = append(res.Skipped, a)
				continue
			}

			aa, tracked := e.activate(s, d, a, now)
			res.Applied = append(res.Applied, a)
			changed = true
			if tracked && a.Kind.Enforced() && aa.Activated(now) {
				due = append(due, aa)
			}
		}

		// auto-report only accompanies a real change
		if !changed {
			res.Skipped = append(res.Skipped, reports...)
			res.Reason = ReasonAlreadyActive
			if cooled && len(res.Skipped) == len(reports)+1 {
				res.Reason = ReasonCooldown
			}
			return errNoChange
		}
		res.Applied = append(res.Applied, reports...)

		s.Violations = append(s.Violations, escalation.Incident{At: now, Factor: d.Factor})
		s.LastIncidentAt = now
		if s.Status == escalation.StatusNormal {
			s.Status = escalation.StatusEscalating
		}
		s.RememberDirective(d.ID)
		return nil
	})
	switch {
	case errors.Is(err, errNoChange):
		res.Status = StatusSkipped
		for _, a := range res.Skipped {
			e.audit.LogEnforcement(ctx, d.SubjectID, a, string(StatusSkipped), nil)
		}
		return e.finish(res)
	case err != nil:
		res.Status, res.Reason, res.Err = StatusApplyFailed, "escalation state update failed", err
		return e.finish(res)
	}

	outcomes := e.enforceAll(ctx, d.SubjectID, due)
	e.reconcile(ctx, d.SubjectID, outcomes)

	for _, o := range outcomes {
		if o.err != nil {
			res.Failed = append(res.Failed, o.active.Action)
			res.Err = o.err
			if e.notifier != nil {
				e.notifier.NotifyApplyFailed(ctx, d, o.active.Action, o.err)
			}
		}
	}

	switch {
	case len(res.Failed) > 0:
		res.Status, res.Reason = StatusApplyFailed, fmt.Sprintf("enforcement failed: %v", res.Err)
	case res.PendingID != "":
		res.Status, res.Reason = StatusRequiresConfirmation, "immediate block awaits administrator confirmation"
	default:
		res.Status = StatusApplied
	}
	return e.finish(res)
}

func (e *Executor) finish(res Result) Result {
	metrics.RecordExecutorResult(string(res.Status))
	return res
}

// queueConfirmation records a block as pending. It refuses when an equal or
// stronger confirmation is already pending or the subject is already blocked.
func (e *Executor) queueConfirmation(s *escalation.State, d *models.Directive, a models.Action, now time.Time) bool {
	if _, ok := s.ActiveOf(models.ActionImmediateBlock); ok {
		return false
	}
	if s.Pending != nil && s.Pending.Action.Severity() >= a.Severity() {
		return false
	}
	dir := *d
	dir.Actions = append([]models.Action(nil), d.Actions...)
	s.Pending = &escalation.PendingAction{
		ID:          uuid.New().String(),
		Directive:   dir,
		Action:      a,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.actions.ConfirmationTimeout),
		PriorStatus: s.Status,
	}
	return true
}

// activate records a in s. The bool reports whether the action stays in
// effect as an ActiveAction (warnings and auto-reports do not).
func (e *Executor) activate(s *escalation.State, d *models.Directive, a models.Action, now time.Time) (escalation.ActiveAction, bool) {
	aa := escalation.ActiveAction{
		Action:      a,
		DirectiveID: d.ID,
		Rule:        d.Rule,
		Factor:      d.Factor,
		AppliedAt:   now,
		ActivatesAt: now,
	}

	switch a.Kind {
	case models.ActionWarning:
		s.Warnings = append(s.Warnings, escalation.Incident{At: now, Factor: d.Factor})
		return aa, false

	case models.ActionAutoReport, models.ActionNone:
		return aa, false

	case models.ActionTemporarySuspension:
		aa.ActivatesAt = now.Add(e.actions.GracePeriod)
		aa.ExpiresAt = aa.ActivatesAt.Add(a.Duration)
		aa.ReviewAt = aa.ActivatesAt.Add(e.actions.AutoReviewAfter)
		if s.Status != escalation.StatusBlocked {
			s.Status = escalation.StatusSuspended
		}
		s.SuspensionCount++
		s.LastSuspensionTier = a.Tier
		s.Warnings = nil
		s.Flagged = false

	case models.ActionImmediateBlock:
		aa.ReviewAt = now.Add(e.actions.AutoReviewAfter)
		s.Status = escalation.StatusBlocked
		s.Flagged = false

	case models.ActionRateLimit:
		s.RateLimits = append(s.RateLimits, now)
		aa.ExpiresAt = now.Add(a.Duration)

	case models.ActionContentQuarantine, models.ActionMonitor:
		aa.ExpiresAt = now.Add(a.Duration)
	}

	s.SetActive(aa)
	return aa, true
}

// enforceAll calls the identity system for each action without holding any lock.
func (e *Executor) enforceAll(ctx context.Context, subjectID string, due []escalation.ActiveAction) []outcome {
	out := make([]outcome, 0, len(due))
	for _, aa := range due {
		err := e.enforce(ctx, subjectID, aa.Action)
		status := "enforced"
		if err != nil {
			status = string(StatusApplyFailed)
		}
		e.audit.LogEnforcement(ctx, subjectID, aa.Action, status, err)
		out = append(out, outcome{active: aa, err: err})
	}
	return out
}

// enforce makes one call with a single retry for transient failures. Each
// attempt has its own timeout.
func (e *Executor) enforce(ctx context.Context, subjectID string, a models.Action) error {
	return e.retry(ctx, string(a.Kind), func(actx context.Context) error {
		return e.enforcer.Enforce(actx, subjectID, a)
	})
}

func (e *Executor) lift(ctx context.Context, subjectID string, kind models.ActionKind) error {
	err := e.retry(ctx, string(models.ActionLift), func(actx context.Context) error {
		return e.enforcer.Lift(actx, subjectID, kind)
	})
	status := "lifted"
	if err != nil {
		status = "lift_failed"
	}
	e.audit.LogEnforcement(ctx, subjectID, models.Action{Kind: kind}, status, err)
	return err
}

func (e *Executor) retry(ctx context.Context, label string, call func(context.Context) error) error {
	op := func() (struct{}, error) {
		actx, cancel := context.WithTimeout(ctx, e.actions.EnforcementTimeout)
		defer cancel()

		err := call(actx)
		metrics.RecordEnforcement(label, err)
		if err == nil {
			return struct{}{}, nil
		}
		if identity.IsTransient(err) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.actions.RetryBackoff
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Millisecond
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(2),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logging.Ctx(ctx).Warn().Err(err).Str("action", label).Dur("retry_in", wait).
				Msg("Enforcement failed, retrying")
		}),
	)
	return err
}

// reconcile records enforcement outcomes. Actions replaced while the call
// was in flight are left alone.
func (e *Executor) reconcile(ctx context.Context, subjectID string, outcomes []outcome) {
	if len(outcomes) == 0 {
		return
	}
	now := e.clock.Now()
	_, err := e.tracker.Update(ctx, subjectID, func(s *escalation.State) error {
		for _, o := range outcomes {
			cur, ok := s.ActiveOf(o.active.Action.Kind)
			if !ok || cur.DirectiveID != o.active.DirectiveID {
				continue
			}
			if o.err == nil {
				cur.Enforced = true
				cur.FailedAt = time.Time{}
			} else {
				cur.FailedAt = now
			}
			s.SetActive(cur)
		}
		return nil
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("subject_id", logging.SanitizeSubjectID(subjectID)).
			Msg("Failed to record enforcement outcome")
	}
}
