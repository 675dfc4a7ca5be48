// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tomtom215/riskguard/internal/action"
	"github.com/tomtom215/riskguard/internal/alert"
	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/identity"
	"github.com/tomtom215/riskguard/internal/load"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/models"
	"github.com/tomtom215/riskguard/internal/policy"
	"github.com/tomtom215/riskguard/internal/risk"
	"github.com/tomtom215/riskguard/internal/signals"
)

// ErrInvalidSignal is returned for signals without a subject or kind.
var ErrInvalidSignal = errors.New("invalid signal")

// Reasons reported on ignored signals.
const (
	ReasonUnknownKind = "unknown signal kind"
	ReasonDerivedKind = "derived signal kinds are recorded by the engine"
)

// EventBroadcaster receives live pipeline events for the dashboard.
type EventBroadcaster interface {
	BroadcastDirective(d *models.Directive)
	BroadcastStatus(subjectID, from, to string, at time.Time)
}

// Dependencies are the collaborators the engine does not own.
type Dependencies struct {
	Store    escalation.Store
	Identity identity.Provider
	Load     load.Probe
	Alerts   *alert.Dispatcher
	Events   EventBroadcaster
	Clock    clock.Clock
}

// Outcome is the structured result of one evaluation.
type Outcome struct {
	SubjectID  string                `json:"subject_id"`
	Ignored    bool                  `json:"ignored,omitempty"`
	Reason     string                `json:"reason,omitempty"`
	Assessment *models.Assessment    `json:"assessment,omitempty"`
	Match      *escalation.Match     `json:"match,omitempty"`
	Directive  *models.Directive     `json:"directive,omitempty"`
	Result     *action.Result        `json:"result,omitempty"`
	Alert      *alert.DispatchResult `json:"alert,omitempty"`
	Status     escalation.Status     `json:"status,omitempty"`

	// Related holds the evaluation of the ip:<addr> subject the signal fed.
	Related *Outcome `json:"related,omitempty"`
}

// Stats are running counters for the health endpoint.
type Stats struct {
	SignalsRecorded   int64 `json:"signals_recorded"`
	SignalsIgnored    int64 `json:"signals_ignored"`
	Evaluations       int64 `json:"evaluations"`
	DirectivesApplied int64 `json:"directives_applied"`
	EvaluationErrors  int64 `json:"evaluation_errors"`
}

// Engine runs the scoring and moderation pipeline.
type Engine struct {
	cfg   *config.Config
	clock clock.Clock

	recorder   *signals.Recorder
	scorer     *risk.Scorer
	evaluator  *escalation.Evaluator
	tracker    *escalation.Tracker
	policy     *policy.Policy
	executor   *action.Executor
	dispatcher *alert.Dispatcher
	identity   identity.Provider
	load       load.Probe
	events     EventBroadcaster
	audit      *logging.DecisionLogger

	signalsRecorded   atomic.Int64
	signalsIgnored    atomic.Int64
	evaluations       atomic.Int64
	directivesApplied atomic.Int64
	evaluationErrors  atomic.Int64
}

// New builds the pipeline. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, deps Dependencies) (*Engine, error) {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	if deps.Store == nil {
		deps.Store = escalation.NewMemoryStore()
	}
	if deps.Identity == nil {
		deps.Identity = identity.NewStaticProvider(cfg.Identity)
	}
	if deps.Load == nil {
		deps.Load = load.NewStatic(models.LoadLow)
	}
	if deps.Alerts == nil {
		deps.Alerts = alert.NewDispatcher(cfg.Alerts, nil, clk)
	}

	recorder := signals.NewRecorder(clk, cfg.Sweep.SignalRetention)
	scorer, err := risk.NewScorer(cfg, recorder, clk)
	if err != nil {
		return nil, fmt.Errorf("build scorer: %w", err)
	}
	evaluator, err := escalation.NewEvaluator(cfg.Escalation, recorder)
	if err != nil {
		return nil, fmt.Errorf("build escalation rules: %w", err)
	}
	tracker, err := escalation.NewTracker(ctx, deps.Store, cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("build escalation tracker: %w", err)
	}
	pol, err := policy.New(cfg.Actions, cfg.Cooldowns, clk)
	if err != nil {
		return nil, fmt.Errorf("build policy: %w", err)
	}

	return &Engine{
		cfg:        cfg,
		clock:      clk,
		recorder:   recorder,
		scorer:     scorer,
		evaluator:  evaluator,
		tracker:    tracker,
		policy:     pol,
		executor:   action.NewExecutor(tracker, deps.Identity, deps.Alerts, cfg, clk),
		dispatcher: deps.Alerts,
		identity:   deps.Identity,
		load:       deps.Load,
		events:     deps.Events,
		audit:      logging.NewDecisionLogger(),
	}, nil
}

// RecordSignal records one signal and evaluates the affected subjects.
// Unknown kinds are ignored with a warning and reported on the outcome.
func (e *Engine) RecordSignal(ctx context.Context, sig models.Signal) (*Outcome, error) {
	if sig.SubjectID == "" || sig.Kind == "" {
		metrics.RecordSignalIgnored("invalid")
		return nil, fmt.Errorf("%w: subject_id and kind are required", ErrInvalidSignal)
	}
	ctx = logging.ContextWithSubjectID(ctx, sig.SubjectID)

	if !models.IsExternalSignal(sig.Kind) {
		reason, label := ReasonUnknownKind, "unknown_kind"
		if models.IsKnownSignal(sig.Kind) {
			reason, label = ReasonDerivedKind, "derived_kind"
		}
		e.signalsIgnored.Add(1)
		metrics.RecordSignalIgnored(label)
		logging.Ctx(ctx).Warn().
			Str("subject_id", logging.SanitizeSubjectID(sig.SubjectID)).
			Str("kind", string(sig.Kind)).
			Msg("Ignoring signal: " + reason)
		return &Outcome{SubjectID: sig.SubjectID, Ignored: true, Reason: reason}, nil
	}

	at := sig.Timestamp
	if at.IsZero() {
		at = e.clock.Now()
	}
	e.record(sig.SubjectID, sig.Kind, at, sig.Metadata)

	if e.scorer.Adjuster().IsOffHours(at) {
		e.record(sig.SubjectID, models.SignalOffHours, at, nil)
	}

	ip := sig.Metadata[models.MetaIP]
	var ipSubject string
	if ip != "" && !models.IsIPSubject(sig.SubjectID) {
		e.record(sig.SubjectID, models.SignalIPSeen, at, map[string]string{models.MetaIP: ip})
		ipSubject = models.IPSubjectID(ip)
		e.record(ipSubject, models.SignalIPUser, at, map[string]string{models.MetaUser: sig.SubjectID})
	}

	out, err := e.Evaluate(ctx, sig.SubjectID, ip)
	if err != nil {
		return nil, err
	}
	if ipSubject != "" {
		related, err := e.Evaluate(ctx, ipSubject, ip)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("subject_id", ipSubject).Msg("IP subject evaluation failed")
		} else {
			out.Related = related
		}
	}
	return out, nil
}

func (e *Engine) record(subjectID string, kind models.SignalKind, at time.Time, meta map[string]string) {
	e.recorder.Record(subjectID, kind, at, meta)
	e.signalsRecorded.Add(1)
	metrics.RecordSignal(string(kind))
}

// Evaluate runs the full pipeline for one subject. ipHint fills in the
// subject's address when the identity system does not know it.
func (e *Engine) Evaluate(ctx context.Context, subjectID, ipHint string) (*Outcome, error) {
	start := time.Now()
	e.evaluations.Add(1)

	before, err := e.tracker.Get(ctx, subjectID)
	if err != nil {
		e.evaluationErrors.Add(1)
		return nil, fmt.Errorf("load escalation state: %w", err)
	}

	subject := e.profile(ctx, subjectID, ipHint)
	loadBracket := e.load.Current()
	assessment := e.scorer.Score(subject, loadBracket)
	metrics.RecordEvaluation(assessment.Level.String(), time.Since(start))

	state, err := e.tracker.Observe(ctx, assessment)
	if err != nil {
		e.evaluationErrors.Add(1)
		return nil, fmt.Errorf("observe assessment: %w", err)
	}

	out := &Outcome{SubjectID: subjectID, Assessment: &assessment}

	match, fired := e.evaluator.Evaluate(escalation.Input{
		Assessment: assessment,
		State:      state,
		Load:       loadBracket,
		Now:        e.clock.Now(),
	})
	for _, m := range fired {
		metrics.RecordRuleFired(m.Rule)
	}
	if match != nil {
		out.Match = match
		logging.Ctx(ctx).Info().
			Str("subject_id", logging.SanitizeSubjectID(subjectID)).
			Str("rule", match.Rule).
			Str("detail", match.Detail).
			Int("fired", len(fired)).
			Msg("Escalation rule fired")
		if state, err = e.tracker.MarkTriggered(ctx, subjectID); err != nil {
			e.evaluationErrors.Add(1)
			return nil, fmt.Errorf("mark escalation: %w", err)
		}
	}

	directive := e.policy.Decide(policy.Input{Assessment: assessment, State: state, Match: match})
	out.Directive = directive
	metrics.RecordDirective(string(directive.Primary().Kind))

	if directive.IsNoop() {
		if directive.Reason != "" && directive.Reason != policy.ReasonNoAction {
			e.audit.LogSuppressed(ctx, subjectID, directive.Reason)
		}
		out.Status = state.Status
		e.announceStatus(subjectID, before.Status, state.Status)
		return out, nil
	}

	e.audit.LogDirective(ctx, directive)
	result := e.executor.Apply(ctx, directive)
	out.Result = &result

	switch result.Status {
	case action.StatusApplied, action.StatusRequiresConfirmation:
		e.directivesApplied.Add(1)
		dispatched := e.dispatcher.Dispatch(ctx, directive, assessment)
		out.Alert = &dispatched
		if e.events != nil {
			e.events.BroadcastDirective(directive)
		}
	case action.StatusApplyFailed:
		// The executor already raised a critical alert through the dispatcher.
		e.directivesApplied.Add(1)
	}

	after, err := e.tracker.Get(ctx, subjectID)
	if err != nil {
		return out, nil //nolint:nilerr // the directive was applied; status is informational
	}
	out.Status = after.Status
	e.announceStatus(subjectID, before.Status, after.Status)
	return out, nil
}

// profile fetches the subject from the identity system, falling back to the
// configured defaults when it is unknown or unreachable.
func (e *Engine) profile(ctx context.Context, subjectID, ipHint string) models.Subject {
	subject, err := e.identity.Profile(ctx, subjectID)
	if err != nil {
		ev := logging.Ctx(ctx).Debug()
		if identity.IsTransient(err) {
			ev = logging.Ctx(ctx).Warn()
		}
		ev.Err(err).Str("subject_id", logging.SanitizeSubjectID(subjectID)).Msg("Using default subject profile")

		subject = models.Subject{
			ID:             subjectID,
			Role:           models.Role(e.cfg.Identity.DefaultRole),
			AccountAgeDays: e.cfg.Identity.DefaultAccountAgeDays,
		}
		if models.IsIPSubject(subjectID) {
			subject.IPAddress = subjectID[len(models.IPSubjectPrefix):]
		}
	}
	if subject.IPAddress == "" {
		subject.IPAddress = ipHint
	}
	return subject
}

func (e *Engine) announceStatus(subjectID string, from, to escalation.Status) {
	if from == to || e.events == nil {
		return
	}
	e.events.BroadcastStatus(subjectID, string(from), string(to), e.clock.Now())
}

// Assess scores a subject without touching escalation state.
func (e *Engine) Assess(ctx context.Context, subjectID string) models.Assessment {
	return e.scorer.Score(e.profile(ctx, subjectID, ""), e.load.Current())
}

// State returns a snapshot of the subject's escalation state.
func (e *Engine) State(ctx context.Context, subjectID string) (*escalation.State, error) {
	return e.tracker.Get(ctx, subjectID)
}

// ApproveConfirmation resolves a pending confirmation-required action.
func (e *Engine) ApproveConfirmation(ctx context.Context, pendingID string, approve bool, by string) (action.Result, error) {
	subjectID, _ := e.tracker.SubjectForPending(pendingID)
	var before escalation.Status
	if subjectID != "" {
		if s, err := e.tracker.Get(ctx, subjectID); err == nil {
			before = s.Status
		}
	}

	res, err := e.executor.Approve(ctx, pendingID, approve, by)
	if err != nil {
		return res, err
	}
	if s, err := e.tracker.Get(ctx, res.SubjectID); err == nil {
		e.announceStatus(res.SubjectID, before, s.Status)
	}
	return res, nil
}

// Recover returns a subject to Normal and lifts enforced actions.
func (e *Engine) Recover(ctx context.Context, subjectID, by string) (action.Result, error) {
	before, err := e.tracker.Get(ctx, subjectID)
	if err != nil {
		return action.Result{}, fmt.Errorf("load escalation state: %w", err)
	}
	res, err := e.executor.Recover(ctx, subjectID, by)
	if err != nil {
		return res, err
	}
	e.recorder.Forget(subjectID)
	e.announceStatus(subjectID, before.Status, escalation.StatusNormal)
	return res, nil
}

// Stats returns the running counters.
func (e *Engine) Stats() Stats {
	return Stats{
		SignalsRecorded:   e.signalsRecorded.Load(),
		SignalsIgnored:    e.signalsIgnored.Load(),
		Evaluations:       e.evaluations.Load(),
		DirectivesApplied: e.directivesApplied.Load(),
		EvaluationErrors:  e.evaluationErrors.Load(),
	}
}

// Tracker exposes the escalation tracker to the sweeper and tests.
func (e *Engine) Tracker() *escalation.Tracker { return e.tracker }

// Recorder exposes the signal recorder.
func (e *Engine) Recorder() *signals.Recorder { return e.recorder }
