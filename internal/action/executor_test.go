// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package action

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/identity"
	"github.com/tomtom215/riskguard/internal/models"
)

var epoch = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// mockEnforcer records identity system calls. errs are returned in order
// for successive Enforce calls; gate, when set, blocks Enforce until closed.
type mockEnforcer struct {
	mu       sync.Mutex
	enforced []models.Action
	lifted   []models.ActionKind
	errs     []error
	gate     chan struct{}
	entered  chan struct{}
}

func (m *mockEnforcer) Enforce(_ context.Context, _ string, a models.Action) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enforced = append(m.enforced, a)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return nil
}

func (m *mockEnforcer) Lift(_ context.Context, _ string, kind models.ActionKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifted = append(m.lifted, kind)
	return nil
}

func (m *mockEnforcer) calls() ([]models.Action, []models.ActionKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Action(nil), m.enforced...), append([]models.ActionKind(nil), m.lifted...)
}

type mockNotifier struct {
	mu       sync.Mutex
	failures []models.Action
}

func (n *mockNotifier) NotifyApplyFailed(_ context.Context, _ *models.Directive, a models.Action, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, a)
}

func (n *mockNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failures)
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Escalation.ReviewResolution = config.ReviewAutoReject
	cfg.Actions.RetryBackoff = time.Millisecond
	cfg.Actions.EnforcementTimeout = time.Second
	return cfg
}

type harness struct {
	exec     *Executor
	tracker  *escalation.Tracker
	clock    *clock.Fake
	enforcer *mockEnforcer
	notifier *mockNotifier
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	clk := clock.NewFake(epoch)
	tr, err := escalation.NewTracker(context.Background(), escalation.NewMemoryStore(), cfg, clk)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	h := &harness{tracker: tr, clock: clk, enforcer: &mockEnforcer{}, notifier: &mockNotifier{}}
	h.exec = NewExecutor(tr, h.enforcer, h.notifier, cfg, clk)
	return h
}

func (h *harness) state(t *testing.T, id string) *escalation.State {
	t.Helper()
	s, err := h.tracker.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return s
}

func directive(subject string, actions ...models.Action) *models.Directive {
	return &models.Directive{
		ID:        uuid.New().String(),
		SubjectID: subject,
		Level:     models.LevelCritical,
		Actions:   actions,
		Factor:    models.FactorMassUpload,
	}
}

var (
	suspendFirst  = models.Action{Kind: models.ActionTemporarySuspension, Tier: models.TierFirst, Duration: time.Hour}
	suspendSecond = models.Action{Kind: models.ActionTemporarySuspension, Tier: models.TierSecond, Duration: 6 * time.Hour}
	rateLight     = models.Action{Kind: models.ActionRateLimit, Tier: models.TierLight, Duration: 15 * time.Minute}
	rateModerate  = models.Action{Kind: models.ActionRateLimit, Tier: models.TierModerate, Duration: time.Hour}
	block         = models.Action{Kind: models.ActionImmediateBlock}
	autoReport    = models.Action{Kind: models.ActionAutoReport}
)

func TestExecutor_ApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	ctx := context.Background()

	d := directive("u1", suspendFirst, autoReport)
	res := h.exec.Apply(ctx, d)
	if res.Status != StatusApplied {
		t.Fatalf("first Apply status = %s (%s)", res.Status, res.Reason)
	}
	once := h.state(t, "u1")
	if once.Status != escalation.StatusSuspended || once.SuspensionCount != 1 {
		t.Fatalf("state after first apply: status=%s count=%d", once.Status, once.SuspensionCount)
	}

	h.clock.Advance(time.Minute)
	res = h.exec.Apply(ctx, d)
	if res.Status != StatusSkipped || res.Reason != ReasonDuplicate {
		t.Errorf("replay: status=%s reason=%q", res.Status, res.Reason)
	}
	if twice := h.state(t, "u1"); !reflect.DeepEqual(once, twice) {
		t.Errorf("replay changed state:\n once=%+v\ntwice=%+v", once, twice)
	}

	// a fresh directive of equal severity must not reset the running timer
	res = h.exec.Apply(ctx, directive("u1", suspendFirst, autoReport))
	if res.Status != StatusSkipped || res.Reason != ReasonAlreadyActive {
		t.Errorf("equal severity: status=%s reason=%q", res.Status, res.Reason)
	}
	if again := h.state(t, "u1"); !reflect.DeepEqual(once, again) {
		t.Errorf("equal-severity directive changed state")
	}

	// strictly more severe replaces the running action
	res = h.exec.Apply(ctx, directive("u1", suspendSecond))
	if res.Status != StatusApplied {
		t.Fatalf("stronger Apply status = %s", res.Status)
	}
	s := h.state(t, "u1")
	active, _ := s.ActiveOf(models.ActionTemporarySuspension)
	if active.Action.Tier != models.TierSecond || s.SuspensionCount != 2 {
		t.Errorf("after stronger: tier=%s count=%d", active.Action.Tier, s.SuspensionCount)
	}
}

func TestExecutor_NoopDirectiveIsSkipped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	d := &models.Directive{ID: "d1", SubjectID: "u1", Reason: "warning cooldown active"}
	res := h.exec.Apply(context.Background(), d)
	if res.Status != StatusSkipped || res.Reason != "warning cooldown active" {
		t.Errorf("Apply(noop) = %s %q", res.Status, res.Reason)
	}
	if res := h.exec.Apply(context.Background(), nil); res.Status != StatusSkipped {
		t.Errorf("Apply(nil) = %s", res.Status)
	}
}

func TestExecutor_WarningCooldownRecheckedOnApply(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	ctx := context.Background()
	warning := models.Action{Kind: models.ActionWarning}

	// both directives were decided from the same pre-warning state
	first := directive("u1", rateLight, warning, autoReport)
	second := directive("u1", warning, autoReport)
	first.Level, second.Level = models.LevelWarning, models.LevelWarning

	if res := h.exec.Apply(ctx, first); res.Status != StatusApplied {
		t.Fatalf("first Apply = %s (%s)", res.Status, res.Reason)
	}
	res := h.exec.Apply(ctx, second)
	if res.Status != StatusSkipped || res.Reason != ReasonCooldown {
		t.Errorf("second Apply = %s %q, want skipped %q", res.Status, res.Reason, ReasonCooldown)
	}
	if len(res.Applied) != 0 {
		t.Errorf("second Apply applied %v", res.Applied)
	}
	s := h.state(t, "u1")
	if len(s.Warnings) != 1 {
		t.Fatalf("warnings = %d within cooldown, want 1", len(s.Warnings))
	}
	if len(s.Violations) != 1 {
		t.Errorf("violations = %d, want 1", len(s.Violations))
	}

	tests := []struct {
		name    string
		advance time.Duration
		factor  models.FactorKind
		want    Status
	}{
		{"other factor inside any-type cooldown", 10 * time.Minute, models.FactorFailedLogins, StatusSkipped},
		{"other factor after any-type cooldown", 25 * time.Minute, models.FactorFailedLogins, StatusApplied},
		{"same factor inside same-type cooldown", 0, models.FactorMassUpload, StatusSkipped},
		{"same factor after same-type cooldown", 30 * time.Minute, models.FactorMassUpload, StatusApplied},
	}
	for _, tt := range tests {
		h.clock.Advance(tt.advance)
		d := directive("u1", warning)
		d.Factor = tt.factor
		if res := h.exec.Apply(ctx, d); res.Status != tt.want {
			t.Errorf("%s: Apply = %s (%s), want %s", tt.name, res.Status, res.Reason, tt.want)
		}
	}
	if got := len(h.state(t, "u1").Warnings); got != 3 {
		t.Errorf("warnings = %d, want 3", got)
	}
}

func TestExecutor_SuspensionWaitsForGracePeriod(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	ctx := context.Background()

	h.exec.Apply(ctx, directive("u1", suspendFirst))
	if enforced, _ := h.enforcer.calls(); len(enforced) != 0 {
		t.Fatalf("enforced during grace: %v", enforced)
	}

	h.clock.Advance(10 * time.Minute)
	if _, err := h.exec.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if enforced, _ := h.enforcer.calls(); len(enforced) != 0 {
		t.Fatalf("enforced before grace ended: %v", enforced)
	}

	h.clock.Advance(5 * time.Minute)
	stats, err := h.exec.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.Activated != 1 {
		t.Errorf("Activated = %d, want 1", stats.Activated)
	}
	enforced, _ := h.enforcer.calls()
	if len(enforced) != 1 || enforced[0] != suspendFirst {
		t.Fatalf("enforced = %v, want [%v]", enforced, suspendFirst)
	}
	if a, _ := h.state(t, "u1").ActiveOf(models.ActionTemporarySuspension); !a.Enforced {
		t.Error("suspension not marked enforced")
	}

	// nothing left to do
	h.exec.Sweep(ctx)
	if enforced, _ := h.enforcer.calls(); len(enforced) != 1 {
		t.Errorf("re-enforced on later sweep: %v", enforced)
	}
}

func TestExecutor_RateLimitTiersEscalate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	ctx := context.Background()

	if res := h.exec.Apply(ctx, directive("u1", rateLight)); res.Status != StatusApplied {
		t.Fatalf("Apply light = %s", res.Status)
	}
	if res := h.exec.Apply(ctx, directive("u1", rateLight)); res.Status != StatusSkipped {
		t.Errorf("Apply light again = %s, want skipped", res.Status)
	}
	if res := h.exec.Apply(ctx, directive("u1", rateModerate)); res.Status != StatusApplied {
		t.Fatalf("Apply moderate = %s", res.Status)
	}

	enforced, _ := h.enforcer.calls()
	if want := []models.Action{rateLight, rateModerate}; !reflect.DeepEqual(enforced, want) {
		t.Errorf("enforced = %v, want %v", enforced, want)
	}
	s := h.state(t, "u1")
	if got := s.RateLimitsSince(epoch); got != 2 {
		t.Errorf("RateLimitsSince = %d, want 2", got)
	}
	if s.Status != escalation.StatusEscalating {
		t.Errorf("Status = %s, want escalating", s.Status)
	}
}

func TestExecutor_EnforcementFailures(t *testing.T) {
	t.Parallel()

	transient := fmt.Errorf("%w: status 503", identity.ErrTransient)
	permanent := errors.New("subject locked by another process")

	tests := []struct {
		name       string
		errs       []error
		wantStatus Status
		wantCalls  int
		wantNotify int
	}{
		{"success", nil, StatusApplied, 1, 0},
		{"transient then success", []error{transient}, StatusApplied, 2, 0},
		{"transient twice", []error{transient, transient}, StatusApplyFailed, 2, 1},
		{"permanent", []error{permanent}, StatusApplyFailed, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, testConfig())
			h.enforcer.errs = tt.errs

			res := h.exec.Apply(context.Background(), directive("u1", rateLight))
			if res.Status != tt.wantStatus {
				t.Errorf("Status = %s (%s), want %s", res.Status, res.Reason, tt.wantStatus)
			}
			if enforced, _ := h.enforcer.calls(); len(enforced) != tt.wantCalls {
				t.Errorf("Enforce calls = %d, want %d", len(enforced), tt.wantCalls)
			}
			if got := h.notifier.count(); got != tt.wantNotify {
				t.Errorf("notifications = %d, want %d", got, tt.wantNotify)
			}

			a, ok := h.state(t, "u1").ActiveOf(models.ActionRateLimit)
			if !ok {
				t.Fatal("rate limit not recorded")
			}
			failed := tt.wantStatus == StatusApplyFailed
			if a.Enforced == failed || a.FailedAt.IsZero() != !failed {
				t.Errorf("active = %+v, want enforced=%v", a, !failed)
			}
		})
	}
}

func TestExecutor_FailedEnforcementRetriedBySweep(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	ctx := context.Background()
	transient := fmt.Errorf("%w: timeout", identity.ErrTransient)
	h.enforcer.errs = []error{transient, transient}

	if res := h.exec.Apply(ctx, directive("u1", rateLight)); res.Status != StatusApplyFailed {
		t.Fatalf("Apply = %s, want apply_failed", res.Status)
	}

	h.clock.Advance(time.Minute)
	stats, err := h.exec.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.EnforceFailed != 0 {
		t.Errorf("EnforceFailed = %d, want 0", stats.EnforceFailed)
	}
	if a, _ := h.state(t, "u1").ActiveOf(models.ActionRateLimit); !a.Enforced {
		t.Error("rate limit still unenforced after sweep retry")
	}
}

func TestExecutor_DoesNotHoldLockDuringEnforcement(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testConfig())
	h.enforcer.gate = make(chan struct{})
	h.enforcer.entered = make(chan struct{}, 1)
	ctx := context.Background()

	done := make(chan Result, 1)
	go func() { done <- h.exec.Apply(ctx, directive("u1", rateLight)) }()
	<-h.enforcer.entered

	updated := make(chan error, 1)
	go func() {
		_, err := h.tracker.Update(ctx, "u1", func(s *escalation.State) error {
			s.ConsecutiveCritical = 1
			return nil
		})
		updated <- err
	}()

	select {
	case err := <-updated:
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("state update blocked while enforcement call was in flight")
	}

	close(h.enforcer.gate)
	if res := <-done; res.Status != StatusApplied {
		t.Errorf("Apply = %s", res.Status)
	}
	s := h.state(t, "u1")
	if a, _ := s.ActiveOf(models.ActionRateLimit); !a.Enforced || s.ConsecutiveCritical != 1 {
		t.Errorf("reconciled state lost an update: enforced=%v critical=%d", a.Enforced, s.ConsecutiveCritical)
	}
}
