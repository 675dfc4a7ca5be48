// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package engine

import (
	"context"
	"sort"
	"time"

	"github.com/tomtom215/riskguard/internal/action"
	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
)

// SweepReport summarizes one maintenance tick.
type SweepReport struct {
	At              time.Time         `json:"at"`
	Lifecycle       action.SweepStats `json:"lifecycle"`
	SignalSubjects  int               `json:"signal_subjects_removed"`
	AlertKeys       int               `json:"alert_keys_removed"`
	StatesCompacted int               `json:"states_compacted"`
	PolicyReview    bool              `json:"policy_review"`
	StatusCounts    map[string]int    `json:"status_counts"`
	NonNormal       []string          `json:"non_normal,omitempty"`
	Duration        time.Duration     `json:"duration"`
}

// Sweeper drives the time-based half of the pipeline on a ticker.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	review   time.Duration

	lastReview time.Time
}

// NewSweeper creates a sweeper for the engine using the sweep config.
func NewSweeper(e *Engine) *Sweeper {
	return &Sweeper{
		engine:   e,
		interval: e.cfg.Sweep.Interval,
		review:   e.cfg.Sweep.PolicyReviewInterval,
	}
}

// Tick runs one sweep. Each step locks one subject at a time, so ticks do
// not stall concurrent evaluations.
func (s *Sweeper) Tick(ctx context.Context) SweepReport {
	start := time.Now()
	e := s.engine
	now := e.clock.Now()
	report := SweepReport{At: now}

	stats, err := e.executor.Sweep(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Lifecycle sweep failed")
	}
	report.Lifecycle = stats

	report.SignalSubjects = e.recorder.Sweep()
	metrics.SignalSubjects.Set(float64(e.recorder.Subjects()))
	report.AlertKeys = e.dispatcher.Prune(now)

	if report.StatesCompacted, err = e.tracker.Compact(ctx); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Escalation state compaction failed")
	}

	states, err := e.tracker.List(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Listing escalation states failed")
	}
	report.StatusCounts = map[string]int{}
	for _, st := range states {
		report.StatusCounts[string(st.Status)]++
		if st.Status != escalation.StatusNormal {
			report.NonNormal = append(report.NonNormal, st.SubjectID)
		}
	}
	sort.Strings(report.NonNormal)
	metrics.UpdateSubjectStatusCounts(report.StatusCounts)

	if s.lastReview.IsZero() || now.Sub(s.lastReview) >= s.review {
		s.lastReview = now
		report.PolicyReview = true
		s.policyReview(ctx, states)
	}

	report.Duration = time.Since(start)
	metrics.RecordSweep(report.Duration)
	logging.Ctx(ctx).Debug().
		Int("subjects", stats.Subjects).
		Int("activated", stats.Activated).
		Int("expired", stats.Expired).
		Int("review_started", stats.ReviewStarted).
		Int("review_resolved", stats.ReviewResolved).
		Int("pending", stats.Pending).
		Dur("duration", report.Duration).
		Msg("Sweep completed")
	return report
}

// policyReview logs every subject that is not Normal so operators can audit
// standing restrictions.
func (s *Sweeper) policyReview(ctx context.Context, states []*escalation.State) {
	logger := logging.Ctx(ctx)
	reviewed := 0
	for _, st := range states {
		if st.Status == escalation.StatusNormal {
			continue
		}
		reviewed++
		ev := logger.Info().
			Str("event", "policy_review").
			Str("subject_id", logging.SanitizeSubjectID(st.SubjectID)).
			Str("status", string(st.Status)).
			Int("suspensions", st.SuspensionCount).
			Int("active_actions", len(st.Active))
		if st.Pending != nil {
			ev = ev.Str("pending_id", st.Pending.ID).Time("pending_expires_at", st.Pending.ExpiresAt)
		}
		ev.Msg("Subject under restriction")
	}
	logger.Info().Int("restricted_subjects", reviewed).Int("tracked_subjects", len(states)).Msg("Policy review completed")
}

// Serve implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *Sweeper) String() string { return "sweeper" }
