// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// Tracker owns every escalation record and serializes updates per subject.
type Tracker struct {
	store Store
	clock clock.Clock

	historySize     int
	incidentHorizon time.Duration
	scoreHorizon    time.Duration

	locks   sync.Map // subject id -> *subjectLock
	pending sync.Map // pending action id -> subject id
}

// NewTracker creates a tracker over store and rebuilds the pending
// confirmation index from persisted records.
func NewTracker(ctx context.Context, store Store, cfg *config.Config, clk clock.Clock) (*Tracker, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	t := &Tracker{
		store:           store,
		clock:           clk,
		historySize:     cfg.Escalation.ScoreHistorySize,
		incidentHorizon: cfg.Actions.RateLimit.EscalationWindow,
		scoreHorizon:    0,
	}
	if t.historySize <= 0 {
		t.historySize = 32
	}
	if cfg.Cooldowns.SameType > t.incidentHorizon {
		t.incidentHorizon = cfg.Cooldowns.SameType
	}
	for _, r := range cfg.Escalation.Rules {
		switch r.Condition {
		case config.ConditionRapidScoreIncrease, config.ConditionSustainedHighScore:
			if r.Window > t.scoreHorizon {
				t.scoreHorizon = r.Window
			}
		case config.ConditionWarningLimit, config.ConditionRepeatedViolations:
			if r.Window > t.incidentHorizon {
				t.incidentHorizon = r.Window
			}
		}
	}
	// one extra window so a streak that started just before the horizon is still visible
	t.scoreHorizon *= 2

	states, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load escalation states: %w", err)
	}
	for _, s := range states {
		if s.Pending != nil {
			t.pending.Store(s.Pending.ID, s.SubjectID)
		}
	}
	return t, nil
}

// IncidentHorizon is how long warnings, violations and rate-limit history are kept.
func (t *Tracker) IncidentHorizon() time.Duration { return t.incidentHorizon }

type subjectLock struct {
	mu      sync.Mutex
	removed bool
}

// lock acquires the subject's mutex, retrying when the entry was removed
// while this goroutine waited on it.
func (t *Tracker) lock(subjectID string) *subjectLock {
	for {
		v, _ := t.locks.LoadOrStore(subjectID, &subjectLock{})
		l := v.(*subjectLock)
		l.mu.Lock()
		if !l.removed {
			return l
		}
		l.mu.Unlock()
	}
}

// Get returns a copy of the subject's record, or a fresh Normal record.
func (t *Tracker) Get(ctx context.Context, subjectID string) (*State, error) {
	s, err := t.store.Get(ctx, subjectID)
	if errors.Is(err, ErrStateNotFound) {
		return NewState(subjectID), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Update runs fn against the subject's record under the subject lock and
// persists the result. When fn returns an error nothing is written. Records
// that end up Empty are deleted.
func (t *Tracker) Update(ctx context.Context, subjectID string, fn func(*State) error) (*State, error) {
	l := t.lock(subjectID)
	defer l.mu.Unlock()

	s, err := t.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	var before string
	if s.Pending != nil {
		before = s.Pending.ID
	}

	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = t.clock.Now()

	if s.Empty() {
		err = t.store.Delete(ctx, subjectID)
		if err == nil {
			l.removed = true
			t.locks.Delete(subjectID)
		}
	} else {
		err = t.store.Put(ctx, s)
	}
	if err != nil {
		return nil, fmt.Errorf("persist escalation state: %w", err)
	}

	var after string
	if s.Pending != nil {
		after = s.Pending.ID
	}
	if before != after {
		if before != "" {
			t.pending.Delete(before)
		}
		if after != "" {
			t.pending.Store(after, subjectID)
		}
	}
	return s.Clone(), nil
}

// Observe appends the assessment to the score history and advances the state
// machine for warning-or-above classifications.
func (t *Tracker) Observe(ctx context.Context, a models.Assessment) (*State, error) {
	return t.Update(ctx, a.SubjectID, func(s *State) error {
		at := a.EvaluatedAt
		if at.IsZero() {
			at = t.clock.Now()
		}
		s.Scores = append(s.Scores, ScorePoint{At: at, Score: a.AdjustedScore, Level: a.Level})
		if over := len(s.Scores) - t.historySize; over > 0 {
			s.Scores = s.Scores[over:]
		}

		if !a.Exempt && a.Level >= models.LevelCritical {
			s.ConsecutiveCritical++
		} else {
			s.ConsecutiveCritical = 0
		}

		if !a.Exempt && a.Level >= models.LevelWarning {
			markTriggered(s, at)
		}
		return nil
	})
}

// MarkTriggered records that an escalation rule fired for the subject.
func (t *Tracker) MarkTriggered(ctx context.Context, subjectID string) (*State, error) {
	now := t.clock.Now()
	return t.Update(ctx, subjectID, func(s *State) error {
		markTriggered(s, now)
		return nil
	})
}

func markTriggered(s *State, at time.Time) {
	s.LastIncidentAt = at
	switch s.Status {
	case StatusNormal:
		s.Status = StatusEscalating
	case StatusSuspended, StatusBlocked:
		s.Flagged = true
	}
}

// SubjectForPending resolves a pending confirmation id to its subject.
func (t *Tracker) SubjectForPending(actionID string) (string, bool) {
	v, ok := t.pending.Load(actionID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// List returns copies of every stored record.
func (t *Tracker) List(ctx context.Context) ([]*State, error) {
	return t.store.List(ctx)
}

// Compact prunes history for every record and deletes records left empty.
// Each record is locked only for its own update.
func (t *Tracker) Compact(ctx context.Context) (int, error) {
	states, err := t.store.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, st := range states {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		now := t.clock.Now()
		updated, err := t.Update(ctx, st.SubjectID, func(s *State) error {
			s.Prune(now, t.incidentHorizon, t.scoreHorizon)
			if s.Status == StatusEscalating && len(s.Active) == 0 && s.Pending == nil &&
				now.Sub(s.LastIncidentAt) >= t.incidentHorizon {
				s.Status = StatusNormal
				s.ConsecutiveCritical = 0
			}
			return nil
		})
		if err != nil {
			return removed, err
		}
		if updated.Empty() {
			removed++
		}
	}
	return removed, nil
}
