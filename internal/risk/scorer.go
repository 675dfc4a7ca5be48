// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package risk

import (
	"time"

	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// SignalCounter reads trailing window counts. *signals.Recorder implements it.
type SignalCounter interface {
	Count(subjectID string, kind models.SignalKind, window time.Duration) int
	CountDistinct(subjectID string, kind models.SignalKind, window time.Duration, key string) int
}

// Factor is one weighted scoring rule.
type Factor struct {
	Kind      models.FactorKind
	Signal    models.SignalKind
	Threshold int
	Window    time.Duration
	Weight    int
	// Distinct counts unique values of this metadata key instead of occurrences.
	Distinct string
	// MaxAccountAgeDays makes this an account-age factor with no signal window.
	MaxAccountAgeDays int
}

// Scorer produces risk assessments from the current signal windows.
type Scorer struct {
	factors    []Factor
	counter    SignalCounter
	adjuster   *Adjuster
	classifier *Classifier
	exemptions *Exemptions
	clock      clock.Clock
}

// NewScorer compiles the enabled factors and the adaptive, level and exemption
// configuration into a scorer.
func NewScorer(cfg *config.Config, counter SignalCounter, clk clock.Clock) (*Scorer, error) {
	adjuster, err := NewAdjuster(cfg.Adaptive)
	if err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(cfg.Levels)
	if err != nil {
		return nil, err
	}
	exemptions, err := NewExemptions(cfg.Exemptions)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real{}
	}

	s := &Scorer{
		factors:    make([]Factor, 0, len(cfg.Factors)),
		counter:    counter,
		adjuster:   adjuster,
		classifier: classifier,
		exemptions: exemptions,
		clock:      clk,
	}
	for _, f := range cfg.Factors {
		if !f.Enabled {
			continue
		}
		s.factors = append(s.factors, Factor{
			Kind:              models.FactorKind(f.Name),
			Signal:            models.SignalKind(f.Signal),
			Threshold:         f.Threshold,
			Window:            f.Window,
			Weight:            f.Weight,
			Distinct:          f.Distinct,
			MaxAccountAgeDays: f.MaxAccountAgeDays,
		})
	}
	return s, nil
}

// Factors returns the enabled factors in declaration order.
func (s *Scorer) Factors() []Factor {
	out := make([]Factor, len(s.factors))
	copy(out, s.factors)
	return out
}

// Adjuster exposes the adaptive adjuster, used to derive off-hours signals.
func (s *Scorer) Adjuster() *Adjuster { return s.adjuster }

// Classifier exposes the level classifier.
func (s *Scorer) Classifier() *Classifier { return s.classifier }

// Exemptions exposes the compiled exemption rules.
func (s *Scorer) Exemptions() *Exemptions { return s.exemptions }

// Score evaluates every enabled factor for subject and classifies the result.
// It reads the windows but never mutates engine state beyond lazy pruning.
func (s *Scorer) Score(subject models.Subject, load models.LoadBracket) models.Assessment {
	a := models.Assessment{
		SubjectID:   subject.ID,
		Role:        subject.Role,
		Load:        load,
		EvaluatedAt: s.clock.Now(),
	}

	sum := 0.0
	for _, f := range s.factors {
		count, threshold, triggered := s.evaluate(f, subject)
		if !triggered {
			continue
		}
		fm := s.adjuster.FactorMultiplier(f.Kind)
		contribution := float64(f.Weight) * fm
		a.RawScore += f.Weight
		sum += contribution
		a.Factors = append(a.Factors, models.FactorContribution{
			Factor:       f.Kind,
			Count:        count,
			Threshold:    threshold,
			Weight:       f.Weight,
			Multiplier:   fm,
			Contribution: contribution,
		})
	}

	a.AdjustedScore, a.Multiplier = s.adjuster.Adjust(sum, subject, load)
	a.Exempt = s.exemptions.IsExempt(subject)
	a.Level = s.classifier.ClassifySubject(a.AdjustedScore, a.Exempt)
	return a
}

func (s *Scorer) evaluate(f Factor, subject models.Subject) (count, threshold int, triggered bool) {
	if f.MaxAccountAgeDays > 0 {
		if models.IsIPSubject(subject.ID) {
			return 0, f.MaxAccountAgeDays, false
		}
		return subject.AccountAgeDays, f.MaxAccountAgeDays, subject.AccountAgeDays < f.MaxAccountAgeDays
	}

	if f.Distinct != "" {
		count = s.counter.CountDistinct(subject.ID, f.Signal, f.Window, f.Distinct)
	} else {
		count = s.counter.Count(subject.ID, f.Signal, f.Window)
	}
	return count, f.Threshold, count >= f.Threshold
}
