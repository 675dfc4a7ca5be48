// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Adjuster applies contextual multipliers to factor contributions and totals.
type Adjuster struct {
	roles                map[models.Role]float64
	loads                map[models.LoadBracket]float64
	factors              map[models.FactorKind]float64
	newAccountDays       int
	newAccountMultiplier float64
	offStart             int
	offEnd               int
	location             *time.Location
}

// NewAdjuster builds an adjuster from the adaptive configuration.
func NewAdjuster(cfg config.AdaptiveConfig) (*Adjuster, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "adaptive.timezone", Reason: err.Error()}
		}
		loc = l
	}

	a := &Adjuster{
		roles:                make(map[models.Role]float64, len(cfg.RoleMultipliers)),
		loads:                make(map[models.LoadBracket]float64, len(cfg.LoadMultipliers)),
		factors:              make(map[models.FactorKind]float64, len(cfg.FactorMultipliers)),
		newAccountDays:       cfg.NewAccountDays,
		newAccountMultiplier: cfg.NewAccountMultiplier,
		offStart:             cfg.OffHoursStart,
		offEnd:               cfg.OffHoursEnd,
		location:             loc,
	}
	for role, m := range cfg.RoleMultipliers {
		if m <= 0 {
			return nil, &config.ConfigurationError{Field: "adaptive.role_multipliers." + role, Reason: fmt.Sprintf("multiplier %v must be positive", m)}
		}
		a.roles[models.Role(role)] = m
	}
	for bracket, m := range cfg.LoadMultipliers {
		if m <= 0 {
			return nil, &config.ConfigurationError{Field: "adaptive.load_multipliers." + bracket, Reason: fmt.Sprintf("multiplier %v must be positive", m)}
		}
		a.loads[models.LoadBracket(bracket)] = m
	}
	for factor, m := range cfg.FactorMultipliers {
		a.factors[models.FactorKind(factor)] = m
	}
	if a.newAccountMultiplier <= 0 {
		a.newAccountMultiplier = 1
	}
	return a, nil
}

// FactorMultiplier returns the factor-scoped multiplier, 1 when unset.
func (a *Adjuster) FactorMultiplier(f models.FactorKind) float64 {
	if m, ok := a.factors[f]; ok {
		return m
	}
	return 1
}

// ThresholdMultiplier returns the product of role, account-age and load multipliers.
// Unknown roles and brackets contribute 1.
func (a *Adjuster) ThresholdMultiplier(subject models.Subject, load models.LoadBracket) float64 {
	m := 1.0
	if rm, ok := a.roles[subject.Role]; ok {
		m *= rm
	}
	if a.newAccountDays > 0 && subject.AccountAgeDays < a.newAccountDays {
		m *= a.newAccountMultiplier
	}
	if lm, ok := a.loads[load]; ok {
		m *= lm
	}
	return m
}

// Adjust divides the summed contribution by the threshold multiplier, rounds,
// and clamps the result to [MinScore, MaxScore].
func (a *Adjuster) Adjust(sum float64, subject models.Subject, load models.LoadBracket) (int, float64) {
	m := a.ThresholdMultiplier(subject, load)
	return Clamp(sum / m), m
}

// Clamp rounds a score and bounds it to [MinScore, MaxScore]. NaN maps to MinScore.
func Clamp(score float64) int {
	switch {
	case math.IsNaN(score):
		return MinScore
	case score <= MinScore:
		return MinScore
	case score >= MaxScore:
		return MaxScore
	}
	return int(math.Round(score))
}

// IsOffHours reports whether t falls inside the configured off-hours window.
// A window whose start is after its end wraps midnight. Equal start and end
// disables the window.
func (a *Adjuster) IsOffHours(t time.Time) bool {
	if a.offStart == a.offEnd {
		return false
	}
	h := t.In(a.location).Hour()
	if a.offStart < a.offEnd {
		return h >= a.offStart && h < a.offEnd
	}
	return h >= a.offStart || h < a.offEnd
}
