// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package models

import (
	"fmt"
	"strings"
	"time"
)

// Level is one of five ordered severity classifications of a risk score.
type Level int

const (
	LevelSafe Level = iota
	LevelAttention
	LevelWarning
	LevelCritical
	LevelEmergency
)

// AllLevels lists the levels in ascending order.
var AllLevels = []Level{LevelSafe, LevelAttention, LevelWarning, LevelCritical, LevelEmergency}

var levelNames = map[Level]string{
	LevelSafe:      "safe",
	LevelAttention: "attention",
	LevelWarning:   "warning",
	LevelCritical:  "critical",
	LevelEmergency: "emergency",
}

// String returns the lowercase level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return LevelSafe, fmt.Errorf("unknown level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// FactorKind names a scoring factor.
type FactorKind string

const (
	FactorMassUpload          FactorKind = "mass_upload"
	FactorInvalidFileType     FactorKind = "invalid_file_type"
	FactorFailedLogins        FactorKind = "failed_logins"
	FactorRapidProfileChange  FactorKind = "rapid_profile_change"
	FactorAPIAbuse            FactorKind = "api_abuse"
	FactorNewAccount          FactorKind = "new_account"
	FactorSuspiciousUserAgent FactorKind = "suspicious_user_agent"
	FactorMultipleIPs         FactorKind = "multiple_ips"
	FactorOffHoursActivity    FactorKind = "off_hours_activity"
	FactorRepeatedPattern     FactorKind = "repeated_pattern"
	FactorMassiveRequests     FactorKind = "massive_requests"
)

// FactorContribution records why a factor did or did not add to the score.
type FactorContribution struct {
	Factor       FactorKind `json:"factor"`
	Count        int        `json:"count"`
	Threshold    int        `json:"threshold"`
	Weight       int        `json:"weight"`
	Multiplier   float64    `json:"multiplier"`
	Contribution float64    `json:"contribution"`
}

// Assessment is the ephemeral result of scoring one subject.
type Assessment struct {
	SubjectID     string               `json:"subject_id"`
	RawScore      int                  `json:"raw_score"`
	AdjustedScore int                  `json:"adjusted_score"`
	Level         Level                `json:"level"`
	Factors       []FactorContribution `json:"factors,omitempty"`
	Multiplier    float64              `json:"multiplier"`
	Role          Role                 `json:"role,omitempty"`
	Load          LoadBracket          `json:"load,omitempty"`
	Exempt        bool                 `json:"exempt"`
	EvaluatedAt   time.Time            `json:"evaluated_at"`
}

// PrimaryFactor returns the triggered factor with the largest contribution.
// Ties resolve to the earlier factor. Returns "" when nothing triggered.
func (a *Assessment) PrimaryFactor() FactorKind {
	var best FactorKind
	bestScore := 0.0
	for _, f := range a.Factors {
		if f.Contribution > bestScore {
			best = f.Factor
			bestScore = f.Contribution
		}
	}
	return best
}

// Triggered returns the factors that contributed to the raw score.
func (a *Assessment) Triggered() []FactorKind {
	out := make([]FactorKind, 0, len(a.Factors))
	for _, f := range a.Factors {
		if f.Contribution > 0 {
			out = append(out, f.Factor)
		}
	}
	return out
}
