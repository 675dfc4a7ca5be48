// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package models

import "time"

// Severity is the severity of an alert envelope.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllSeverities lists alert severities in ascending order.
var AllSeverities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// SeverityForLevel maps a classification level to an alert severity.
// Safe has no alert severity and maps to low.
func SeverityForLevel(l Level) Severity {
	switch l {
	case LevelEmergency:
		return SeverityCritical
	case LevelCritical:
		return SeverityHigh
	case LevelWarning:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Envelope is one conceptual alert. It is fanned out to one or more channels.
type Envelope struct {
	ID          string      `json:"id"`
	Severity    Severity    `json:"severity"`
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	SubjectID   string      `json:"subject_id"`
	Action      Action      `json:"action"`
	DirectiveID string      `json:"directive_id,omitempty"`
	Rule        string      `json:"rule,omitempty"`
	Evidence    *Assessment `json:"evidence,omitempty"`
	Channels    []string    `json:"channels"`
	CreatedAt   time.Time   `json:"created_at"`
}
