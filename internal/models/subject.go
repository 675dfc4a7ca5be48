// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package models

import "strings"

// Role is the privilege role of a subject in the identity system.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// IPSubjectPrefix prefixes subject ids that represent an IP address rather than a user.
const IPSubjectPrefix = "ip:"

// Subject is the engine's read-only view of a user or IP address.
// It is owned by the identity system.
type Subject struct {
	ID             string `json:"id"`
	Role           Role   `json:"role"`
	AccountAgeDays int    `json:"account_age_days"`
	Exempt         bool   `json:"exempt"`
	IPAddress      string `json:"ip_address,omitempty"`
}

// IPSubjectID returns the subject id used to track an IP address.
func IPSubjectID(ip string) string {
	return IPSubjectPrefix + ip
}

// IsIPSubject reports whether the id refers to an IP subject.
func IsIPSubject(id string) bool {
	return strings.HasPrefix(id, IPSubjectPrefix)
}

// LoadBracket is the coarse system load reported by the load probe.
type LoadBracket string

const (
	LoadLow    LoadBracket = "low"
	LoadMedium LoadBracket = "medium"
	LoadHigh   LoadBracket = "high"
)
