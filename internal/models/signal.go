// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package models

import "time"

// SignalKind identifies a behavioral event type.
type SignalKind string

const (
	SignalUpload              SignalKind = "upload"
	SignalInvalidFileType     SignalKind = "invalid_file_type"
	SignalLoginFailure        SignalKind = "login_failure"
	SignalProfileChange       SignalKind = "profile_change"
	SignalAPICall             SignalKind = "api_call"
	SignalRequest             SignalKind = "request"
	SignalSuspiciousUserAgent SignalKind = "suspicious_user_agent"
	SignalRepeatedPattern     SignalKind = "repeated_pattern"
	SignalSecurityThreat      SignalKind = "security_threat"
	SignalMalware             SignalKind = "malware"

	// Derived kinds are recorded by the engine, never by upstream callers.
	SignalOffHours SignalKind = "off_hours"
	SignalIPSeen   SignalKind = "ip_seen"
	SignalIPUser   SignalKind = "ip_user"
)

// Metadata keys understood by the engine.
const (
	MetaIP        = "ip"
	MetaUser      = "user"
	MetaUserAgent = "user_agent"
	MetaPattern   = "pattern"
)

var externalSignals = map[SignalKind]struct{}{
	SignalUpload:              {},
	SignalInvalidFileType:     {},
	SignalLoginFailure:        {},
	SignalProfileChange:       {},
	SignalAPICall:             {},
	SignalRequest:             {},
	SignalSuspiciousUserAgent: {},
	SignalRepeatedPattern:     {},
	SignalSecurityThreat:      {},
	SignalMalware:             {},
}

var derivedSignals = map[SignalKind]struct{}{
	SignalOffHours: {},
	SignalIPSeen:   {},
	SignalIPUser:   {},
}

// IsExternalSignal reports whether upstream collaborators may record the kind.
func IsExternalSignal(kind SignalKind) bool {
	_, ok := externalSignals[kind]
	return ok
}

// IsKnownSignal reports whether the kind is external or derived.
func IsKnownSignal(kind SignalKind) bool {
	if IsExternalSignal(kind) {
		return true
	}
	_, ok := derivedSignals[kind]
	return ok
}

// IsSecuritySignal reports whether the kind bypasses scoring and forces a block.
func IsSecuritySignal(kind SignalKind) bool {
	return kind == SignalSecurityThreat || kind == SignalMalware
}

// Signal is one observed occurrence.
type Signal struct {
	SubjectID string            `json:"subject_id" validate:"required,max=256"`
	Kind      SignalKind        `json:"kind" validate:"required,max=64"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
