// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"safe", LevelSafe, false},
		{"Attention", LevelAttention, false},
		{" warning ", LevelWarning, false},
		{"CRITICAL", LevelCritical, false},
		{"emergency", LevelEmergency, false},
		{"severe", LevelSafe, true},
		{"", LevelSafe, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevel_JSONUsesNames(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		Level Level `json:"level"`
	}{LevelCritical})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"level":"critical"}` {
		t.Errorf("Marshal = %s", data)
	}

	var decoded struct {
		Level Level `json:"level"`
	}
	if err := json.Unmarshal([]byte(`{"level":"emergency"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Level != LevelEmergency {
		t.Errorf("Level = %v, want emergency", decoded.Level)
	}
	if err := json.Unmarshal([]byte(`{"level":"meltdown"}`), &decoded); err == nil {
		t.Error("expected error for unknown level name")
	}
}

func TestLevel_StringUnknown(t *testing.T) {
	t.Parallel()
	if got := Level(42).String(); got != "level(42)" {
		t.Errorf("String() = %q", got)
	}
}

func TestAction_SeverityOrdering(t *testing.T) {
	t.Parallel()

	// Ascending order; each action must outrank the previous one.
	ordered := []Action{
		{Kind: ActionNone},
		{Kind: ActionMonitor},
		{Kind: ActionAutoReport},
		{Kind: ActionRateLimit, Tier: TierLight},
		{Kind: ActionRateLimit, Tier: TierModerate},
		{Kind: ActionRateLimit, Tier: TierStrict},
		{Kind: ActionWarning},
		{Kind: ActionContentQuarantine},
		{Kind: ActionTemporarySuspension, Tier: TierFirst},
		{Kind: ActionTemporarySuspension, Tier: TierSecond},
		{Kind: ActionTemporarySuspension, Tier: TierThird},
		{Kind: ActionTemporarySuspension, Tier: TierSubsequent},
		{Kind: ActionImmediateBlock},
	}
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if cur.Severity() <= prev.Severity() {
			t.Errorf("%s (%d) should outrank %s (%d)", cur, cur.Severity(), prev, prev.Severity())
		}
	}
}

func TestActionKind_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind     ActionKind
		valid    bool
		enforced bool
	}{
		{ActionNone, true, false},
		{ActionMonitor, true, false},
		{ActionAutoReport, true, false},
		{ActionWarning, true, false},
		{ActionRateLimit, true, true},
		{ActionContentQuarantine, true, true},
		{ActionTemporarySuspension, true, true},
		{ActionImmediateBlock, true, true},
		{ActionLift, false, false},
		{ActionKind("teleport"), false, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Valid(); got != tt.valid {
			t.Errorf("%s.Valid() = %v, want %v", tt.kind, got, tt.valid)
		}
		if got := tt.kind.Enforced(); got != tt.enforced {
			t.Errorf("%s.Enforced() = %v, want %v", tt.kind, got, tt.enforced)
		}
	}
}

func TestDirective_Primary(t *testing.T) {
	t.Parallel()

	d := &Directive{Actions: []Action{
		{Kind: ActionMonitor},
		{Kind: ActionTemporarySuspension, Tier: TierSecond},
		{Kind: ActionAutoReport},
	}}
	if p := d.Primary(); p.Kind != ActionTemporarySuspension || p.Tier != TierSecond {
		t.Errorf("Primary() = %s", p)
	}
	if d.IsNoop() {
		t.Error("IsNoop() = true for a directive with actions")
	}
	if !d.Has(ActionAutoReport) || d.Has(ActionImmediateBlock) {
		t.Error("Has() mismatch")
	}

	empty := &Directive{}
	if !empty.IsNoop() || empty.Primary().Kind != ActionNone {
		t.Error("empty directive should be a no-op")
	}
}

func TestAction_String(t *testing.T) {
	t.Parallel()
	if got := (Action{Kind: ActionRateLimit, Tier: TierStrict}).String(); got != "rate_limit/strict" {
		t.Errorf("String() = %q", got)
	}
	if got := (Action{Kind: ActionWarning}).String(); got != "warning" {
		t.Errorf("String() = %q", got)
	}
}

func TestSeverityForLevel(t *testing.T) {
	t.Parallel()

	want := map[Level]Severity{
		LevelSafe:      SeverityLow,
		LevelAttention: SeverityLow,
		LevelWarning:   SeverityMedium,
		LevelCritical:  SeverityHigh,
		LevelEmergency: SeverityCritical,
	}
	for _, l := range AllLevels {
		if got := SeverityForLevel(l); got != want[l] {
			t.Errorf("SeverityForLevel(%s) = %s, want %s", l, got, want[l])
		}
	}
}

func TestSignalKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind     SignalKind
		external bool
		known    bool
		security bool
	}{
		{SignalUpload, true, true, false},
		{SignalLoginFailure, true, true, false},
		{SignalMalware, true, true, true},
		{SignalSecurityThreat, true, true, true},
		{SignalOffHours, false, true, false},
		{SignalIPUser, false, true, false},
		{SignalKind("teleport"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			if got := IsExternalSignal(tt.kind); got != tt.external {
				t.Errorf("IsExternalSignal = %v", got)
			}
			if got := IsKnownSignal(tt.kind); got != tt.known {
				t.Errorf("IsKnownSignal = %v", got)
			}
			if got := IsSecuritySignal(tt.kind); got != tt.security {
				t.Errorf("IsSecuritySignal = %v", got)
			}
		})
	}
}

func TestIPSubjectID(t *testing.T) {
	t.Parallel()
	id := IPSubjectID("203.0.113.7")
	if !strings.HasPrefix(id, IPSubjectPrefix) || !IsIPSubject(id) {
		t.Errorf("IPSubjectID = %q", id)
	}
	if IsIPSubject("u-42") {
		t.Error("plain user id reported as IP subject")
	}
}
