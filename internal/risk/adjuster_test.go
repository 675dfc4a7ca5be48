// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package risk

import (
	"math"
	"testing"
	"time"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

func TestAdjuster_ThresholdMultiplier(t *testing.T) {
	t.Parallel()

	a, err := NewAdjuster(config.Defaults().Adaptive)
	if err != nil {
		t.Fatalf("NewAdjuster: %v", err)
	}

	tests := []struct {
		name    string
		subject models.Subject
		load    models.LoadBracket
		want    float64
	}{
		{"user low load", models.Subject{Role: models.RoleUser, AccountAgeDays: 100}, models.LoadLow, 1.0},
		{"admin", models.Subject{Role: models.RoleAdmin, AccountAgeDays: 100}, models.LoadLow, 2.0},
		{"moderator high load", models.Subject{Role: models.RoleModerator, AccountAgeDays: 100}, models.LoadHigh, 1.8},
		{"new user", models.Subject{Role: models.RoleUser, AccountAgeDays: 6}, models.LoadLow, 0.8},
		{"unknown role and bracket", models.Subject{Role: "guest", AccountAgeDays: 100}, "extreme", 1.0},
	}
	for _, tt := range tests {
		if got := a.ThresholdMultiplier(tt.subject, tt.load); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: ThresholdMultiplier = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAdjuster_FactorMultiplier(t *testing.T) {
	t.Parallel()

	a, err := NewAdjuster(config.Defaults().Adaptive)
	if err != nil {
		t.Fatalf("NewAdjuster: %v", err)
	}
	if got := a.FactorMultiplier(models.FactorOffHoursActivity); got != 1.5 {
		t.Errorf("off hours multiplier = %v, want 1.5", got)
	}
	if got := a.FactorMultiplier(models.FactorMassUpload); got != 1 {
		t.Errorf("mass upload multiplier = %v, want 1", got)
	}
}

func TestAdjuster_IsOffHours(t *testing.T) {
	t.Parallel()

	a, err := NewAdjuster(config.Defaults().Adaptive) // 22:00-06:00 UTC
	if err != nil {
		t.Fatalf("NewAdjuster: %v", err)
	}
	at := func(h int) time.Time { return time.Date(2026, 3, 2, h, 30, 0, 0, time.UTC) }

	for h, want := range map[int]bool{21: false, 22: true, 23: true, 0: true, 5: true, 6: false, 12: false} {
		if got := a.IsOffHours(at(h)); got != want {
			t.Errorf("IsOffHours(%02d:30) = %v, want %v", h, got, want)
		}
	}

	cfg := config.Defaults().Adaptive
	cfg.OffHoursStart, cfg.OffHoursEnd = 9, 17
	day, err := NewAdjuster(cfg)
	if err != nil {
		t.Fatalf("NewAdjuster: %v", err)
	}
	if !day.IsOffHours(at(10)) || day.IsOffHours(at(17)) {
		t.Error("non-wrapping window 09-17 misclassified")
	}

	cfg.OffHoursStart, cfg.OffHoursEnd = 3, 3
	never, err := NewAdjuster(cfg)
	if err != nil {
		t.Fatalf("NewAdjuster: %v", err)
	}
	if never.IsOffHours(at(3)) {
		t.Error("equal start and end should disable off hours")
	}
}

func TestNewAdjuster_Errors(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults().Adaptive
	cfg.Timezone = "Mars/Olympus"
	if _, err := NewAdjuster(cfg); err == nil {
		t.Error("expected error for unknown timezone")
	}

	cfg = config.Defaults().Adaptive
	cfg.RoleMultipliers = map[string]float64{"admin": 0}
	if _, err := NewAdjuster(cfg); err == nil {
		t.Error("expected error for zero role multiplier")
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want int
	}{
		{-3, 0},
		{0, 0},
		{14.4, 14},
		{14.5, 15},
		{99.6, 100},
		{1e9, 100},
		{math.Inf(1), 100},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
