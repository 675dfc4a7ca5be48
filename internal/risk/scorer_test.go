// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package risk

import (
	"testing"
	"time"

	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
	"github.com/tomtom215/riskguard/internal/signals"
)

var epoch = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// mockCounter returns fixed counts per signal kind.
type mockCounter struct {
	counts   map[models.SignalKind]int
	distinct map[models.SignalKind]int
}

func (m *mockCounter) Count(_ string, kind models.SignalKind, _ time.Duration) int {
	return m.counts[kind]
}

func (m *mockCounter) CountDistinct(_ string, kind models.SignalKind, _ time.Duration, _ string) int {
	return m.distinct[kind]
}

func newTestScorer(t *testing.T, cfg *config.Config, counter SignalCounter) *Scorer {
	t.Helper()
	s, err := NewScorer(cfg, counter, clock.NewFake(epoch))
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return s
}

func user(id string) models.Subject {
	return models.Subject{ID: id, Role: models.RoleUser, AccountAgeDays: 365}
}

func recordUploads(r *signals.Recorder, clk *clock.Fake, subjectID string, n int) {
	// n uploads spread across the last four minutes
	for i := 0; i < n; i++ {
		r.Record(subjectID, models.SignalUpload, clk.Now().Add(-time.Duration(i)*20*time.Second), nil)
	}
}

func TestScorer_UploadBurstReachesAttention(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(epoch)
	rec := signals.NewRecorder(clk, 48*time.Hour)
	recordUploads(rec, clk, "u1", 12)

	s, err := NewScorer(config.Defaults(), rec, clk)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}

	a := s.Score(user("u1"), models.LoadLow)
	if a.RawScore < 30 {
		t.Errorf("RawScore = %d, want >= 30", a.RawScore)
	}
	if a.Level < models.LevelAttention {
		t.Errorf("Level = %s, want at least attention", a.Level)
	}
	if got := a.PrimaryFactor(); got != models.FactorMassUpload {
		t.Errorf("PrimaryFactor = %q, want %q", got, models.FactorMassUpload)
	}
	if len(a.Factors) != 1 || a.Factors[0].Count != 12 || a.Factors[0].Threshold != 5 {
		t.Errorf("Factors = %+v, want single mass_upload with count 12 threshold 5", a.Factors)
	}
}

func TestScorer_AdminMultiplierLowersLevel(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Exemptions.Roles = nil

	clk := clock.NewFake(epoch)
	rec := signals.NewRecorder(clk, 48*time.Hour)
	recordUploads(rec, clk, "standard", 12)
	recordUploads(rec, clk, "admin", 12)

	s, err := NewScorer(cfg, rec, clk)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}

	standard := s.Score(user("standard"), models.LoadLow)
	admin := s.Score(models.Subject{ID: "admin", Role: models.RoleAdmin, AccountAgeDays: 365}, models.LoadLow)

	if admin.RawScore != standard.RawScore {
		t.Errorf("raw scores differ: admin %d, standard %d", admin.RawScore, standard.RawScore)
	}
	if admin.AdjustedScore != 15 {
		t.Errorf("admin AdjustedScore = %d, want 15", admin.AdjustedScore)
	}
	if admin.Multiplier != 2.0 {
		t.Errorf("admin Multiplier = %v, want 2.0", admin.Multiplier)
	}
	if admin.Exempt {
		t.Error("admin should not be exempt with role exemptions disabled")
	}
	if admin.Level >= standard.Level {
		t.Errorf("admin level %s should be lower than standard level %s", admin.Level, standard.Level)
	}
}

func TestScorer_Multipliers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		counts       map[models.SignalKind]int
		subject      models.Subject
		load         models.LoadBracket
		wantRaw      int
		wantAdjusted int
		wantLevel    models.Level
	}{
		{
			name:         "no signals",
			subject:      user("u"),
			load:         models.LoadLow,
			wantRaw:      0,
			wantAdjusted: 0,
			wantLevel:    models.LevelSafe,
		},
		{
			name:         "below threshold does not trigger",
			counts:       map[models.SignalKind]int{models.SignalUpload: 4},
			subject:      user("u"),
			load:         models.LoadLow,
			wantRaw:      0,
			wantAdjusted: 0,
			wantLevel:    models.LevelSafe,
		},
		{
			name:         "off hours factor scaled alone",
			counts:       map[models.SignalKind]int{models.SignalOffHours: 1, models.SignalUpload: 5},
			subject:      user("u"),
			load:         models.LoadLow,
			wantRaw:      40,
			wantAdjusted: 45, // 30 + 10*1.5
			wantLevel:    models.LevelWarning,
		},
		{
			name:         "new account lowers thresholds",
			counts:       map[models.SignalKind]int{models.SignalUpload: 5},
			subject:      models.Subject{ID: "n", Role: models.RoleUser, AccountAgeDays: 2},
			load:         models.LoadLow,
			wantRaw:      40, // mass_upload + new_account
			wantAdjusted: 50,
			wantLevel:    models.LevelWarning,
		},
		{
			name:         "high load raises thresholds",
			counts:       map[models.SignalKind]int{models.SignalUpload: 5},
			subject:      user("u"),
			load:         models.LoadHigh,
			wantRaw:      30,
			wantAdjusted: 25,
			wantLevel:    models.LevelAttention,
		},
		{
			name: "clamped at 100",
			counts: map[models.SignalKind]int{
				models.SignalUpload:          50,
				models.SignalRequest:         900,
				models.SignalAPICall:         200,
				models.SignalRepeatedPattern: 10,
			},
			subject:      user("u"),
			load:         models.LoadLow,
			wantRaw:      135,
			wantAdjusted: 100,
			wantLevel:    models.LevelEmergency,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestScorer(t, config.Defaults(), &mockCounter{counts: tt.counts})
			a := s.Score(tt.subject, tt.load)
			if a.RawScore != tt.wantRaw {
				t.Errorf("RawScore = %d, want %d", a.RawScore, tt.wantRaw)
			}
			if a.AdjustedScore != tt.wantAdjusted {
				t.Errorf("AdjustedScore = %d, want %d", a.AdjustedScore, tt.wantAdjusted)
			}
			if a.Level != tt.wantLevel {
				t.Errorf("Level = %s, want %s", a.Level, tt.wantLevel)
			}
		})
	}
}

func TestScorer_DistinctFactor(t *testing.T) {
	t.Parallel()

	counter := &mockCounter{
		counts:   map[models.SignalKind]int{models.SignalIPSeen: 10},
		distinct: map[models.SignalKind]int{models.SignalIPSeen: 2},
	}
	s := newTestScorer(t, config.Defaults(), counter)

	if a := s.Score(user("u"), models.LoadLow); a.RawScore != 0 {
		t.Errorf("two distinct ips RawScore = %d, want 0", a.RawScore)
	}

	counter.distinct[models.SignalIPSeen] = 3
	a := s.Score(user("u"), models.LoadLow)
	if a.RawScore != 25 {
		t.Errorf("three distinct ips RawScore = %d, want 25", a.RawScore)
	}
	if a.Factors[0].Factor != models.FactorMultipleIPs {
		t.Errorf("factor = %q, want %q", a.Factors[0].Factor, models.FactorMultipleIPs)
	}
}

func TestScorer_NewAccountIgnoredForIPSubjects(t *testing.T) {
	t.Parallel()

	s := newTestScorer(t, config.Defaults(), &mockCounter{})
	a := s.Score(models.Subject{ID: models.IPSubjectID("203.0.113.9")}, models.LoadLow)
	if a.RawScore != 0 {
		t.Errorf("RawScore = %d, want 0", a.RawScore)
	}
}

func TestScorer_DisabledFactorSkipped(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	for i := range cfg.Factors {
		if cfg.Factors[i].Name == string(models.FactorMassUpload) {
			cfg.Factors[i].Enabled = false
		}
	}
	s := newTestScorer(t, cfg, &mockCounter{counts: map[models.SignalKind]int{models.SignalUpload: 50}})

	if a := s.Score(user("u"), models.LoadLow); a.RawScore != 0 {
		t.Errorf("RawScore = %d, want 0", a.RawScore)
	}
	for _, f := range s.Factors() {
		if f.Kind == models.FactorMassUpload {
			t.Error("disabled factor present in Factors()")
		}
	}
}

func TestScorer_ExemptAlwaysSafe(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Exemptions.SubjectIDs = []string{"vip"}
	cfg.Exemptions.TrustedCIDRs = []string{"10.0.0.0/8"}

	counter := &mockCounter{counts: map[models.SignalKind]int{
		models.SignalUpload:  50,
		models.SignalRequest: 900,
		models.SignalAPICall: 200,
	}}
	s := newTestScorer(t, cfg, counter)

	subjects := []models.Subject{
		{ID: "mod", Role: models.RoleModerator, AccountAgeDays: 30},
		{ID: "adm", Role: models.RoleAdmin, AccountAgeDays: 30},
		{ID: "vip", Role: models.RoleUser, AccountAgeDays: 30},
		{ID: "flagged", Role: models.RoleUser, Exempt: true},
		{ID: "office", Role: models.RoleUser, IPAddress: "10.2.3.4"},
		{ID: models.IPSubjectID("10.9.9.9")},
	}
	for _, subj := range subjects {
		a := s.Score(subj, models.LoadLow)
		if !a.Exempt {
			t.Errorf("%s: Exempt = false, want true", subj.ID)
		}
		if a.Level != models.LevelSafe {
			t.Errorf("%s: Level = %s, want safe", subj.ID, a.Level)
		}
		if a.RawScore == 0 {
			t.Errorf("%s: RawScore = 0, scoring should still run", subj.ID)
		}
	}

	if a := s.Score(user("outsider"), models.LoadLow); a.Exempt || a.Level != models.LevelEmergency {
		t.Errorf("outsider: Exempt = %v Level = %s, want false emergency", a.Exempt, a.Level)
	}
}
