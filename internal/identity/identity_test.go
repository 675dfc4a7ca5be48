// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

func staticConfig() config.IdentityConfig {
	return config.IdentityConfig{
		Mode:                  "static",
		Timeout:               time.Second,
		BreakerMaxFailures:    3,
		BreakerTimeout:        time.Minute,
		DefaultRole:           "user",
		DefaultAccountAgeDays: 365,
	}
}

func TestStaticProvider_Profile(t *testing.T) {
	t.Parallel()

	p := NewStaticProvider(staticConfig())
	p.SetProfile(models.Subject{ID: "mod-1", Role: models.RoleModerator, AccountAgeDays: 30})

	tests := []struct {
		name string
		id   string
		want models.Subject
	}{
		{"default user", "user-1", models.Subject{ID: "user-1", Role: models.RoleUser, AccountAgeDays: 365}},
		{"override", "mod-1", models.Subject{ID: "mod-1", Role: models.RoleModerator, AccountAgeDays: 30}},
		{"ip subject", "ip:10.0.0.1", models.Subject{ID: "ip:10.0.0.1", AccountAgeDays: 365, IPAddress: "10.0.0.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.Profile(context.Background(), tt.id)
			if err != nil {
				t.Fatalf("Profile() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Profile() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStaticProvider_EnforceAndLift(t *testing.T) {
	t.Parallel()

	p := NewStaticProvider(staticConfig())
	ctx := context.Background()

	if err := p.Enforce(ctx, "user-1", models.Action{Kind: models.ActionRateLimit, Tier: models.TierLight}); err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if err := p.Enforce(ctx, "user-1", models.Action{Kind: models.ActionTemporarySuspension, Tier: models.TierFirst}); err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if got := len(p.Enforcements("user-1")); got != 2 {
		t.Fatalf("Enforcements() len = %d, want 2", got)
	}

	if err := p.Lift(ctx, "user-1", models.ActionRateLimit); err != nil {
		t.Fatalf("Lift() error = %v", err)
	}
	got := p.Enforcements("user-1")
	if len(got) != 1 || got[0].Kind != models.ActionTemporarySuspension {
		t.Errorf("Enforcements() after lift = %v", got)
	}

	// Lifting something never applied is fine.
	if err := p.Lift(ctx, "user-2", models.ActionImmediateBlock); err != nil {
		t.Errorf("Lift() unknown error = %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(staticConfig(), config.RateLimitTiers{}); err != nil {
		t.Errorf("New(static) error = %v", err)
	}

	cfg := staticConfig()
	cfg.Mode = "http"
	_, err := New(cfg, config.RateLimitTiers{})
	var cerr *config.ConfigurationError
	if !errors.As(err, &cerr) || cerr.Field != "identity.url" {
		t.Errorf("New(http without url) error = %v, want identity.url configuration error", err)
	}

	cfg.Mode = "ldap"
	if _, err := New(cfg, config.RateLimitTiers{}); !errors.As(err, &cerr) {
		t.Errorf("New(unknown mode) error = %v, want configuration error", err)
	}
}
