// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := staticConfig()
	cfg.Mode = "http"
	cfg.URL = srv.URL
	cfg.APIKey = "test-key"
	c, err := NewHTTPClient(cfg, config.RateLimitTiers{LightPerMinute: 60, ModeratePerMinute: 20, StrictPerMinute: 5})
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}
	return c
}

func TestHTTPClient_Profile(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/subjects/user-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"user-1","role":"Admin","account_age_days":3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	got, err := c.Profile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	want := models.Subject{ID: "user-1", Role: models.RoleAdmin, AccountAgeDays: 3}
	if got != want {
		t.Errorf("Profile() = %+v, want %+v", got, want)
	}

	_, err = c.Profile(context.Background(), "missing")
	if !errors.Is(err, ErrUnknownSubject) {
		t.Errorf("Profile(missing) error = %v, want ErrUnknownSubject", err)
	}
	if IsTransient(err) {
		t.Error("unknown subject must not be transient")
	}
}

func TestHTTPClient_Enforce(t *testing.T) {
	t.Parallel()

	var got enforcementRequest
	var method, path string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	action := models.Action{Kind: models.ActionRateLimit, Tier: models.TierModerate, Duration: time.Hour}
	if err := c.Enforce(context.Background(), "user-1", action); err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if method != http.MethodPost || path != "/subjects/user-1/enforcement" {
		t.Errorf("request = %s %s", method, path)
	}
	want := enforcementRequest{Action: "rate_limit", Tier: "moderate", DurationSeconds: 3600, PerMinute: 20}
	if got != want {
		t.Errorf("payload = %+v, want %+v", got, want)
	}

	if err := c.Lift(context.Background(), "user-1", models.ActionRateLimit); err != nil {
		t.Fatalf("Lift() error = %v", err)
	}
	if method != http.MethodDelete || path != "/subjects/user-1/enforcement/rate_limit" {
		t.Errorf("lift request = %s %s", method, path)
	}
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"server error", http.StatusBadGateway, true},
		{"throttled", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
		{"forbidden", http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			err := c.Enforce(context.Background(), "user-1", models.Action{Kind: models.ActionImmediateBlock})
			if err == nil {
				t.Fatal("Enforce() error = nil")
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient(%v) = %v, want %v", err, IsTransient(err), tt.transient)
			}
			var se *StatusError
			if !tt.transient && (!errors.As(err, &se) || se.Code != tt.status) {
				t.Errorf("error = %v, want StatusError %d", err, tt.status)
			}
		})
	}
}

func TestHTTPClient_LiftMissingIsNotAnError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	if err := c.Lift(context.Background(), "user-1", models.ActionImmediateBlock); err != nil {
		t.Errorf("Lift() error = %v, want nil", err)
	}
}

func TestHTTPClient_BreakerOpensOnTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = c.Enforce(ctx, "user-1", models.Action{Kind: models.ActionImmediateBlock})
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls before trip = %d, want 3", got)
	}

	err := c.Enforce(ctx, "user-1", models.Action{Kind: models.ActionImmediateBlock})
	if !IsTransient(err) {
		t.Errorf("open breaker error = %v, want transient", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls after trip = %d, want 3 (request rejected by breaker)", got)
	}
}

func TestHTTPClient_PermanentErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	for i := 0; i < 6; i++ {
		_ = c.Enforce(context.Background(), "user-1", models.Action{Kind: models.ActionImmediateBlock})
	}
	if got := calls.Load(); got != 6 {
		t.Errorf("calls = %d, want 6", got)
	}
}
