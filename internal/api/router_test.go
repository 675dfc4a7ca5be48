// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/engine"
	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/models"
)

func TestRouter_WithEngine(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Escalation.ReviewResolution = config.ReviewAutoReject
	eng, err := engine.New(context.Background(), cfg, engine.Dependencies{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	handler := NewRouter(NewHandler(eng), nil, nil).SetupChi()

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		if rec := post(`{"subject_id":"u-api","kind":"upload"}`); rec.Code != http.StatusOK {
			t.Fatalf("signal %d: status = %d (%s)", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := post(`{"subject_id":"u-api","kind":"teleport"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown kind: status = %d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	var out engine.Outcome
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Ignored || out.Reason != engine.ReasonUnknownKind {
		t.Errorf("unknown kind outcome = %+v, want ignored", out)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subjects/u-api/state", nil)
	srec := httptest.NewRecorder()
	handler.ServeHTTP(srec, req)
	if err := json.Unmarshal(srec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	var state escalation.State
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.Status != escalation.StatusNormal {
		t.Errorf("three uploads should not escalate: %s", state.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/subjects/u-api/assessment", nil)
	arec := httptest.NewRecorder()
	handler.ServeHTTP(arec, req)
	if err := json.Unmarshal(arec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	var a models.Assessment
	if err := json.Unmarshal(env.Data, &a); err != nil {
		t.Fatal(err)
	}
	if a.SubjectID != "u-api" || a.Level > models.LevelAttention {
		t.Errorf("assessment = %+v, want at most attention", a)
	}

	stats := eng.Stats()
	// derived off-hours signals depend on the wall clock
	if stats.SignalsRecorded < 3 || stats.SignalsIgnored != 1 {
		t.Errorf("stats = %+v, want >= 3 recorded and 1 ignored", stats)
	}
}
