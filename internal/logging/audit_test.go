// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/riskguard/internal/models"
)

func TestDecisionLogger_LogDirective(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewDecisionLoggerWithLogger(zerolog.New(&buf))

	d := &models.Directive{
		ID:        "d-1",
		SubjectID: "user-1",
		Level:     models.LevelWarning,
		Actions:   []models.Action{{Kind: models.ActionRateLimit, Tier: models.TierLight}, {Kind: models.ActionWarning}},
		Rule:      "repeated_violations",
		Factor:    models.FactorMassUpload,
		Evidence:  models.Assessment{AdjustedScore: 55},
	}
	l.LogDirective(ContextWithCorrelationID(context.Background(), "c0ffee00"), d)

	out := buf.String()
	for _, want := range []string{
		`"component":"decisions"`,
		`"level":"info"`,
		`"directive_id":"d-1"`,
		`"actions":["rate_limit/light","warning"]`,
		`"rule":"repeated_violations"`,
		`"correlation_id":"c0ffee00"`,
		`"score":55`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestDecisionLogger_LogEnforcement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"success logs info", nil, `"level":"info"`},
		{"failure logs error", errors.New("timeout"), `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			l := NewDecisionLoggerWithLogger(zerolog.New(&buf))
			action := models.Action{Kind: models.ActionTemporarySuspension, Tier: models.TierFirst, Duration: time.Hour}
			l.LogEnforcement(context.Background(), "user-2", action, "applied", tt.err)

			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("output missing %s: %s", tt.wantLevel, out)
			}
			if !strings.Contains(out, `"action":"temporary_suspension/first"`) {
				t.Errorf("output missing action: %s", out)
			}
		})
	}
}

func TestDecisionLogger_LogSuppressed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewDecisionLoggerWithLogger(zerolog.New(&buf)).LogSuppressed(context.Background(), "user-3", "warning cooldown")

	out := buf.String()
	if !strings.Contains(out, `"level":"info"`) || !strings.Contains(out, "warning cooldown") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestSanitizeSubjectID(t *testing.T) {
	t.Parallel()

	if got := SanitizeSubjectID("user\n-1\x00"); got != "user-1" {
		t.Errorf("SanitizeSubjectID stripped = %q, want user-1", got)
	}
	long := strings.Repeat("a", 200)
	if got := SanitizeSubjectID(long); len(got) != maxLoggedIDLength+3 {
		t.Errorf("len = %d, want %d", len(got), maxLoggedIDLength+3)
	}
}
