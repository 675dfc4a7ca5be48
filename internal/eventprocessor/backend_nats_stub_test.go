// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

//go:build !nats

package eventprocessor

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
)

func TestNew_NATSRequiresBuildTag(t *testing.T) {
	t.Parallel()
	cfg := testIngestConfig()
	cfg.Backend = BackendNATS
	if _, err := New(cfg, newFakeRecorder(), watermill.NopLogger{}); !errors.Is(err, ErrNATSNotBuilt) {
		t.Errorf("err = %v, want ErrNATSNotBuilt", err)
	}
}
