// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

//go:build !nats

package eventprocessor

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/riskguard/internal/config"
)

// ErrNATSNotBuilt is returned when the nats backend is selected in a build
// without the nats tag.
var ErrNATSNotBuilt = errors.New("nats ingest backend requires building with -tags nats")

func newNATS(_ config.IngestConfig, _ watermill.LoggerAdapter) (message.Subscriber, message.Publisher, error) {
	return nil, nil, ErrNATSNotBuilt
}
