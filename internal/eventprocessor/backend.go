// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package eventprocessor

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/riskguard/internal/logging"
)

// goChannelBuffer bounds the per-subscriber output channel.
const goChannelBuffer = 1024

// newGoChannel returns one in-process pub/sub acting as both ends.
func newGoChannel(logger watermill.LoggerAdapter) (message.Subscriber, message.Publisher) {
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: goChannelBuffer,
	}, logger)
	return ps, ps
}

// NewLogger returns a Watermill logger that writes through the zerolog pipeline.
func NewLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}
