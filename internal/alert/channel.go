// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alert

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/models"
)

// Channel names used in routing configuration.
const (
	ChannelLog       = "log"
	ChannelDashboard = "dashboard"
	ChannelWebhook   = "webhook"
	ChannelDiscord   = "discord"
	ChannelEmail     = "email"
	ChannelSMS       = "sms"
)

// Channel delivers an envelope to one notification transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, env *models.Envelope) error
}

// LogChannel writes alerts to the structured log. It is always routed.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates the log channel on the global logger.
func NewLogChannel() *LogChannel {
	return &LogChannel{logger: logging.WithComponent("alerts")}
}

// NewLogChannelWithLogger creates the log channel on a custom logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLogChannelWithLogger(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

// Name returns the channel name.
func (c *LogChannel) Name() string { return ChannelLog }

// Send logs the envelope. Critical alerts log at error.
func (c *LogChannel) Send(_ context.Context, env *models.Envelope) error {
	var e *zerolog.Event
	switch env.Severity {
	case models.SeverityCritical:
		e = c.logger.Error()
	case models.SeverityHigh, models.SeverityMedium:
		e = c.logger.Warn()
	default:
		e = c.logger.Info()
	}
	e.Str("alert_id", env.ID).
		Str("severity", string(env.Severity)).
		Str("subject_id", logging.SanitizeSubjectID(env.SubjectID)).
		Str("action", env.Action.String()).
		Str("rule", env.Rule).
		Str("title", env.Title).
		Msg(env.Message)
	return nil
}

// Broadcaster pushes messages to connected dashboard clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// MessageTypeAlert is the websocket message type for alerts.
const MessageTypeAlert = "alert"

// DashboardChannel keeps the most recent alerts in a ring buffer for the
// dashboard API and pushes each one to live websocket clients.
type DashboardChannel struct {
	mu     sync.RWMutex
	buf    []models.Envelope
	next   int
	full   bool
	caster Broadcaster
}

// NewDashboardChannel creates a dashboard channel holding size alerts.
// caster may be nil.
func NewDashboardChannel(size int, caster Broadcaster) *DashboardChannel {
	if size <= 0 {
		size = 1
	}
	return &DashboardChannel{buf: make([]models.Envelope, size), caster: caster}
}

// Name returns the channel name.
func (c *DashboardChannel) Name() string { return ChannelDashboard }

// Send stores the envelope and broadcasts it.
func (c *DashboardChannel) Send(_ context.Context, env *models.Envelope) error {
	c.mu.Lock()
	c.buf[c.next] = *env
	c.next = (c.next + 1) % len(c.buf)
	if c.next == 0 {
		c.full = true
	}
	c.mu.Unlock()

	if c.caster != nil {
		c.caster.BroadcastJSON(MessageTypeAlert, env)
	}
	return nil
}

// Recent returns up to limit alerts, newest first. limit <= 0 returns all.
func (c *DashboardChannel) Recent(limit int) []models.Envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := c.next
	if c.full {
		n = len(c.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.Envelope, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (c.next - 1 - i + len(c.buf)) % len(c.buf)
		out = append(out, c.buf[idx])
	}
	return out
}
