// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alert

import (
	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/logging"
)

// New builds a dispatcher with every channel enabled in cfg. The dashboard
// channel is returned separately so the API can serve recent alerts; it is
// nil when disabled.
func New(cfg config.AlertsConfig, caster Broadcaster, clk clock.Clock) (*Dispatcher, *DashboardChannel) {
	channels := []Channel{NewLogChannel()}

	var dashboard *DashboardChannel
	if cfg.Dashboard.Enabled {
		dashboard = NewDashboardChannel(cfg.RecentBuffer, caster)
		channels = append(channels, dashboard)
	}
	if cfg.Webhook.Enabled {
		channels = append(channels, NewWebhookChannel(cfg.Webhook))
	}
	if cfg.Discord.Enabled {
		channels = append(channels, NewDiscordChannel(cfg.Discord))
	}
	if cfg.Email.Enabled {
		channels = append(channels, NewEmailChannel(cfg.Email))
	}
	if cfg.SMS.Enabled {
		channels = append(channels, NewSMSChannel(cfg.SMS))
	}

	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	logging.Info().Strs("channels", names).Msg("Alert channels configured")

	return NewDispatcher(cfg, channels, clk), dashboard
}
