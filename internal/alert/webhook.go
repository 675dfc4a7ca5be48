// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// WebhookChannel posts alerts as JSON to a generic endpoint.
type WebhookChannel struct {
	url     string
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
}

// WebhookPayload is the JSON body sent to the webhook endpoint.
type WebhookPayload struct {
	Alert     *models.Envelope `json:"alert"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Source    string           `json:"source"`
}

// NewWebhookChannel creates a webhook channel. Sends are paced to
// cfg.RatePerSecond; zero disables pacing.
func NewWebhookChannel(cfg config.WebhookChannelConfig) *WebhookChannel {
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &WebhookChannel{
		url:     cfg.URL,
		headers: headers,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: newPacer(cfg.RatePerSecond),
	}
}

// Name returns the channel name.
func (c *WebhookChannel) Name() string { return ChannelWebhook }

// Send delivers the alert.
func (c *WebhookChannel) Send(ctx context.Context, env *models.Envelope) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook pacing: %w", err)
	}

	body, err := json.Marshal(WebhookPayload{
		Alert:     env,
		EventType: "moderation_alert",
		Timestamp: env.CreatedAt,
		Source:    "riskguard",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	return postJSON(ctx, c.client, c.url, c.headers, body)
}

// DiscordChannel posts alerts as Discord embeds.
type DiscordChannel struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewDiscordChannel creates a Discord webhook channel.
func NewDiscordChannel(cfg config.DiscordChannelConfig) *DiscordChannel {
	return &DiscordChannel{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: newPacer(cfg.RatePerSecond),
	}
}

// Name returns the channel name.
func (c *DiscordChannel) Name() string { return ChannelDiscord }

// Send delivers the alert.
func (c *DiscordChannel) Send(ctx context.Context, env *models.Envelope) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("discord pacing: %w", err)
	}

	body, err := json.Marshal(discordWebhookPayload{Embeds: []discordEmbed{buildEmbed(env)}})
	if err != nil {
		return fmt.Errorf("failed to marshal Discord payload: %w", err)
	}
	return postJSON(ctx, c.client, c.url, nil, body)
}

func buildEmbed(env *models.Envelope) discordEmbed {
	fields := []discordEmbedField{
		{Name: "Subject", Value: env.SubjectID, Inline: true},
		{Name: "Severity", Value: string(env.Severity), Inline: true},
		{Name: "Action", Value: env.Action.String(), Inline: true},
	}
	if env.Rule != "" {
		fields = append(fields, discordEmbedField{Name: "Rule", Value: env.Rule, Inline: true})
	}
	if env.Evidence != nil {
		fields = append(fields, discordEmbedField{
			Name:   "Score",
			Value:  fmt.Sprintf("%d (%s)", env.Evidence.AdjustedScore, env.Evidence.Level),
			Inline: true,
		})
	}
	return discordEmbed{
		Title:       env.Title,
		Description: env.Message,
		Color:       severityColor(env.Severity),
		Timestamp:   env.CreatedAt.Format(time.RFC3339),
		Fields:      fields,
		Footer:      discordEmbedFooter{Text: "Riskguard"},
	}
}

func severityColor(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return 0xFF0000
	case models.SeverityHigh:
		return 0xFF6600
	case models.SeverityMedium:
		return 0xFFA500
	default:
		return 0x3498DB
	}
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      discordEmbedFooter  `json:"footer,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

// newPacer returns a limiter allowing perSecond sends with a burst of one.
func newPacer(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
