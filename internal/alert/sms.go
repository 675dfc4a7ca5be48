// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// smsMaxLength is the single-segment SMS limit.
const smsMaxLength = 160

// SMSChannel sends short alert texts through an HTTP SMS gateway.
type SMSChannel struct {
	url     string
	apiKey  string
	to      []string
	client  *http.Client
	limiter *rate.Limiter
}

type smsRequest struct {
	To      []string `json:"to"`
	Message string   `json:"message"`
}

// NewSMSChannel creates an SMS gateway channel.
func NewSMSChannel(cfg config.SMSChannelConfig) *SMSChannel {
	return &SMSChannel{
		url:     cfg.GatewayURL,
		apiKey:  cfg.APIKey,
		to:      append([]string(nil), cfg.To...),
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: newPacer(cfg.RatePerSecond),
	}
}

// Name returns the channel name.
func (c *SMSChannel) Name() string { return ChannelSMS }

// Send delivers the alert text to every recipient in one gateway call.
func (c *SMSChannel) Send(ctx context.Context, env *models.Envelope) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms pacing: %w", err)
	}
	body, err := json.Marshal(smsRequest{To: c.to, Message: smsText(env)})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}
	return postJSON(ctx, c.client, c.url, headers, body)
}

func smsText(env *models.Envelope) string {
	text := fmt.Sprintf("[%s] %s: %s (%s)", env.Severity, env.Title, env.SubjectID, env.Action)
	if len(text) > smsMaxLength {
		text = text[:smsMaxLength-3] + "..."
	}
	return text
}
