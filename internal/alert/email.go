// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alert

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// EmailChannel delivers alerts to administrators over SMTP.
type EmailChannel struct {
	cfg            config.EmailChannelConfig
	defaultTimeout time.Duration
}

// NewEmailChannel creates an SMTP channel.
func NewEmailChannel(cfg config.EmailChannelConfig) *EmailChannel {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailChannel{cfg: cfg, defaultTimeout: 30 * time.Second}
}

// Name returns the channel name.
func (c *EmailChannel) Name() string { return ChannelEmail }

// Send mails the alert to every configured recipient.
func (c *EmailChannel) Send(ctx context.Context, env *models.Envelope) error {
	return c.sendSMTP(ctx, c.buildMessage(env))
}

func (c *EmailChannel) buildMessage(env *models.Envelope) string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: Riskguard <%s>\r\n", c.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(c.cfg.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: [%s] %s\r\n", strings.ToUpper(string(env.Severity)), env.Title))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("X-Riskguard-Alert-ID: %s\r\n", env.ID))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")

	msg.WriteString(env.Message)
	msg.WriteString("\r\n\r\n")
	msg.WriteString(fmt.Sprintf("Subject:  %s\r\n", env.SubjectID))
	msg.WriteString(fmt.Sprintf("Action:   %s\r\n", env.Action))
	if env.Rule != "" {
		msg.WriteString(fmt.Sprintf("Rule:     %s\r\n", env.Rule))
	}
	if env.Evidence != nil {
		msg.WriteString(fmt.Sprintf("Score:    %d (%s)\r\n", env.Evidence.AdjustedScore, env.Evidence.Level))
		for _, f := range env.Evidence.Factors {
			if f.Contribution > 0 {
				msg.WriteString(fmt.Sprintf("  - %s: %d/%d\r\n", f.Factor, f.Count, f.Threshold))
			}
		}
	}
	msg.WriteString(fmt.Sprintf("Time:     %s\r\n", env.CreatedAt.UTC().Format(time.RFC3339)))
	return msg.String()
}

func (c *EmailChannel) sendSMTP(ctx context.Context, msg string) error {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprint(c.cfg.Port))

	dialer := &net.Dialer{Timeout: c.defaultTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // Best effort cleanup

	// net/smtp has no context support; the deadline bounds the whole exchange.
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set SMTP deadline: %w", err)
		}
	}

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // Best effort cleanup

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: c.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if c.cfg.Username != "" && c.cfg.Password != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(c.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range c.cfg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", to, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}
	return client.Quit()
}
