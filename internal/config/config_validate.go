// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/riskguard/internal/models"
	"github.com/tomtom215/riskguard/internal/validation"
)

// Validate checks that the configuration is complete and internally consistent.
// Every failure is reported as a *ConfigurationError.
func (c *Config) Validate() error {
	if errs := validation.Struct(c); errs != nil {
		return &ConfigurationError{Field: fieldPath(errs[0].Path), Reason: errs[0].Message}
	}

	checks := []func() error{
		c.validateFactors,
		c.validateBands,
		c.validateAdaptive,
		c.validateEscalation,
		c.validateActions,
		c.validateAlerts,
		c.validateStorage,
		c.validateIdentity,
		c.validateLoad,
		c.validateServer,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// fieldPath turns a validator namespace (Config.Alerts.RateLimit.Max) into a
// readable dotted path without the root type name.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func (c *Config) validateFactors() error {
	seen := make(map[string]bool, len(c.Factors))
	for i, f := range c.Factors {
		field := fmt.Sprintf("factors[%d]", i)
		if seen[f.Name] {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("duplicate factor %q", f.Name)}
		}
		seen[f.Name] = true

		switch {
		case f.Signal == "" && f.MaxAccountAgeDays == 0:
			return &ConfigurationError{Field: field, Reason: "factor needs either signal or max_account_age_days"}
		case f.Signal != "" && f.MaxAccountAgeDays > 0:
			return &ConfigurationError{Field: field, Reason: "signal and max_account_age_days are mutually exclusive"}
		case f.Signal != "" && (f.Threshold < 1 || f.Window <= 0):
			return &ConfigurationError{Field: field, Reason: "signal factors need threshold >= 1 and a positive window"}
		}
	}
	return nil
}

// validateBands enforces contiguous, non-overlapping integer bands covering 0..100,
// one per level in ascending level order.
func (c *Config) validateBands() error {
	bands := c.Levels.Bands
	if len(bands) != len(models.AllLevels) {
		return &ConfigurationError{
			Field:  "levels.bands",
			Reason: fmt.Sprintf("expected %d bands, got %d", len(models.AllLevels), len(bands)),
		}
	}

	for i, b := range bands {
		field := fmt.Sprintf("levels.bands[%d]", i)
		level, err := models.ParseLevel(b.Level)
		if err != nil {
			return &ConfigurationError{Field: field, Reason: err.Error()}
		}
		if level != models.AllLevels[i] {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("expected level %s, got %s", models.AllLevels[i], level)}
		}
		if b.Min > b.Max {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("min %d is greater than max %d", b.Min, b.Max)}
		}
		if i == 0 && b.Min != 0 {
			return &ConfigurationError{Field: field, Reason: "first band must start at 0"}
		}
		if i > 0 && b.Min != bands[i-1].Max+1 {
			return &ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("band must start at %d to be contiguous, got %d", bands[i-1].Max+1, b.Min),
			}
		}
	}

	if last := bands[len(bands)-1]; last.Max != 100 {
		return &ConfigurationError{Field: fmt.Sprintf("levels.bands[%d]", len(bands)-1), Reason: "last band must end at 100"}
	}
	if c.Levels.Boundary == BoundaryUpper {
		for i, b := range bands[:len(bands)-1] {
			if b.Min == b.Max {
				return &ConfigurationError{Field: fmt.Sprintf("levels.bands[%d]", i), Reason: "single-value band is unreachable with upper boundary"}
			}
		}
	}
	return nil
}

func (c *Config) validateAdaptive() error {
	for role, m := range c.Adaptive.RoleMultipliers {
		if m <= 0 {
			return &ConfigurationError{Field: "adaptive.role_multipliers." + role, Reason: "multiplier must be positive"}
		}
	}
	for bracket, m := range c.Adaptive.LoadMultipliers {
		if m <= 0 {
			return &ConfigurationError{Field: "adaptive.load_multipliers." + bracket, Reason: "multiplier must be positive"}
		}
	}
	for factor, m := range c.Adaptive.FactorMultipliers {
		if _, ok := c.Factor(factor); !ok {
			return &ConfigurationError{Field: "adaptive.factor_multipliers." + factor, Reason: "unknown factor"}
		}
		if m < 0 {
			return &ConfigurationError{Field: "adaptive.factor_multipliers." + factor, Reason: "multiplier must not be negative"}
		}
	}
	if c.Adaptive.Timezone != "" {
		if _, err := time.LoadLocation(c.Adaptive.Timezone); err != nil {
			return &ConfigurationError{Field: "adaptive.timezone", Reason: err.Error()}
		}
	}
	return nil
}

func (c *Config) validateEscalation() error {
	if c.Escalation.ReviewResolution == "" {
		return &ConfigurationError{
			Field:  "escalation.review_resolution",
			Reason: "must be set explicitly to auto_approve or auto_reject",
		}
	}

	seen := make(map[string]bool, len(c.Escalation.Rules))
	for i, r := range c.Escalation.Rules {
		field := fmt.Sprintf("escalation.rules[%d]", i)
		if seen[r.Name] {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("duplicate rule %q", r.Name)}
		}
		seen[r.Name] = true

		kind := models.ActionKind(r.Action)
		if !kind.Valid() || kind == models.ActionNone {
			return &ConfigurationError{Field: field + ".action", Reason: fmt.Sprintf("unknown action kind %q", r.Action)}
		}

		switch r.Condition {
		case ConditionWarningLimit, ConditionRapidScoreIncrease, ConditionSustainedHighScore,
			ConditionRepeatedViolations, ConditionSharedIP, ConditionSecurityThreat:
			if r.Window <= 0 {
				return &ConfigurationError{Field: field + ".window", Reason: "window must be positive"}
			}
		}
		if r.Condition == ConditionSystemOverload && r.Threshold > int(models.LevelEmergency) {
			return &ConfigurationError{Field: field + ".threshold", Reason: "level ordinal must be between 0 and 4"}
		}
	}
	return nil
}

func (c *Config) validateActions() error {
	for _, level := range models.AllLevels {
		if _, ok := c.Actions.LevelActions[level.String()]; !ok {
			return &ConfigurationError{Field: "actions.level_actions." + level.String(), Reason: "missing action set"}
		}
	}
	for name, kinds := range c.Actions.LevelActions {
		if _, err := models.ParseLevel(name); err != nil {
			return &ConfigurationError{Field: "actions.level_actions." + name, Reason: err.Error()}
		}
		for _, k := range kinds {
			if kind := models.ActionKind(k); !kind.Valid() || kind == models.ActionNone {
				return &ConfigurationError{Field: "actions.level_actions." + name, Reason: fmt.Sprintf("unknown action kind %q", k)}
			}
		}
	}

	s := c.Actions.Suspension
	if s.First >= s.Second || s.Second >= s.Third || s.Third >= s.Subsequent {
		return &ConfigurationError{Field: "actions.suspension", Reason: "tier durations must be strictly increasing"}
	}
	return nil
}

func (c *Config) validateAlerts() error {
	for sev, channels := range c.Alerts.Routing {
		if !validSeverity(sev) {
			return &ConfigurationError{Field: "alerts.routing." + sev, Reason: "unknown severity"}
		}
		for _, ch := range channels {
			if !validChannels[ch] {
				return &ConfigurationError{Field: "alerts.routing." + sev, Reason: fmt.Sprintf("unknown channel %q", ch)}
			}
		}
	}

	a := c.Alerts
	if a.Webhook.Enabled {
		if err := validateHTTPURL(a.Webhook.URL, "alerts.webhook.url"); err != nil {
			return err
		}
	}
	if a.Discord.Enabled {
		if err := validateHTTPURL(a.Discord.WebhookURL, "alerts.discord.webhook_url"); err != nil {
			return err
		}
	}
	if a.SMS.Enabled {
		if err := validateHTTPURL(a.SMS.GatewayURL, "alerts.sms.gateway_url"); err != nil {
			return err
		}
		if len(a.SMS.To) == 0 {
			return &ConfigurationError{Field: "alerts.sms.to", Reason: "at least one recipient is required"}
		}
	}
	if a.Email.Enabled {
		if a.Email.Host == "" || a.Email.From == "" || len(a.Email.To) == 0 {
			return &ConfigurationError{Field: "alerts.email", Reason: "host, from and to are required when enabled"}
		}
	}
	return nil
}

var validChannels = map[string]bool{
	"log":       true,
	"dashboard": true,
	"webhook":   true,
	"discord":   true,
	"email":     true,
	"sms":       true,
}

func validSeverity(s string) bool {
	for _, sev := range models.AllSeverities {
		if string(sev) == s {
			return true
		}
	}
	return false
}

func (c *Config) validateStorage() error {
	if c.Storage.Backend == "badger" && c.Storage.Path == "" {
		return &ConfigurationError{Field: "storage.path", Reason: "required for badger backend"}
	}
	return nil
}

func (c *Config) validateIdentity() error {
	if c.Identity.Mode == "http" {
		return validateHTTPURL(c.Identity.URL, "identity.url")
	}
	return nil
}

func (c *Config) validateLoad() error {
	if c.Load.MediumPercent >= c.Load.HighPercent {
		return &ConfigurationError{Field: "load.medium_percent", Reason: "must be lower than load.high_percent"}
	}
	return nil
}

// ErrWeakJWTSecret is returned when the admin API secret is too short or a placeholder.
var ErrWeakJWTSecret = errors.New("jwt_secret must be at least 32 characters and not a placeholder")

func (c *Config) validateServer() error {
	if !c.Server.Enabled || c.Server.JWTSecret == "" {
		return nil
	}
	if len(c.Server.JWTSecret) < 32 || containsPlaceholder(c.Server.JWTSecret) {
		return &ConfigurationError{Field: "server.jwt_secret", Reason: ErrWeakJWTSecret.Error()}
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return &ConfigurationError{Field: "logging.level", Reason: "must be one of: trace, debug, info, warn, error"}
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return &ConfigurationError{Field: "logging.format", Reason: "must be one of: json, console"}
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the operator forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns.
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}

// validateHTTPURL requires an absolute http(s) URL. Paths and query strings
// are left alone since webhook URLs embed their tokens there.
func validateHTTPURL(raw, field string) error {
	u, err := url.Parse(raw)
	switch {
	case err != nil:
		return &ConfigurationError{Field: field, Reason: "unparseable URL"}
	case u.Scheme != "http" && u.Scheme != "https":
		return &ConfigurationError{Field: field, Reason: fmt.Sprintf("scheme %q is not http or https", u.Scheme)}
	case u.Host == "":
		return &ConfigurationError{Field: field, Reason: "URL has no host"}
	}
	return nil
}
