// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/riskguard/config.yaml",
	"/etc/riskguard/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Defaults returns a fresh copy of the built-in configuration.
// escalation.review_resolution is left empty, so the result does not pass
// Validate until the caller sets it.
func Defaults() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Factors: defaultFactors(),
		Levels: LevelsConfig{
			Bands: []BandConfig{
				{Level: "safe", Min: 0, Max: 20},
				{Level: "attention", Min: 21, Max: 40},
				{Level: "warning", Min: 41, Max: 70},
				{Level: "critical", Min: 71, Max: 90},
				{Level: "emergency", Min: 91, Max: 100},
			},
			Boundary: BoundaryLower,
		},
		Adaptive: AdaptiveConfig{
			RoleMultipliers: map[string]float64{
				"user":      1.0,
				"moderator": 1.5,
				"admin":     2.0,
			},
			NewAccountDays:       7,
			NewAccountMultiplier: 0.8,
			LoadMultipliers: map[string]float64{
				"low":    1.0,
				"medium": 1.0,
				"high":   1.2,
			},
			FactorMultipliers: map[string]float64{
				"off_hours_activity": 1.5,
			},
			OffHoursStart: 22,
			OffHoursEnd:   6,
			Timezone:      "UTC",
		},
		Exemptions: ExemptionConfig{
			Roles:        []string{"admin", "moderator"},
			SubjectIDs:   []string{},
			TrustedCIDRs: []string{},
		},
		Escalation: EscalationConfig{
			Rules:              defaultRules(),
			ScoreHistorySize:   32,
			ReviewResolution:   "", // must be set by the operator
			UnderReviewTimeout: 48 * time.Hour,
		},
		Actions: ActionsConfig{
			LevelActions: map[string][]string{
				"safe":      {},
				"attention": {"monitor"},
				"warning":   {"rate_limit", "auto_report", "warning"},
				"critical":  {"temporary_suspension", "content_quarantine", "auto_report"},
				"emergency": {"immediate_block", "content_quarantine"},
			},
			Suspension: SuspensionTiers{
				First:      60 * time.Minute,
				Second:     360 * time.Minute,
				Third:      1440 * time.Minute,
				Subsequent: 4320 * time.Minute,
			},
			RateLimit: RateLimitTiers{
				Light:             15 * time.Minute,
				Moderate:          60 * time.Minute,
				Strict:            240 * time.Minute,
				LightPerMinute:    60,
				ModeratePerMinute: 20,
				StrictPerMinute:   5,
				EscalationWindow:  24 * time.Hour,
			},
			MonitorDuration:           24 * time.Hour,
			QuarantineDuration:        72 * time.Hour,
			GracePeriod:               15 * time.Minute,
			AutoReviewAfter:           24 * time.Hour,
			BlockRequiresConfirmation: true,
			ConfirmationTimeout:       6 * time.Hour,
			PendingTimeoutPolicy:      PendingActivate,
			EnforcementTimeout:        10 * time.Second,
			RetryBackoff:              500 * time.Millisecond,
		},
		Cooldowns: CooldownConfig{
			SameType: 60 * time.Minute,
			AnyType:  30 * time.Minute,
		},
		Alerts: AlertsConfig{
			Routing: map[string][]string{
				"low":      {"dashboard"},
				"medium":   {"dashboard", "webhook"},
				"high":     {"dashboard", "webhook", "discord", "email"},
				"critical": {"dashboard", "webhook", "discord", "email", "sms"},
			},
			RateLimit: AlertRateLimitConfig{
				Max:    5,
				Window: 24 * time.Hour,
			},
			ChannelTimeout: 10 * time.Second,
			RecentBuffer:   200,
			Dashboard:      DashboardChannelConfig{Enabled: true},
			Webhook:        WebhookChannelConfig{RatePerSecond: 5},
			Discord:        DiscordChannelConfig{RatePerSecond: 1},
			Email:          EmailChannelConfig{Port: 587, To: []string{}},
			SMS:            SMSChannelConfig{RatePerSecond: 1, To: []string{}},
		},
		Sweep: SweepConfig{
			Interval:             time.Minute,
			PolicyReviewInterval: 24 * time.Hour,
			SignalRetention:      48 * time.Hour,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Path:    "/data/riskguard",
		},
		Identity: IdentityConfig{
			Mode:                  "static",
			Timeout:               5 * time.Second,
			BreakerMaxFailures:    5,
			BreakerTimeout:        30 * time.Second,
			DefaultRole:           "user",
			DefaultAccountAgeDays: 365,
		},
		Load: LoadConfig{
			Mode:           "static",
			Static:         "low",
			MediumPercent:  60,
			HighPercent:    85,
			SampleInterval: 15 * time.Second,
		},
		Ingest: IngestConfig{
			Enabled:          false,
			Backend:          "gochannel",
			URL:              "nats://127.0.0.1:4222",
			Topic:            "riskguard.signals",
			DurableName:      "riskguard-engine",
			QueueGroup:       "riskguard",
			SubscribersCount: 4,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8088,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			AdminTokenTTL:   24 * time.Hour,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

func defaultFactors() []FactorConfig {
	return []FactorConfig{
		{Name: "mass_upload", Signal: "upload", Threshold: 5, Window: 5 * time.Minute, Weight: 30, Enabled: true},
		{Name: "invalid_file_type", Signal: "invalid_file_type", Threshold: 3, Window: 10 * time.Minute, Weight: 25, Enabled: true},
		{Name: "failed_logins", Signal: "login_failure", Threshold: 5, Window: 15 * time.Minute, Weight: 20, Enabled: true},
		{Name: "rapid_profile_change", Signal: "profile_change", Threshold: 3, Window: 60 * time.Minute, Weight: 15, Enabled: true},
		{Name: "api_abuse", Signal: "api_call", Threshold: 100, Window: time.Minute, Weight: 35, Enabled: true},
		{Name: "new_account", MaxAccountAgeDays: 7, Weight: 10, Enabled: true},
		{Name: "suspicious_user_agent", Signal: "suspicious_user_agent", Threshold: 1, Window: 60 * time.Minute, Weight: 20, Enabled: true},
		{Name: "multiple_ips", Signal: "ip_seen", Distinct: "ip", Threshold: 3, Window: 60 * time.Minute, Weight: 25, Enabled: true},
		{Name: "off_hours_activity", Signal: "off_hours", Threshold: 1, Window: 60 * time.Minute, Weight: 10, Enabled: true},
		{Name: "repeated_pattern", Signal: "repeated_pattern", Threshold: 5, Window: 30 * time.Minute, Weight: 30, Enabled: true},
		{Name: "massive_requests", Signal: "request", Threshold: 500, Window: 5 * time.Minute, Weight: 40, Enabled: true},
	}
}

func defaultRules() []RuleConfig {
	return []RuleConfig{
		{Name: "security_threat", Condition: ConditionSecurityThreat, Threshold: 1, Window: 24 * time.Hour, Action: "immediate_block", Enabled: true},
		{Name: "consecutive_critical", Condition: ConditionConsecutiveCritical, Threshold: 3, Action: "immediate_block", Enabled: true},
		{Name: "warning_limit", Condition: ConditionWarningLimit, Threshold: 3, Window: 1440 * time.Minute, Action: "temporary_suspension", Enabled: true},
		{Name: "rapid_score_increase", Condition: ConditionRapidScoreIncrease, Threshold: 30, Window: 5 * time.Minute, Action: "temporary_suspension", Enabled: true},
		{Name: "sustained_high_score", Condition: ConditionSustainedHighScore, Threshold: 60, Window: 30 * time.Minute, Action: "temporary_suspension", Enabled: true},
		{Name: "repeated_violations", Condition: ConditionRepeatedViolations, Threshold: 3, Window: 24 * time.Hour, Action: "rate_limit", Enabled: true},
		{Name: "shared_ip", Condition: ConditionSharedIP, Threshold: 5, Window: 60 * time.Minute, Action: "rate_limit", Enabled: true},
		{Name: "system_overload", Condition: ConditionSystemOverload, Threshold: 1, Action: "rate_limit", Enabled: true},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile loads configuration from defaults, the given YAML file and the environment.
func LoadFile(path string) (*Config, error) {
	return loadFrom(path)
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"exemptions.roles",
	"exemptions.subject_ids",
	"exemptions.trusted_cidrs",
	"alerts.email.to",
	"alerts.sms.to",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Escalation
	"review_resolution":    "escalation.review_resolution",
	"under_review_timeout": "escalation.under_review_timeout",

	// Actions
	"grace_period":                "actions.grace_period",
	"auto_review_after":           "actions.auto_review_after",
	"block_requires_confirmation": "actions.block_requires_confirmation",
	"confirmation_timeout":        "actions.confirmation_timeout",
	"pending_timeout_policy":      "actions.pending_timeout_policy",
	"enforcement_timeout":         "actions.enforcement_timeout",

	// Cooldowns
	"warning_cooldown_same_type": "cooldowns.same_type",
	"warning_cooldown_any_type":  "cooldowns.any_type",

	// Exemptions
	"exempt_roles":       "exemptions.roles",
	"exempt_subject_ids": "exemptions.subject_ids",
	"trusted_cidrs":      "exemptions.trusted_cidrs",

	// Alerts
	"alert_rate_limit_max":    "alerts.rate_limit.max",
	"alert_rate_limit_window": "alerts.rate_limit.window",
	"alert_channel_timeout":   "alerts.channel_timeout",
	"alert_webhook_enabled":   "alerts.webhook.enabled",
	"alert_webhook_url":       "alerts.webhook.url",
	"discord_enabled":         "alerts.discord.enabled",
	"discord_webhook_url":     "alerts.discord.webhook_url",
	"smtp_enabled":            "alerts.email.enabled",
	"smtp_host":               "alerts.email.host",
	"smtp_port":               "alerts.email.port",
	"smtp_username":           "alerts.email.username",
	"smtp_password":           "alerts.email.password",
	"smtp_from":               "alerts.email.from",
	"smtp_to":                 "alerts.email.to",
	"sms_enabled":             "alerts.sms.enabled",
	"sms_gateway_url":         "alerts.sms.gateway_url",
	"sms_api_key":             "alerts.sms.api_key",
	"sms_to":                  "alerts.sms.to",

	// Sweeps
	"sweep_interval":         "sweep.interval",
	"policy_review_interval": "sweep.policy_review_interval",
	"signal_retention":       "sweep.signal_retention",

	// Storage
	"storage_backend": "storage.backend",
	"storage_path":    "storage.path",

	// Identity
	"identity_mode":    "identity.mode",
	"identity_url":     "identity.url",
	"identity_api_key": "identity.api_key",
	"identity_timeout": "identity.timeout",

	// Load probe
	"load_mode":   "load.mode",
	"load_static": "load.static",

	// Ingest
	"ingest_enabled": "ingest.enabled",
	"ingest_backend": "ingest.backend",
	"nats_url":       "ingest.url",
	"ingest_topic":   "ingest.topic",

	// Server
	"http_enabled":      "server.enabled",
	"http_port":         "server.port",
	"http_host":         "server.host",
	"http_timeout":      "server.timeout",
	"jwt_secret":        "server.jwt_secret",
	"admin_token_ttl":   "server.admin_token_ttl",
	"cors_origins":      "server.cors_origins",
	"rate_limit_reqs":   "server.rate_limit_requests",
	"rate_limit_window": "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - REVIEW_RESOLUTION -> escalation.review_resolution
//   - SMTP_HOST -> alerts.email.host
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The caller is responsible for swapping configuration safely.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
