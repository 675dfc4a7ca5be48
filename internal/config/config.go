// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, config files
// and environment variables.
//
// Configuration Categories:
//
//  1. Scoring policy:
//     - Factors: weighted factors evaluated against signal windows
//     - Levels: score bands for classification
//     - Adaptive: contextual threshold multipliers
//     - Exemptions: subjects that always classify Safe
//
//  2. Action policy:
//     - Escalation: ordered cross-cutting rules and review resolution
//     - Actions: default action sets per level, tier durations, confirmation
//     - Cooldowns: warning cooldowns
//     - Alerts: channel routing and rate limiting
//
//  3. Infrastructure:
//     - Sweep, Storage, Identity, Load, Ingest, Server, Logging
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	Factors    []FactorConfig   `koanf:"factors"`
	Levels     LevelsConfig     `koanf:"levels"`
	Adaptive   AdaptiveConfig   `koanf:"adaptive"`
	Exemptions ExemptionConfig  `koanf:"exemptions"`
	Escalation EscalationConfig `koanf:"escalation"`
	Actions    ActionsConfig    `koanf:"actions"`
	Cooldowns  CooldownConfig   `koanf:"cooldowns"`
	Alerts     AlertsConfig     `koanf:"alerts"`
	Sweep      SweepConfig      `koanf:"sweep"`
	Storage    StorageConfig    `koanf:"storage"`
	Identity   IdentityConfig   `koanf:"identity"`
	Load       LoadConfig       `koanf:"load"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// FactorConfig defines one scoring factor.
//
// A signal factor triggers when the number of Signal occurrences inside Window
// reaches Threshold. When Distinct is set, distinct values of that metadata key
// are counted instead. A profile factor sets MaxAccountAgeDays and triggers for
// subjects younger than that many days.
type FactorConfig struct {
	Name              string        `koanf:"name" validate:"required,max=64"`
	Signal            string        `koanf:"signal" validate:"omitempty,signal_kind"`
	Threshold         int           `koanf:"threshold" validate:"gte=0"`
	Window            time.Duration `koanf:"window" validate:"gte=0"`
	Weight            int           `koanf:"weight" validate:"gte=0,lte=100"`
	Distinct          string        `koanf:"distinct"`
	MaxAccountAgeDays int           `koanf:"max_account_age_days" validate:"gte=0"`
	Enabled           bool          `koanf:"enabled"`
}

// Boundary policies for scores that fall exactly on a band's upper edge.
const (
	BoundaryLower = "lower" // edge belongs to the lower band (20 -> safe)
	BoundaryUpper = "upper" // edge belongs to the next band (20 -> attention)
)

// LevelsConfig holds the classification bands.
type LevelsConfig struct {
	// Bands are inclusive integer ranges. They must be listed in ascending order,
	// start at 0, end at 100, and each Min must equal the previous Max + 1.
	Bands []BandConfig `koanf:"bands" validate:"required,min=1,dive"`

	// Boundary decides which band owns a score equal to a band's Max.
	// Default: lower
	Boundary string `koanf:"boundary" validate:"oneof=lower upper"`
}

// BandConfig is one inclusive score band.
type BandConfig struct {
	Level string `koanf:"level" validate:"required,level_name"`
	Min   int    `koanf:"min" validate:"gte=0,lte=100"`
	Max   int    `koanf:"max" validate:"gte=0,lte=100"`
}

// AdaptiveConfig holds contextual multipliers.
//
// Role, account-age and load multipliers scale the trigger thresholds, so the
// total score is divided by their product. Factor multipliers scale a single
// factor's contribution before summing.
type AdaptiveConfig struct {
	RoleMultipliers      map[string]float64 `koanf:"role_multipliers"`
	NewAccountDays       int                `koanf:"new_account_days" validate:"gte=0"`
	NewAccountMultiplier float64            `koanf:"new_account_multiplier" validate:"gt=0"`
	LoadMultipliers      map[string]float64 `koanf:"load_multipliers"`
	FactorMultipliers    map[string]float64 `koanf:"factor_multipliers"`

	// Off-hours window in local hours of Timezone. Start may be greater than End
	// for windows spanning midnight.
	OffHoursStart int    `koanf:"off_hours_start" validate:"gte=0,lte=23"`
	OffHoursEnd   int    `koanf:"off_hours_end" validate:"gte=0,lte=23"`
	Timezone      string `koanf:"timezone"`
}

// ExemptionConfig lists subjects that always classify Safe.
type ExemptionConfig struct {
	Roles        []string `koanf:"roles"`
	SubjectIDs   []string `koanf:"subject_ids"`
	TrustedCIDRs []string `koanf:"trusted_cidrs" validate:"dive,cidr"`
}

// Escalation rule conditions.
const (
	ConditionSecurityThreat      = "security_threat"
	ConditionConsecutiveCritical = "consecutive_critical"
	ConditionWarningLimit        = "warning_limit"
	ConditionRapidScoreIncrease  = "rapid_score_increase"
	ConditionSustainedHighScore  = "sustained_high_score"
	ConditionRepeatedViolations  = "repeated_violations"
	ConditionSharedIP            = "shared_ip"
	ConditionSystemOverload      = "system_overload"
)

// Review resolutions applied when UnderReview times out.
const (
	ReviewAutoApprove = "auto_approve"
	ReviewAutoReject  = "auto_reject"
)

// EscalationConfig holds the ordered rule list and state machine timings.
type EscalationConfig struct {
	// Rules are evaluated in declaration order. When several fire, the most
	// severe action wins and equal severity resolves to the earlier rule.
	Rules []RuleConfig `koanf:"rules" validate:"dive"`

	// ScoreHistorySize bounds the number of adjusted scores kept per subject.
	ScoreHistorySize int `koanf:"score_history_size" validate:"gte=2"`

	// ReviewResolution is applied to subjects left UnderReview past
	// UnderReviewTimeout. There is no default; it must be configured.
	ReviewResolution   string        `koanf:"review_resolution" validate:"omitempty,oneof=auto_approve auto_reject"`
	UnderReviewTimeout time.Duration `koanf:"under_review_timeout" validate:"gt=0"`
}

// RuleConfig is one escalation rule.
//
// Threshold meaning depends on Condition: an event count for count-based
// conditions, a score delta for rapid_score_increase, a score floor for
// sustained_high_score and a level ordinal for system_overload.
type RuleConfig struct {
	Name      string        `koanf:"name" validate:"required,max=64"`
	Condition string        `koanf:"condition" validate:"required,oneof=security_threat consecutive_critical warning_limit rapid_score_increase sustained_high_score repeated_violations shared_ip system_overload"`
	Threshold int           `koanf:"threshold" validate:"gte=0"`
	Window    time.Duration `koanf:"window" validate:"gte=0"`
	Action    string        `koanf:"action" validate:"required,action_kind"`
	Enabled   bool          `koanf:"enabled"`
}

// Pending confirmation timeout policies.
const (
	PendingActivate = "activate"
	PendingExpire   = "expire"
)

// ActionsConfig holds the default action set per level and action parameters.
type ActionsConfig struct {
	// LevelActions maps a level name to its default action kinds.
	LevelActions map[string][]string `koanf:"level_actions"`

	Suspension SuspensionTiers `koanf:"suspension"`
	RateLimit  RateLimitTiers  `koanf:"rate_limit"`

	MonitorDuration    time.Duration `koanf:"monitor_duration" validate:"gt=0"`
	QuarantineDuration time.Duration `koanf:"quarantine_duration" validate:"gt=0"`

	// GracePeriod delays suspension activation to allow reversal.
	GracePeriod time.Duration `koanf:"grace_period" validate:"gte=0"`

	// AutoReviewAfter is added to the activation time to form the review deadline.
	AutoReviewAfter time.Duration `koanf:"auto_review_after" validate:"gt=0"`

	// BlockRequiresConfirmation records blocks as pending until approved.
	BlockRequiresConfirmation bool          `koanf:"block_requires_confirmation"`
	ConfirmationTimeout       time.Duration `koanf:"confirmation_timeout" validate:"gt=0"`
	PendingTimeoutPolicy      string        `koanf:"pending_timeout_policy" validate:"oneof=activate expire"`

	// EnforcementTimeout bounds each call to the identity system.
	EnforcementTimeout time.Duration `koanf:"enforcement_timeout" validate:"gt=0"`
	RetryBackoff       time.Duration `koanf:"retry_backoff" validate:"gte=0"`
}

// SuspensionTiers holds suspension durations by historical suspension count.
type SuspensionTiers struct {
	First      time.Duration `koanf:"first" validate:"gt=0"`
	Second     time.Duration `koanf:"second" validate:"gt=0"`
	Third      time.Duration `koanf:"third" validate:"gt=0"`
	Subsequent time.Duration `koanf:"subsequent" validate:"gt=0"`
}

// RateLimitTiers holds rate limit durations and request caps by escalation step.
type RateLimitTiers struct {
	Light             time.Duration `koanf:"light" validate:"gt=0"`
	Moderate          time.Duration `koanf:"moderate" validate:"gt=0"`
	Strict            time.Duration `koanf:"strict" validate:"gt=0"`
	LightPerMinute    int           `koanf:"light_per_minute" validate:"gt=0"`
	ModeratePerMinute int           `koanf:"moderate_per_minute" validate:"gt=0"`
	StrictPerMinute   int           `koanf:"strict_per_minute" validate:"gt=0"`
	EscalationWindow  time.Duration `koanf:"escalation_window" validate:"gt=0"`
}

// CooldownConfig holds warning cooldowns.
type CooldownConfig struct {
	SameType time.Duration `koanf:"same_type" validate:"gte=0"`
	AnyType  time.Duration `koanf:"any_type" validate:"gte=0"`
}

// AlertsConfig holds alert routing, rate limiting and channel settings.
type AlertsConfig struct {
	// Routing maps a severity to channel names. The log channel is always added.
	Routing map[string][]string `koanf:"routing"`

	RateLimit      AlertRateLimitConfig `koanf:"rate_limit"`
	ChannelTimeout time.Duration        `koanf:"channel_timeout" validate:"gt=0"`

	// RecentBuffer is the number of envelopes kept for the dashboard.
	RecentBuffer int `koanf:"recent_buffer" validate:"gte=1"`

	Dashboard DashboardChannelConfig `koanf:"dashboard"`
	Webhook   WebhookChannelConfig   `koanf:"webhook"`
	Discord   DiscordChannelConfig   `koanf:"discord"`
	Email     EmailChannelConfig     `koanf:"email"`
	SMS       SMSChannelConfig       `koanf:"sms"`
}

// AlertRateLimitConfig caps alerts per (subject, severity) in a window.
type AlertRateLimitConfig struct {
	Max    int           `koanf:"max" validate:"gte=1"`
	Window time.Duration `koanf:"window" validate:"gt=0"`
}

// DashboardChannelConfig configures the in-process dashboard channel.
type DashboardChannelConfig struct {
	Enabled bool `koanf:"enabled"`
}

// WebhookChannelConfig configures the generic JSON webhook channel.
type WebhookChannelConfig struct {
	Enabled       bool              `koanf:"enabled"`
	URL           string            `koanf:"url"`
	Headers       map[string]string `koanf:"headers"`
	RatePerSecond float64           `koanf:"rate_per_second" validate:"gte=0"`
}

// DiscordChannelConfig configures the Discord webhook channel.
type DiscordChannelConfig struct {
	Enabled       bool    `koanf:"enabled"`
	WebhookURL    string  `koanf:"webhook_url"`
	RatePerSecond float64 `koanf:"rate_per_second" validate:"gte=0"`
}

// EmailChannelConfig configures the SMTP channel.
type EmailChannelConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Host     string   `koanf:"host"`
	Port     int      `koanf:"port" validate:"gte=0,lte=65535"`
	Username string   `koanf:"username"`
	Password string   `koanf:"password"`
	From     string   `koanf:"from" validate:"omitempty,email"`
	To       []string `koanf:"to" validate:"dive,email"`
}

// SMSChannelConfig configures the HTTP SMS gateway channel.
type SMSChannelConfig struct {
	Enabled       bool     `koanf:"enabled"`
	GatewayURL    string   `koanf:"gateway_url"`
	APIKey        string   `koanf:"api_key"`
	To            []string `koanf:"to"`
	RatePerSecond float64  `koanf:"rate_per_second" validate:"gte=0"`
}

// SweepConfig controls the periodic maintenance timer.
type SweepConfig struct {
	Interval             time.Duration `koanf:"interval" validate:"gt=0"`
	PolicyReviewInterval time.Duration `koanf:"policy_review_interval" validate:"gt=0"`

	// SignalRetention drops signal windows older than this during sweeps.
	SignalRetention time.Duration `koanf:"signal_retention" validate:"gt=0"`
}

// StorageConfig selects the EscalationState store.
type StorageConfig struct {
	Backend string `koanf:"backend" validate:"oneof=memory badger"`
	Path    string `koanf:"path"`
}

// IdentityConfig selects the identity/session collaborator.
type IdentityConfig struct {
	Mode    string        `koanf:"mode" validate:"oneof=static http"`
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// Circuit breaker settings for the HTTP client.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures" validate:"gte=1"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`

	// Static profile used in static mode and as fallback.
	DefaultRole           string `koanf:"default_role" validate:"oneof=user moderator admin"`
	DefaultAccountAgeDays int    `koanf:"default_account_age_days" validate:"gte=0"`
}

// LoadConfig selects the system-load probe.
type LoadConfig struct {
	Mode           string        `koanf:"mode" validate:"oneof=static cpu"`
	Static         string        `koanf:"static" validate:"oneof=low medium high"`
	MediumPercent  float64       `koanf:"medium_percent" validate:"gte=0,lte=100"`
	HighPercent    float64       `koanf:"high_percent" validate:"gte=0,lte=100"`
	SampleInterval time.Duration `koanf:"sample_interval" validate:"gt=0"`
}

// IngestConfig configures queue-based signal ingestion.
type IngestConfig struct {
	Enabled          bool   `koanf:"enabled"`
	Backend          string `koanf:"backend" validate:"oneof=gochannel nats"`
	URL              string `koanf:"url"`
	Topic            string `koanf:"topic" validate:"required"`
	DurableName      string `koanf:"durable_name"`
	QueueGroup       string `koanf:"queue_group"`
	SubscribersCount int    `koanf:"subscribers_count" validate:"gte=1"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	JWTSecret       string        `koanf:"jwt_secret"`
	AdminTokenTTL   time.Duration `koanf:"admin_token_ttl" validate:"gte=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// ConfigurationError reports malformed configuration. It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Factor returns the factor with the given name.
func (c *Config) Factor(name string) (FactorConfig, bool) {
	for _, f := range c.Factors {
		if f.Name == name {
			return f, true
		}
	}
	return FactorConfig{}, false
}

// Load loads configuration using Koanf v2.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
