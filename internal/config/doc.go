// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package config provides centralized configuration management for Riskguard.

Every weight, threshold, duration, cooldown and routing decision used by the
engine is supplied here rather than hardcoded in the scoring or policy code.
The loaded *Config is treated as immutable and each component receives the
sub-config it needs at construction.

# Configuration Sources

Configuration is layered with Koanf v2, later layers overriding earlier ones:
  - Built-in defaults (defaultConfig)
  - Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/riskguard/config.yaml)
  - Environment variables, mapped explicitly by envTransformFunc

# Policy Tables

  - factors: scoring factors (signal kind, threshold, window, weight)
  - levels.bands: inclusive integer bands covering 0..100
  - adaptive: role, account-age, load and factor-scoped multipliers
  - exemptions: exempt roles, subject ids and trusted CIDRs
  - escalation.rules: ordered cross-cutting rules (declaration order breaks ties)
  - actions: per-level action sets and per-tier durations
  - cooldowns: warning cooldowns
  - alerts: severity routing, rate limit and channel settings

# Explicit Policy Choices

escalation.review_resolution has no default. The operator must set it to
auto_approve or auto_reject, otherwise Load fails:

	escalation:
	  review_resolution: auto_reject

# Validation

Validate runs struct-tag validation (internal/validation) followed by semantic
checks and returns a *ConfigurationError naming the offending key.

Example:

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Invalid configuration")
	}
*/
package config
