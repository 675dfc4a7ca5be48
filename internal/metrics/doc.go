// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package metrics provides Prometheus metrics for the risk engine.

Metrics are package-level collectors registered with promauto and exposed at
/metrics through promhttp. Callers use the Record* helpers rather than touching
label values directly.

# Available Metrics

Pipeline:
  - riskguard_signals_recorded_total{kind}
  - riskguard_signals_ignored_total{reason}
  - riskguard_evaluations_total{level}
  - riskguard_evaluation_duration_seconds
  - riskguard_escalation_rules_fired_total{rule}
  - riskguard_directives_total{action}

Enforcement:
  - riskguard_executor_results_total{status}
  - riskguard_enforcement_calls_total{action,result}
  - riskguard_pending_confirmations
  - riskguard_subjects_by_status{status}

Alerts:
  - riskguard_alerts_dispatched_total{severity}
  - riskguard_alerts_suppressed_total{severity}
  - riskguard_channel_sends_total{channel,result}
  - riskguard_channel_send_duration_seconds{channel}

Maintenance and infrastructure:
  - riskguard_sweep_duration_seconds
  - riskguard_sweep_transitions_total{kind}
  - riskguard_load_bracket
  - api_requests_total, api_request_duration_seconds, api_active_requests
  - websocket_connections, websocket_messages_sent_total, websocket_errors_total
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_state_transitions_total
  - riskguard_ingest_messages_{consumed,processed,parse_failed}_total

# Example Queries

	# suppressed share of critical alerts
	rate(riskguard_alerts_suppressed_total{severity="critical"}[1h])
	  / rate(riskguard_alerts_dispatched_total{severity="critical"}[1h])

	# enforcement failure rate
	sum(rate(riskguard_enforcement_calls_total{result="failure"}[5m]))
*/
package metrics
