// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Signal Metrics
	SignalsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_signals_recorded_total",
			Help: "Total number of signals recorded",
		},
		[]string{"kind"},
	)

	SignalsIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_signals_ignored_total",
			Help: "Total number of signals ignored before recording",
		},
		[]string{"reason"}, // "unknown_kind", "invalid"
	)

	SignalSubjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskguard_signal_subjects",
			Help: "Current number of subjects with live signal windows",
		},
	)

	// Evaluation Metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_evaluations_total",
			Help: "Total number of risk evaluations by resulting level",
		},
		[]string{"level"},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskguard_evaluation_duration_seconds",
			Help:    "Duration of one signal evaluation including enforcement and dispatch",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
	)

	EscalationRulesFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_escalation_rules_fired_total",
			Help: "Total number of escalation rule matches that won their cycle",
		},
		[]string{"rule"},
	)

	DirectivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_directives_total",
			Help: "Total number of directives by primary action",
		},
		[]string{"action"},
	)

	// Executor Metrics
	ExecutorResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_executor_results_total",
			Help: "Total number of executor results by status",
		},
		[]string{"status"}, // "applied", "skipped", "requires_confirmation", "apply_failed"
	)

	EnforcementCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_enforcement_calls_total",
			Help: "Total number of identity system enforcement calls",
		},
		[]string{"action", "result"}, // result: "success", "failure"
	)

	PendingConfirmations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskguard_pending_confirmations",
			Help: "Current number of actions waiting for administrator confirmation",
		},
	)

	SubjectsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskguard_subjects_by_status",
			Help: "Current number of tracked subjects by escalation status",
		},
		[]string{"status"},
	)

	// Alert Metrics
	AlertsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_alerts_dispatched_total",
			Help: "Total number of alerts delivered to at least one channel",
		},
		[]string{"severity"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by the rate-limit cache",
		},
		[]string{"severity"},
	)

	ChannelSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_channel_sends_total",
			Help: "Total number of channel sends by outcome",
		},
		[]string{"channel", "result"}, // result: "success", "failure", "timeout"
	)

	ChannelSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskguard_channel_send_duration_seconds",
			Help:    "Duration of channel sends in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// Sweep Metrics
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskguard_sweep_duration_seconds",
			Help:    "Duration of maintenance sweeps in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_sweep_transitions_total",
			Help: "Total number of lifecycle changes made by sweeps",
		},
		[]string{"kind"}, // "activated", "expired", "review_started", "review_resolved", "pending_timeout"
	)

	// Load Metrics
	LoadBracket = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskguard_load_bracket",
			Help: "Current system load bracket (0=low, 1=medium, 2=high)",
		},
	)

	// HTTP API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Ingest Metrics
	IngestConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskguard_ingest_messages_consumed_total",
			Help: "Total number of signal messages consumed from the queue",
		},
	)

	IngestProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskguard_ingest_messages_processed_total",
			Help: "Total number of signal messages successfully processed",
		},
	)

	IngestParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskguard_ingest_messages_parse_failed_total",
			Help: "Total number of signal messages that failed to decode",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordSignal records an accepted signal.
func RecordSignal(kind string) {
	SignalsRecorded.WithLabelValues(kind).Inc()
}

// RecordSignalIgnored records a signal dropped before recording.
func RecordSignalIgnored(reason string) {
	SignalsIgnored.WithLabelValues(reason).Inc()
}

// RecordEvaluation records one evaluation and its duration.
func RecordEvaluation(level string, duration time.Duration) {
	EvaluationsTotal.WithLabelValues(level).Inc()
	EvaluationDuration.Observe(duration.Seconds())
}

// RecordRuleFired records the winning escalation rule of a cycle.
func RecordRuleFired(rule string) {
	EscalationRulesFired.WithLabelValues(rule).Inc()
}

// RecordDirective records a directive by its primary action kind.
func RecordDirective(action string) {
	DirectivesTotal.WithLabelValues(action).Inc()
}

// RecordExecutorResult records an executor outcome.
func RecordExecutorResult(status string) {
	ExecutorResults.WithLabelValues(status).Inc()
}

// RecordEnforcement records one identity system call.
func RecordEnforcement(action string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EnforcementCalls.WithLabelValues(action, result).Inc()
}

// RecordAlertDispatched records an alert delivered to at least one channel.
func RecordAlertDispatched(severity string) {
	AlertsDispatched.WithLabelValues(severity).Inc()
}

// RecordAlertSuppressed records an alert stopped by the rate-limit cache.
func RecordAlertSuppressed(severity string) {
	AlertsSuppressed.WithLabelValues(severity).Inc()
}

// RecordChannelSend records one channel delivery attempt.
func RecordChannelSend(channel, result string, duration time.Duration) {
	ChannelSends.WithLabelValues(channel, result).Inc()
	ChannelSendDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordSweep records a sweep duration.
func RecordSweep(duration time.Duration) {
	SweepDuration.Observe(duration.Seconds())
}

// RecordSweepTransition records a lifecycle change performed by a sweep.
func RecordSweepTransition(kind string) {
	SweepTransitions.WithLabelValues(kind).Inc()
}

// UpdateSubjectStatusCounts replaces the per-status subject gauge values.
func UpdateSubjectStatusCounts(counts map[string]int) {
	SubjectsByStatus.Reset()
	for status, n := range counts {
		SubjectsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordIngestConsume records a message being consumed
func RecordIngestConsume() {
	IngestConsumed.Inc()
}

// RecordIngestProcessed records a message being successfully processed
func RecordIngestProcessed() {
	IngestProcessed.Inc()
}

// RecordIngestParseFailed records a message that failed to decode
func RecordIngestParseFailed() {
	IngestParseFailed.Inc()
}
