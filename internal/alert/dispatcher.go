// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package alert turns directives into notification envelopes and fans them out
to the configured channels.

Every envelope passes a rate-limit check keyed by subject and severity before
delivery. A subject that already received the configured number of alerts of
one severity inside the window is suppressed; suppression is reported as a
skip, not a failure. Channels are sent concurrently, each under its own
timeout, so a slow SMTP server cannot hold back the log or dashboard.
*/
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/riskguard/internal/cache"
	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/models"
)

// Dispatch statuses.
const (
	StatusDelivered  = "delivered"
	StatusSuppressed = "suppressed"
	StatusFailed     = "failed"
)

// ReasonRateLimited is the suppression reason for a capped subject.
const ReasonRateLimited = "alert rate limit reached"

// ChannelResult is the outcome for one channel.
type ChannelResult struct {
	Channel  string        `json:"channel"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// DispatchResult is the structured outcome of one dispatch.
type DispatchResult struct {
	Status   string           `json:"status"`
	Reason   string           `json:"reason,omitempty"`
	Envelope *models.Envelope `json:"envelope,omitempty"`
	Channels []ChannelResult  `json:"channels,omitempty"`
}

// Delivered reports whether at least one channel accepted the alert.
func (r DispatchResult) Delivered() bool { return r.Status == StatusDelivered }

// Dispatcher routes envelopes to channels.
type Dispatcher struct {
	channels map[string]Channel
	routing  map[models.Severity][]string
	limiter  *cache.WindowLimiter
	timeout  time.Duration
	clock    clock.Clock
	audit    *logging.DecisionLogger
}

// NewDispatcher creates a dispatcher over the given channels. Routes naming
// an unregistered channel are skipped at send time.
func NewDispatcher(cfg config.AlertsConfig, channels []Channel, clk clock.Clock) *Dispatcher {
	if clk == nil {
		clk = clock.Real{}
	}
	d := &Dispatcher{
		channels: make(map[string]Channel, len(channels)+1),
		routing:  make(map[models.Severity][]string, len(cfg.Routing)),
		limiter:  cache.NewWindowLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window),
		timeout:  cfg.ChannelTimeout,
		clock:    clk,
		audit:    logging.NewDecisionLogger(),
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
	}
	if _, ok := d.channels[ChannelLog]; !ok {
		d.channels[ChannelLog] = NewLogChannel()
	}
	for sev, names := range cfg.Routing {
		d.routing[models.Severity(sev)] = append([]string(nil), names...)
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	return d
}

// Dispatch builds an envelope for an executed directive and sends it.
func (d *Dispatcher) Dispatch(ctx context.Context, dir *models.Directive, assessment models.Assessment) DispatchResult {
	return d.Send(ctx, d.envelope(dir, assessment))
}

// Send rate-limits and delivers a prepared envelope.
func (d *Dispatcher) Send(ctx context.Context, env *models.Envelope) DispatchResult {
	now := d.clock.Now()
	key := limiterKey(env.SubjectID, env.Severity)
	if !d.limiter.Allow(key, now) {
		metrics.RecordAlertSuppressed(string(env.Severity))
		d.audit.LogSuppressed(ctx, env.SubjectID, fmt.Sprintf("%s (%s)", ReasonRateLimited, env.Severity))
		return DispatchResult{Status: StatusSuppressed, Reason: ReasonRateLimited, Envelope: env}
	}

	result := d.deliver(ctx, env)
	if !result.Delivered() {
		// Nothing reached an administrator; don't count it against the cap.
		d.limiter.Release(key, now)
	}
	return result
}

// NotifyApplyFailed raises a critical alert for an action the identity
// system could not enforce. It bypasses the rate limit.
func (d *Dispatcher) NotifyApplyFailed(ctx context.Context, dir *models.Directive, action models.Action, err error) {
	env := d.envelope(dir, dir.Evidence)
	env.Severity = models.SeverityCritical
	env.Action = action
	env.Title = fmt.Sprintf("Enforcement failed: %s", action)
	env.Message = fmt.Sprintf("Could not apply %s to %s: %v. Manual action required.", action, dir.SubjectID, err)
	env.Channels = d.route(env.Severity)

	result := d.deliver(ctx, env)
	if !result.Delivered() {
		logging.Error().
			Str("subject_id", logging.SanitizeSubjectID(dir.SubjectID)).
			Str("action", action.String()).
			Msg("Failed to notify administrators about enforcement failure")
	}
}

// Prune drops rate-limit entries whose window has passed.
func (d *Dispatcher) Prune(now time.Time) int {
	return d.limiter.Prune(now)
}

// Remaining returns how many more alerts of a severity the subject may get.
func (d *Dispatcher) Remaining(subjectID string, sev models.Severity) int {
	n := d.limiter.Count(limiterKey(subjectID, sev), d.clock.Now())
	if r := d.limiter.Max() - n; r > 0 {
		return r
	}
	return 0
}

func (d *Dispatcher) deliver(ctx context.Context, env *models.Envelope) DispatchResult {
	names := env.Channels
	results := make([]ChannelResult, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		ch := d.channels[name]
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			results[i] = d.sendOne(ctx, ch, env)
		}(i, ch)
	}
	wg.Wait()

	result := DispatchResult{Status: StatusFailed, Envelope: env, Channels: results}
	for _, r := range results {
		if r.Err == nil {
			result.Status = StatusDelivered
			break
		}
	}
	if result.Delivered() {
		metrics.RecordAlertDispatched(string(env.Severity))
	} else {
		result.Reason = "all channels failed"
	}
	return result
}

func (d *Dispatcher) sendOne(ctx context.Context, ch Channel, env *models.Envelope) ChannelResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- ch.Send(ctx, env)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("channel %s timed out: %w", ch.Name(), ctx.Err())
	}
	elapsed := time.Since(start)

	res := ChannelResult{Channel: ch.Name(), Duration: elapsed}
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		metrics.RecordChannelSend(ch.Name(), "failure", elapsed)
		logging.Warn().Err(err).
			Str("channel", ch.Name()).
			Str("alert_id", env.ID).
			Msg("Alert channel send failed")
		return res
	}
	metrics.RecordChannelSend(ch.Name(), "success", elapsed)
	return res
}

func (d *Dispatcher) envelope(dir *models.Directive, assessment models.Assessment) *models.Envelope {
	primary := dir.Primary()
	sev := maxSeverity(models.SeverityForLevel(assessment.Level), actionSeverity(primary.Kind))
	evidence := assessment

	title := fmt.Sprintf("%s: %s", titleCase(assessment.Level.String()), primary)
	if dir.RequiresConfirmation {
		title += " (awaiting confirmation)"
	}
	msg := fmt.Sprintf("Subject %s scored %d (%s).", dir.SubjectID, assessment.AdjustedScore, assessment.Level)
	if dir.Reason != "" {
		msg += " " + dir.Reason
	}

	return &models.Envelope{
		ID:          uuid.New().String(),
		Severity:    sev,
		Title:       title,
		Message:     msg,
		SubjectID:   dir.SubjectID,
		Action:      primary,
		DirectiveID: dir.ID,
		Rule:        dir.Rule,
		Evidence:    &evidence,
		Channels:    d.route(sev),
		CreatedAt:   d.clock.Now(),
	}
}

// route returns the registered channels for a severity, log first.
func (d *Dispatcher) route(sev models.Severity) []string {
	seen := map[string]bool{ChannelLog: true}
	out := []string{ChannelLog}
	for _, name := range d.routing[sev] {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := d.channels[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// actionSeverity floors the alert severity for disruptive actions.
func actionSeverity(kind models.ActionKind) models.Severity {
	switch kind {
	case models.ActionImmediateBlock:
		return models.SeverityCritical
	case models.ActionTemporarySuspension:
		return models.SeverityHigh
	case models.ActionRateLimit, models.ActionContentQuarantine, models.ActionWarning:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func maxSeverity(a, b models.Severity) models.Severity {
	if severityRank(b) > severityRank(a) {
		return b
	}
	return a
}

func severityRank(s models.Severity) int {
	for i, sev := range models.AllSeverities {
		if sev == s {
			return i
		}
	}
	return -1
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func limiterKey(subjectID string, sev models.Severity) string {
	return subjectID + "|" + string(sev)
}
