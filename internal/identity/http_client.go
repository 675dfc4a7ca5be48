// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/models"
)

const breakerName = "identity-api"

// StatusError is a non-retriable HTTP response from the identity system.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("identity system returned %d: %s", e.Code, e.Body)
}

// HTTPClient calls the identity system's REST API through a circuit breaker.
//
// Endpoints:
//
//	GET    {url}/subjects/{id}                      profile
//	POST   {url}/subjects/{id}/enforcement          apply action
//	DELETE {url}/subjects/{id}/enforcement/{kind}   lift action
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	limits  config.RateLimitTiers
}

type profileResponse struct {
	ID             string `json:"id"`
	Role           string `json:"role"`
	AccountAgeDays int    `json:"account_age_days"`
	Exempt         bool   `json:"exempt"`
	IPAddress      string `json:"ip_address"`
}

type enforcementRequest struct {
	Action          string `json:"action"`
	Tier            string `json:"tier,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
	PerMinute       int    `json:"per_minute,omitempty"`
}

// NewHTTPClient creates a client for cfg.URL. Only transient failures count
// toward tripping the breaker.
func NewHTTPClient(cfg config.IdentityConfig, limits config.RateLimitTiers) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, &config.ConfigurationError{Field: "identity.url", Reason: "required for http mode"}
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransient)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
		limits:  limits,
	}, nil
}

// Profile fetches a subject profile.
func (c *HTTPClient) Profile(ctx context.Context, subjectID string) (models.Subject, error) {
	body, err := c.execute(ctx, http.MethodGet, "/subjects/"+url.PathEscape(subjectID), nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return models.Subject{}, fmt.Errorf("%w: %s", ErrUnknownSubject, subjectID)
		}
		return models.Subject{}, err
	}

	var p profileResponse
	if err := json.Unmarshal(body, &p); err != nil {
		return models.Subject{}, fmt.Errorf("decode profile: %w", err)
	}
	if p.ID == "" {
		p.ID = subjectID
	}
	return models.Subject{
		ID:             p.ID,
		Role:           models.Role(strings.ToLower(p.Role)),
		AccountAgeDays: p.AccountAgeDays,
		Exempt:         p.Exempt,
		IPAddress:      p.IPAddress,
	}, nil
}

// Enforce applies action to the subject.
func (c *HTTPClient) Enforce(ctx context.Context, subjectID string, action models.Action) error {
	req := enforcementRequest{
		Action:          string(action.Kind),
		Tier:            string(action.Tier),
		DurationSeconds: int64(action.Duration.Seconds()),
	}
	if action.Kind == models.ActionRateLimit {
		req.PerMinute = c.perMinute(action.Tier)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal enforcement: %w", err)
	}
	_, err = c.execute(ctx, http.MethodPost, "/subjects/"+url.PathEscape(subjectID)+"/enforcement", payload)
	return err
}

// Lift removes an action from the subject.
func (c *HTTPClient) Lift(ctx context.Context, subjectID string, kind models.ActionKind) error {
	path := "/subjects/" + url.PathEscape(subjectID) + "/enforcement/" + url.PathEscape(string(kind))
	_, err := c.execute(ctx, http.MethodDelete, path, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *HTTPClient) perMinute(tier models.Tier) int {
	switch tier {
	case models.TierModerate:
		return c.limits.ModeratePerMinute
	case models.TierStrict:
		return c.limits.StrictPerMinute
	default:
		return c.limits.LightPerMinute
	}
}

// execute runs one request through the breaker.
func (c *HTTPClient) execute(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, method, path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(float64(c.cb.Counts().ConsecutiveFailures))
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)
	return body, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	default:
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// stateToFloat converts circuit breaker state to a gauge value
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
