// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/riskguard/internal/clock"
)

const (
	// RoleAdmin may approve confirmations and recover subjects.
	RoleAdmin = "admin"

	issuer     = "riskguard"
	defaultTTL = 24 * time.Hour
)

var (
	// ErrSecretRequired is returned when no signing secret is configured.
	ErrSecretRequired = errors.New("jwt secret is required")
	// ErrInvalidToken wraps every verification failure.
	ErrInvalidToken = errors.New("invalid admin token")
)

// Claims identify the operator behind an admin request.
type Claims struct {
	Operator string `json:"op"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 admin tokens.
type JWTManager struct {
	key    []byte
	ttl    time.Duration
	clock  clock.Clock
	parser *jwt.Parser
}

// NewJWTManager creates a manager. ttl <= 0 means 24 hours.
//
//	manager, err := auth.NewJWTManager(cfg.Server.JWTSecret, cfg.Server.AdminTokenTTL)
func NewJWTManager(secret string, ttl time.Duration) (*JWTManager, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	m := &JWTManager{key: []byte(secret), ttl: ttl}
	m.SetClock(clock.Real{})
	return m, nil
}

// SetClock replaces the time source for issuing and expiry checks.
func (m *JWTManager) SetClock(c clock.Clock) {
	m.clock = c
	// Pinning HS256 rejects "alg: none" and key-confusion tokens.
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.Now),
	)
}

// Issue signs a token for operator with role.
func (m *JWTManager) Issue(operator, role string) (string, error) {
	now := m.clock.Now()
	claims := Claims{
		Operator: operator,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Verify returns the claims of a valid token. Failures wrap both
// ErrInvalidToken and the jwt cause, e.g. jwt.ErrTokenExpired.
func (m *JWTManager) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Operator == "" {
		return nil, fmt.Errorf("%w: no operator", ErrInvalidToken)
	}
	return claims, nil
}
