// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

// Error codes returned in ErrorBody.Code.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidJSON  = "INVALID_JSON"
	CodeNotFound     = "NOT_FOUND"
	CodeEngine       = "ENGINE_ERROR"
	CodeQueue        = "QUEUE_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeRateLimited  = "RATE_LIMIT_EXCEEDED"
	CodeUnauthorized = "AUTHENTICATION_ERROR"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10
