// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package models

import "time"

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps every JSON body the admin API returns. Exactly one of Data
// and Error is set.
//
//	{"status":"success","data":{"subject_id":"u-42","score":45,"level":"warning"},
//	 "metadata":{"timestamp":"2026-03-02T12:00:00Z","request_id":"9b1d0c2e"}}
type Response struct {
	Status string       `json:"status"`
	Data   any          `json:"data"`
	Meta   ResponseMeta `json:"metadata"`
	Error  *ErrorBody   `json:"error,omitempty"`
}

type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorBody is a machine-readable code plus a message safe to show callers.
// Fields lists per-field problems for validation failures.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Fields  []FieldProblem `json:"fields,omitempty"`
}

type FieldProblem struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}
