// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/middleware"
	"github.com/tomtom215/riskguard/internal/models"
	"github.com/tomtom215/riskguard/internal/validation"
)

// sanitizeLogValue escapes control characters so request values cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func meta(ctx context.Context) models.ResponseMeta {
	return models.ResponseMeta{
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}
}

// respondJSON writes body with status. Engine state changes on every signal,
// so nothing is cacheable.
func respondJSON(w http.ResponseWriter, status int, body *models.Response) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondOK(w http.ResponseWriter, r *http.Request, status int, data any) {
	respondJSON(w, status, &models.Response{Status: models.StatusSuccess, Data: data, Meta: meta(r.Context())})
}

func respondFailure(w http.ResponseWriter, r *http.Request, status int, body *models.ErrorBody) {
	respondJSON(w, status, &models.Response{Status: models.StatusError, Meta: meta(r.Context()), Error: body})
}

// respondError sends an error envelope. A non-nil err is logged and never
// shown to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", sanitizeLogValue(code)).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API Error")
	}
	respondFailure(w, r, status, &models.ErrorBody{Code: code, Message: message})
}

// validateRequest returns nil when v passes, else a 400 body listing every
// failed field.
func validateRequest(v any) *models.ErrorBody {
	errs := validation.Struct(v)
	if errs == nil {
		return nil
	}
	body := &models.ErrorBody{Code: CodeValidation, Message: errs.Error()}
	for _, fe := range errs {
		body.Fields = append(body.Fields, models.FieldProblem{Field: fe.Field, Rule: fe.Rule, Message: fe.Message})
	}
	return body
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// getIntParam extracts an integer query parameter clamped to [1, max].
func getIntParam(r *http.Request, key string, defaultValue, max int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return defaultValue
	}
	if n > max {
		return max
	}
	return n
}

func getBoolParam(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
