// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

// Package validation checks tagged structs with go-playground/validator and
// turns failures into readable per-field messages. Besides the stock tags it
// knows the engine vocabulary:
//
//	signal_kind      any signal kind, derived ones included
//	external_signal  a signal kind collaborators may report
//	action_kind      a known enforcement action
//	level_name       safe, attention, warning, critical or emergency
//
// The config loader, the admin API and the queue ingestor share one
// validator instance.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/riskguard/internal/models"
)

var rules = map[string]validator.Func{
	"signal_kind": func(fl validator.FieldLevel) bool {
		return models.IsKnownSignal(models.SignalKind(fl.Field().String()))
	},
	"external_signal": func(fl validator.FieldLevel) bool {
		return models.IsExternalSignal(models.SignalKind(fl.Field().String()))
	},
	"action_kind": func(fl validator.FieldLevel) bool {
		return models.ActionKind(fl.Field().String()).Valid()
	},
	"level_name": func(fl validator.FieldLevel) bool {
		_, err := models.ParseLevel(fl.Field().String())
		return err == nil
	},
}

// Validator returns the shared instance, built on first use.
var Validator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("validation: register %s: %v", tag, err))
		}
	}
	return v
})

// FieldError is one failed rule.
type FieldError struct {
	Field   string // struct field name
	Path    string // namespace, e.g. Config.Alerts.Email.Port
	Rule    string // failing tag
	Param   string // tag parameter, e.g. "16" for max=16
	Value   any
	Message string
}

func (e FieldError) Error() string { return e.Message }

// Errors is every rule a value failed, in field order.
type Errors []FieldError

func (es Errors) Error() string {
	if len(es) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Struct validates v. The result is nil when v passes.
func Struct(v any) Errors {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// invalid input such as a nil pointer
		return Errors{{Field: "-", Rule: "struct", Message: err.Error()}}
	}

	out := make(Errors, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			Field:   fe.Field(),
			Path:    fe.Namespace(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: describe(fe),
		}
	}
	return out
}

var phrases = map[string]string{
	"required":        "is required",
	"url":             "must be a valid URL",
	"email":           "must be a valid email address",
	"cidr":            "must be a valid CIDR",
	"signal_kind":     "must be a known signal kind",
	"external_signal": "must be a signal kind accepted from collaborators",
	"action_kind":     "must be a known action kind",
	"level_name":      "must be one of safe, attention, warning, critical, emergency",
	"oneof":           "must be one of: %s",
	"gt":              "must be greater than %s",
	"gte":             "must be greater than or equal to %s",
	"lt":              "must be less than %s",
	"lte":             "must be less than or equal to %s",
}

func describe(fe validator.FieldError) string {
	name := fe.Field()
	switch tag := fe.Tag(); tag {
	case "min", "max":
		bound := "at least"
		if tag == "max" {
			bound = "at most"
		}
		unit := ""
		if fe.Kind().String() == "string" {
			unit = " characters"
		}
		return fmt.Sprintf("%s must be %s %s%s", name, bound, fe.Param(), unit)
	default:
		phrase, ok := phrases[tag]
		if !ok {
			return fmt.Sprintf("%s failed %s validation", name, tag)
		}
		if strings.Contains(phrase, "%s") {
			phrase = fmt.Sprintf(phrase, fe.Param())
		}
		return name + " " + phrase
	}
}
