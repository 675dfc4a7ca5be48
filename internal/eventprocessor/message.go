// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package eventprocessor

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/models"
	"github.com/tomtom215/riskguard/internal/validation"
)

// ErrMalformedPayload is returned for payloads that are not a valid signal.
var ErrMalformedPayload = errors.New("malformed signal payload")

// DecodeSignal parses and validates one queue payload.
func DecodeSignal(payload []byte) (models.Signal, error) {
	var sig models.Signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return models.Signal{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if errs := validation.Struct(&sig); errs != nil {
		return models.Signal{}, fmt.Errorf("%w: %v", ErrMalformedPayload, errs)
	}
	return sig, nil
}

// NewSignalMessage encodes sig as a Watermill message with a fresh UUID.
func NewSignalMessage(sig models.Signal) (*message.Message, error) {
	payload, err := json.Marshal(sig)
	if err != nil {
		return nil, fmt.Errorf("encode signal: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("subject_id", sig.SubjectID)
	msg.Metadata.Set("kind", string(sig.Kind))
	return msg, nil
}
