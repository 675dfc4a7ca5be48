// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package websocket

import "github.com/goccy/go-json"

// Broadcast message types.
const (
	MessageTypeAlert     = "alert"
	MessageTypeDirective = "directive"
	MessageTypeStatus    = "status"
)

// Control message types exchanged with a single client.
const (
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
	MessageTypeSubscribe  = "subscribe"
	MessageTypeSubscribed = "subscribed"
)

var messageTypeOrder = []string{MessageTypeAlert, MessageTypeDirective, MessageTypeStatus}

var broadcastTypes = map[string]bool{
	MessageTypeAlert:     true,
	MessageTypeDirective: true,
	MessageTypeStatus:    true,
}

// Message is the frame sent to clients: {"type": ..., "data": ...}.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StatusData is the payload of a status message.
type StatusData struct {
	SubjectID string `json:"subject_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`
}

func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
