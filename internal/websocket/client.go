// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package websocket

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // clients only send pings and subscriptions
	sendBuffer     = 256
)

var clientSeq atomic.Uint64

// Client is one dashboard connection. A client receives every broadcast
// type unless it narrowed its subscription.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	topics atomic.Pointer[map[string]struct{}] // nil means every type
}

// NewClient creates a client with the next ID.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientSeq.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
}

// ID orders clients for broadcast.
func (c *Client) ID() uint64 { return c.id }

// Subscribe limits delivery to the given message types. No types restores
// the full stream. Unknown types are ignored.
func (c *Client) Subscribe(types ...string) {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if broadcastTypes[t] {
			set[t] = struct{}{}
		}
	}
	if len(set) == 0 {
		c.topics.Store(nil)
		return
	}
	c.topics.Store(&set)
}

// Accepts reports whether a broadcast of msgType should reach the client.
func (c *Client) Accepts(msgType string) bool {
	set := c.topics.Load()
	if set == nil {
		return true
	}
	_, ok := (*set)[msgType]
	return ok
}

// reply queues a direct answer without blocking the read loop.
func (c *Client) reply(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// readPump handles client control messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Warn().Err(err).Uint64("client_id", c.id).Msg("Dashboard client closed unexpectedly")
			}
			return
		}

		var ctrl struct {
			Type string   `json:"type"`
			Data []string `json:"data"`
		}
		if err := json.Unmarshal(raw, &ctrl); err != nil {
			continue
		}
		switch ctrl.Type {
		case MessageTypePing:
			c.reply(Message{Type: MessageTypePong})
		case MessageTypeSubscribe:
			c.Subscribe(ctrl.Data...)
			c.reply(Message{Type: MessageTypeSubscribed, Data: c.subscriptions()})
		}
	}
}

// subscriptions lists the active filter, or nil for the full stream.
func (c *Client) subscriptions() []string {
	set := c.topics.Load()
	if set == nil {
		return nil
	}
	out := make([]string, 0, len(*set))
	for _, t := range messageTypeOrder {
		if _, ok := (*set)[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// writePump drains the send queue and keeps the connection alive with pings.
// It returns when the hub closes the queue or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub stopped"))
				return
			}
			payload, err := MarshalMessage(msg)
			if err != nil {
				metrics.WSErrors.WithLabelValues("encode").Inc()
				logging.Error().Err(err).Str("message_type", msg.Type).Msg("Dropping unencodable dashboard message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs both pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
