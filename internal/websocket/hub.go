// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package websocket

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/models"
)

const outboxSize = 256

// Hub tracks dashboard clients and fans broadcasts out to them. Membership
// is guarded by a mutex; broadcasts queue in an outbox drained by Serve so
// publishers never wait on a socket.
type Hub struct {
	upgrader websocket.Upgrader
	outbox   chan Message

	mu      sync.RWMutex
	members map[uint64]*Client
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		outbox:   make(chan Message, outboxSize),
		members:  make(map[uint64]*Client),
	}
}

// SetCheckOrigin replaces the upgrader's origin check.
func (h *Hub) SetCheckOrigin(fn func(r *http.Request) bool) {
	h.upgrader.CheckOrigin = fn
}

func (h *Hub) String() string { return "websocket-hub" }

// Serve delivers queued broadcasts until ctx ends, then disconnects every
// client.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			closed := h.disconnectAll()
			logging.Info().
				Str("component", h.String()).
				AnErr("reason", ctx.Err()).
				Int("clients_closed", closed).
				Msg("websocket hub stopped")
			return ctx.Err()
		case msg := <-h.outbox:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.members[c.id] = c
	n := len(h.members)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(n))
	logging.Debug().Uint64("client_id", c.id).Int("total_clients", n).Msg("websocket client connected")
}

// remove drops c and closes its queue. Removing an unknown client is a no-op.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.members[c.id]
	if ok {
		delete(h.members, c.id)
		close(c.send)
	}
	n := len(h.members)
	h.mu.Unlock()

	if ok {
		metrics.WSConnections.Set(float64(n))
		logging.Debug().Uint64("client_id", c.id).Int("total_clients", n).Msg("websocket client disconnected")
	}
}

// ordered lists members by ID. The caller holds mu.
func (h *Hub) ordered() []*Client {
	ids := make([]uint64, 0, len(h.members))
	for id := range h.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*Client, len(ids))
	for i, id := range ids {
		out[i] = h.members[id]
	}
	return out
}

// fanOut queues msg for every subscribed client in ID order. A client whose
// queue is full is disconnected instead of stalling the others.
func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for _, c := range h.ordered() {
		if !c.Accepts(msg.Type) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			delete(h.members, c.id)
			close(c.send)
			dropped++
		}
	}
	if dropped > 0 {
		metrics.WSErrors.WithLabelValues("slow_client").Add(float64(dropped))
		metrics.WSConnections.Set(float64(len(h.members)))
	}
}

func (h *Hub) disconnectAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.members)
	for id, c := range h.members {
		close(c.send)
		delete(h.members, id)
	}
	metrics.WSConnections.Set(0)
	return n
}

// publish queues msg without blocking; a full outbox drops it.
func (h *Hub) publish(msg Message) {
	select {
	case h.outbox <- msg:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("message_type", msg.Type).Msg("Dashboard outbox full, dropping message")
	}
}

// BroadcastJSON queues a message of any type for every client.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	h.publish(Message{Type: messageType, Data: data})
}

// BroadcastDirective announces an applied directive.
func (h *Hub) BroadcastDirective(d *models.Directive) {
	h.publish(Message{Type: MessageTypeDirective, Data: d})
}

// BroadcastStatus announces a subject status transition.
func (h *Hub) BroadcastStatus(subjectID, from, to string, at time.Time) {
	h.publish(Message{Type: MessageTypeStatus, Data: StatusData{
		SubjectID: subjectID,
		From:      from,
		To:        to,
		Timestamp: at.UTC().Format(time.RFC3339),
	}})
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// ServeWS upgrades the request and registers the client. The optional types
// query parameter narrows the subscription:
//
//	GET /ws?types=alert,status
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		logging.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	c := NewClient(h, conn)
	if types := r.URL.Query().Get("types"); types != "" {
		c.Subscribe(strings.Split(types, ",")...)
	}
	h.add(c)
	c.Start()
}
