// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package websocket streams moderation events to live dashboard clients.

The hub is the transport behind the dashboard alert channel: every alert the
dispatcher routes to "dashboard" is broadcast to connected clients, together
with directive and subject status updates from the engine.

Key Components:

  - Hub: tracks clients and fans queued broadcasts out in client ID order
  - Client: one connection with a type filter, a read pump for control
    messages and a write pump
  - Message: typed envelope {"type": ..., "data": ...}

Message Types:

  - alert: an alert envelope routed to the dashboard
  - directive: a directive the executor applied
  - status: a subject's escalation status changed
  - ping / pong: client keepalive
  - subscribe / subscribed: a client narrows the broadcast types it receives,
    e.g. {"type": "subscribe", "data": ["alert"]}; an empty list restores the
    full stream. GET /ws?types=alert,status sets the filter at connect time.

Usage:

	hub := websocket.NewHub()
	tree.AddMessagingService(hub) // Serve runs until the context is canceled
	router.Get("/ws", hub.ServeWS)

Slow clients are dropped rather than allowed to back up the broadcast queue.
*/
package websocket
