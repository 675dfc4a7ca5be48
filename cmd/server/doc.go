// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package main is the entry point for the riskguard server.

Riskguard scores subjects (accounts, users) from behavioral signals, maps the
score to a risk level and walks each subject through a graduated escalation
ladder: monitoring, rate limits, warnings, suspensions, blocks and quarantine.
Alerts fan out to the configured channels with per-subject rate limiting.

# Application Architecture

	RootSupervisor ("riskguard")
	├── EngineSupervisor ("engine-layer")
	│   ├── Sweeper (expiry, review resolution, cache pruning)
	│   └── CPU load probe (load.mode=cpu)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket hub (dashboard alerts and status changes)
	│   └── Signal ingest (ingest.enabled, gochannel or -tags nats)
	└── APISupervisor ("api-layer")
	    └── HTTP server (server.enabled)

Initialization order:

 1. Configuration: koanf v2 defaults, YAML file, environment
 2. Logging: zerolog, JSON or console
 3. Escalation store: memory or BadgerDB
 4. Identity provider, load probe, WebSocket hub, alert dispatcher
 5. Engine and sweeper
 6. Signal ingest (optional)
 7. HTTP API with admin bearer-token auth
 8. Supervisor tree

Stores and queue connections are closed after the tree has stopped.

# Commands

	riskguard [--config path]                  run the server
	riskguard issue-admin-token <operator>     print an admin bearer token

The token is signed with server.jwt_secret and expires after
server.admin_token_ttl. Without a secret the admin endpoints answer 503.

# Configuration

escalation.review_resolution has no default and must be set to auto_approve
or auto_reject. When a config file is given, changes to it are watched and the
log level is applied live; every other setting needs a restart.

# Build Tags

	go build ./cmd/server                # in-process signal queue only
	go build -tags nats ./cmd/server     # adds the NATS JetStream ingest backend

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains in-flight
requests, the ingest router closes, and the store is flushed and closed.
*/
package main
