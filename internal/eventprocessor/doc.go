// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package eventprocessor consumes behavioral signals from a message queue and
feeds them to the engine.

Signals arrive as JSON on a single topic (riskguard.signals by default):

	{"subject_id": "u-42", "kind": "upload", "metadata": {"ip": "203.0.113.7"}, "timestamp": "2026-03-02T12:00:00Z"}

Two backends are available:

  - gochannel: an in-process Watermill pub/sub, always compiled. Producers in
    the same process publish through Ingestor.Publisher.
  - nats: a JetStream durable consumer, compiled with the "nats" build tag.

Messages run through a Watermill router with this middleware chain, outermost
first:

  - PoisonQueue: messages that still fail after retries are published to
    <topic>.poison
  - Retry: exponential backoff for transient engine failures
  - Recoverer: handler panics become errors

Malformed payloads and signals the engine rejects as invalid are acknowledged
and dropped; retrying them cannot succeed.

The Ingestor implements suture.Service. Each Serve call builds a fresh router
because a Watermill router cannot be restarted after Close.
*/
package eventprocessor
