// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

// Package services adapts components with their own lifecycle to
// suture.Service. Components that already expose Serve(ctx) and String()
// (the engine sweeper, the WebSocket hub, the CPU load probe and the signal
// ingestor) are added to the tree directly.
package services
