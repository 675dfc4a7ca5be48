// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package cache provides thread-safe in-memory structures keyed by string.

WindowLimiter caps events per key inside a sliding window. The alert
dispatcher keys it by (subject, severity) to suppress alert floods.

Time is always passed in explicitly, so callers drive expiry from their own
clock and tests never sleep.
*/
package cache
