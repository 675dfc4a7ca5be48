// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package models defines the data structures shared by the Riskguard engine.

The types in this package flow one direction through the pipeline:

	Signal -> Assessment -> Directive -> Envelope

Key Components:

  - Subject: read-only view of a user or IP supplied by the identity system
  - SignalKind: the behavioral event kinds the recorder accepts
  - Assessment: ephemeral scoring result (raw score, adjusted score, level, factors)
  - Directive: the concrete, parameterized action decision for one evaluation
  - Envelope: a notification payload produced by the alert dispatcher

Levels and action kinds are ordered. Level comparisons use the integer value,
action comparisons use Action.Severity so that tiers inside one kind are ordered
as well (light < moderate < strict, first < second < third < subsequent).

Thread Safety:
All types are plain values. Slices inside Assessment and Directive must be
treated as immutable once the value has been handed to another component.
*/
package models
