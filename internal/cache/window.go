// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package cache

import (
	"sync"
	"time"
)

// WindowLimiter caps the number of events per key inside a sliding window.
//
// Each key keeps the timestamps of its admitted events. Entries older than the
// window are dropped lazily when the key is checked and eagerly by Prune, which
// a periodic scheduler drives with an explicit time so tests need no real timers.
//
// Example:
//
//	limiter := cache.NewWindowLimiter(5, 24*time.Hour)
//	if !limiter.Allow("user:123|high", now) {
//	    // suppressed
//	}
type WindowLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	keys   map[string][]time.Time
}

// NewWindowLimiter creates a limiter admitting at most max events per key per window.
func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	if max <= 0 {
		max = 1
	}
	return &WindowLimiter{
		max:    max,
		window: window,
		keys:   make(map[string][]time.Time),
	}
}

// Allow reserves a slot for key at now and reports whether it was admitted.
// Check and reservation happen under one lock, so concurrent callers for the
// same key can never exceed the cap.
func (l *WindowLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.expire(l.keys[key], now)
	if len(stamps) >= l.max {
		l.keys[key] = stamps
		return false
	}
	l.keys[key] = append(stamps, now)
	return true
}

// Release returns the most recent slot reserved at the given time.
// Used when a reserved event could not be delivered at all.
func (l *WindowLimiter) Release(key string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.keys[key]
	for i := len(stamps) - 1; i >= 0; i-- {
		if stamps[i].Equal(at) {
			stamps = append(stamps[:i], stamps[i+1:]...)
			break
		}
	}
	if len(stamps) == 0 {
		delete(l.keys, key)
		return
	}
	l.keys[key] = stamps
}

// Count returns the number of admitted events for key inside the window.
func (l *WindowLimiter) Count(key string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.expire(l.keys[key], now)
	if len(stamps) == 0 {
		delete(l.keys, key)
		return 0
	}
	l.keys[key] = stamps
	return len(stamps)
}

// Prune drops expired entries for every key and returns the number of keys removed.
func (l *WindowLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, stamps := range l.keys {
		stamps = l.expire(stamps, now)
		if len(stamps) == 0 {
			delete(l.keys, key)
			removed++
			continue
		}
		l.keys[key] = stamps
	}
	return removed
}

// Max returns the per-key cap.
func (l *WindowLimiter) Max() int { return l.max }

// Len returns the number of tracked keys.
func (l *WindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

// expire drops timestamps at or before now-window. Must be called with lock held.
func (l *WindowLimiter) expire(stamps []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[i:]...)
}
