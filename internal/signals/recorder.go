// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

// Package signals accumulates behavioral events per subject into time-windowed
// counters. It has no policy knowledge: callers ask how many occurrences of a
// kind fall inside a trailing window and decide what that means.
package signals

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/models"
)

// occurrence is one recorded signal.
type occurrence struct {
	at   time.Time
	meta map[string]string
}

// subjectWindows holds every window for one subject behind its own lock,
// so recording for different subjects never contends.
type subjectWindows struct {
	mu      sync.Mutex
	windows map[models.SignalKind][]occurrence
	removed bool
}

// Recorder is a concurrent-safe store of per-subject, per-kind sliding windows.
//
// Occurrences older than the retention horizon are pruned lazily whenever a
// subject is read or written, and eagerly by Sweep. Retention must be at least
// as long as the longest window any caller queries.
type Recorder struct {
	clock     clock.Clock
	retention time.Duration
	subjects  sync.Map // string -> *subjectWindows
}

// NewRecorder creates a recorder that keeps occurrences for retention.
func NewRecorder(clk clock.Clock, retention time.Duration) *Recorder {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Recorder{clock: clk, retention: retention}
}

// Retention returns the pruning horizon.
func (r *Recorder) Retention() time.Duration {
	return r.retention
}

// lock returns the locked entry for subjectID, creating it on demand.
// The caller must unlock the returned entry.
func (r *Recorder) lock(subjectID string) *subjectWindows {
	for {
		v, _ := r.subjects.LoadOrStore(subjectID, &subjectWindows{
			windows: make(map[models.SignalKind][]occurrence),
		})
		sw := v.(*subjectWindows)
		sw.mu.Lock()
		if !sw.removed {
			return sw
		}
		// Lost a race with Sweep or Forget; the entry is gone from the map.
		sw.mu.Unlock()
	}
}

// Record appends an occurrence to the subject's window for kind, creating the
// window if absent. A zero timestamp means now.
func (r *Recorder) Record(subjectID string, kind models.SignalKind, at time.Time, metadata map[string]string) {
	now := r.clock.Now()
	if at.IsZero() {
		at = now
	}

	var meta map[string]string
	if len(metadata) > 0 {
		meta = make(map[string]string, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}

	sw := r.lock(subjectID)
	defer sw.mu.Unlock()

	events := sw.windows[kind]
	// Keep the slice ordered by time; late deliveries are inserted in place.
	idx := sort.Search(len(events), func(i int) bool { return events[i].at.After(at) })
	events = append(events, occurrence{})
	copy(events[idx+1:], events[idx:])
	events[idx] = occurrence{at: at, meta: meta}
	sw.windows[kind] = r.prune(events, now)
}

// Count returns the number of occurrences of kind within the trailing window,
// pruning expired entries as a side effect.
func (r *Recorder) Count(subjectID string, kind models.SignalKind, window time.Duration) int {
	return r.count(subjectID, kind, window, "")
}

// CountDistinct returns the number of distinct values of metadata key among
// occurrences of kind within the trailing window. Occurrences without the key
// are not counted.
func (r *Recorder) CountDistinct(subjectID string, kind models.SignalKind, window time.Duration, key string) int {
	return r.count(subjectID, kind, window, key)
}

func (r *Recorder) count(subjectID string, kind models.SignalKind, window time.Duration, distinctKey string) int {
	v, ok := r.subjects.Load(subjectID)
	if !ok {
		return 0
	}
	sw := v.(*subjectWindows)

	now := r.clock.Now()
	cutoff := now.Add(-window)

	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.removed {
		return 0
	}

	events := r.prune(sw.windows[kind], now)
	if len(events) == 0 {
		delete(sw.windows, kind)
	} else {
		sw.windows[kind] = events
	}

	start := sort.Search(len(events), func(i int) bool { return !events[i].at.Before(cutoff) })
	if distinctKey == "" {
		return len(events) - start
	}

	seen := make(map[string]struct{})
	for _, e := range events[start:] {
		if val, ok := e.meta[distinctKey]; ok && val != "" {
			seen[val] = struct{}{}
		}
	}
	return len(seen)
}

// prune drops occurrences older than the retention horizon. The slice must be
// ordered by time.
func (r *Recorder) prune(events []occurrence, now time.Time) []occurrence {
	if r.retention <= 0 || len(events) == 0 {
		return events
	}
	horizon := now.Add(-r.retention)
	idx := sort.Search(len(events), func(i int) bool { return !events[i].at.Before(horizon) })
	if idx == 0 {
		return events
	}
	// Copy down so the backing array does not pin expired entries.
	n := copy(events, events[idx:])
	for i := n; i < len(events); i++ {
		events[i] = occurrence{}
	}
	return events[:n]
}

// Sweep prunes every subject and deletes subjects with no remaining
// occurrences. Each subject is locked only while it is pruned.
// Returns the number of subjects removed.
func (r *Recorder) Sweep() int {
	now := r.clock.Now()
	removed := 0

	r.subjects.Range(func(key, value any) bool {
		sw := value.(*subjectWindows)
		sw.mu.Lock()
		for kind, events := range sw.windows {
			events = r.prune(events, now)
			if len(events) == 0 {
				delete(sw.windows, kind)
			} else {
				sw.windows[kind] = events
			}
		}
		if len(sw.windows) == 0 && !sw.removed {
			sw.removed = true
			r.subjects.Delete(key)
			removed++
		}
		sw.mu.Unlock()
		return true
	})
	return removed
}

// Forget removes all windows for a subject.
func (r *Recorder) Forget(subjectID string) {
	v, ok := r.subjects.Load(subjectID)
	if !ok {
		return
	}
	sw := v.(*subjectWindows)
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if !sw.removed {
		sw.removed = true
		r.subjects.Delete(subjectID)
	}
}

// Subjects returns the number of subjects currently tracked.
func (r *Recorder) Subjects() int {
	n := 0
	r.subjects.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Counts returns the number of retained occurrences per kind for a subject.
func (r *Recorder) Counts(subjectID string) map[models.SignalKind]int {
	out := make(map[models.SignalKind]int)
	v, ok := r.subjects.Load(subjectID)
	if !ok {
		return out
	}
	sw := v.(*subjectWindows)
	now := r.clock.Now()

	sw.mu.Lock()
	defer sw.mu.Unlock()
	for kind, events := range sw.windows {
		events = r.prune(events, now)
		sw.windows[kind] = events
		if len(events) > 0 {
			out[kind] = len(events)
		}
	}
	return out
}
