// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package signals

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/models"
)

var epoch = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestRecorder(retention time.Duration) (*Recorder, *clock.Fake) {
	clk := clock.NewFake(epoch)
	return NewRecorder(clk, retention), clk
}

func TestRecorder_CountWithinWindow(t *testing.T) {
	t.Parallel()

	r, clk := newTestRecorder(24 * time.Hour)

	for i := 0; i < 12; i++ {
		r.Record("u1", models.SignalUpload, clk.Now().Add(-time.Duration(i)*20*time.Second), nil)
	}

	tests := []struct {
		name   string
		window time.Duration
		want   int
	}{
		{"five minutes covers all", 5 * time.Minute, 12},
		{"one minute boundary is inclusive", time.Minute, 4},
		{"zero window counts only now", 0, 1},
	}
	for _, tt := range tests {
		if got := r.Count("u1", models.SignalUpload, tt.window); got != tt.want {
			t.Errorf("%s: Count = %d, want %d", tt.name, got, tt.want)
		}
	}

	if got := r.Count("u1", models.SignalLoginFailure, time.Hour); got != 0 {
		t.Errorf("other kind Count = %d, want 0", got)
	}
	if got := r.Count("nobody", models.SignalUpload, time.Hour); got != 0 {
		t.Errorf("unknown subject Count = %d, want 0", got)
	}
}

func TestRecorder_WindowSlides(t *testing.T) {
	t.Parallel()

	r, clk := newTestRecorder(time.Hour)
	r.Record("u1", models.SignalLoginFailure, time.Time{}, nil)
	clk.Advance(10 * time.Minute)
	r.Record("u1", models.SignalLoginFailure, time.Time{}, nil)

	if got := r.Count("u1", models.SignalLoginFailure, 15*time.Minute); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}

	clk.Advance(6 * time.Minute)
	if got := r.Count("u1", models.SignalLoginFailure, 15*time.Minute); got != 1 {
		t.Errorf("after slide Count = %d, want 1", got)
	}
}

func TestRecorder_LateDeliveryKeepsOrder(t *testing.T) {
	t.Parallel()

	r, clk := newTestRecorder(time.Hour)
	now := clk.Now()
	r.Record("u1", models.SignalUpload, now, nil)
	r.Record("u1", models.SignalUpload, now.Add(-30*time.Minute), nil)
	r.Record("u1", models.SignalUpload, now.Add(-time.Minute), nil)

	if got := r.Count("u1", models.SignalUpload, 5*time.Minute); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
}

func TestRecorder_PrunesBeyondRetention(t *testing.T) {
	t.Parallel()

	r, clk := newTestRecorder(time.Hour)
	r.Record("u1", models.SignalProfileChange, time.Time{}, nil)
	clk.Advance(2 * time.Hour)

	if got := r.Count("u1", models.SignalProfileChange, 24*time.Hour); got != 0 {
		t.Errorf("Count beyond retention = %d, want 0", got)
	}
	if got := r.Counts("u1"); len(got) != 0 {
		t.Errorf("Counts = %v, want empty", got)
	}
}

func TestRecorder_CountDistinct(t *testing.T) {
	t.Parallel()

	r, clk := newTestRecorder(time.Hour)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.1", "10.0.0.3"} {
		r.Record("u1", models.SignalIPSeen, time.Time{}, map[string]string{models.MetaIP: ip})
		clk.Advance(time.Second)
	}
	r.Record("u1", models.SignalIPSeen, time.Time{}, nil)

	if got := r.CountDistinct("u1", models.SignalIPSeen, time.Hour, models.MetaIP); got != 3 {
		t.Errorf("CountDistinct = %d, want 3", got)
	}
	if got := r.Count("u1", models.SignalIPSeen, time.Hour); got != 5 {
		t.Errorf("Count = %d, want 5", got)
	}
}

func TestRecorder_MetadataIsCopied(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(time.Hour)
	meta := map[string]string{models.MetaUser: "alice"}
	r.Record("ip:1.2.3.4", models.SignalIPUser, time.Time{}, meta)
	meta[models.MetaUser] = "mallory"
	r.Record("ip:1.2.3.4", models.SignalIPUser, time.Time{}, meta)

	if got := r.CountDistinct("ip:1.2.3.4", models.SignalIPUser, time.Hour, models.MetaUser); got != 2 {
		t.Errorf("CountDistinct = %d, want 2", got)
	}
}

func TestRecorder_Sweep(t *testing.T) {
	t.Parallel()

	r, clk := newTestRecorder(time.Hour)
	r.Record("old", models.SignalUpload, time.Time{}, nil)
	clk.Advance(90 * time.Minute)
	r.Record("fresh", models.SignalUpload, time.Time{}, nil)

	if removed := r.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if got := r.Subjects(); got != 1 {
		t.Errorf("Subjects = %d, want 1", got)
	}

	// A swept subject is recreated on demand.
	r.Record("old", models.SignalUpload, time.Time{}, nil)
	if got := r.Count("old", models.SignalUpload, time.Minute); got != 1 {
		t.Errorf("Count after recreate = %d, want 1", got)
	}
}

func TestRecorder_Forget(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(time.Hour)
	r.Record("u1", models.SignalUpload, time.Time{}, nil)
	r.Forget("u1")
	r.Forget("u1")

	if got := r.Count("u1", models.SignalUpload, time.Hour); got != 0 {
		t.Errorf("Count after Forget = %d, want 0", got)
	}
}

func TestRecorder_ConcurrentSameSubject(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(time.Hour)

	const workers = 16
	const perWorker = 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				r.Record("shared", models.SignalAPICall, time.Time{}, map[string]string{models.MetaIP: fmt.Sprintf("10.0.%d.%d", w, i%4)})
				if i%50 == 0 {
					_ = r.Count("shared", models.SignalAPICall, time.Minute)
				}
			}
		}(w)
	}
	wg.Wait()

	if got := r.Count("shared", models.SignalAPICall, time.Hour); got != workers*perWorker {
		t.Errorf("Count = %d, want %d", got, workers*perWorker)
	}
	if got := r.CountDistinct("shared", models.SignalAPICall, time.Hour, models.MetaIP); got != workers*4 {
		t.Errorf("CountDistinct = %d, want %d", got, workers*4)
	}
}

func TestRecorder_ConcurrentSweepAndRecord(t *testing.T) {
	t.Parallel()

	r, clk := newTestRecorder(time.Minute)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			r.Record("u", models.SignalUpload, time.Time{}, nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.Sweep()
		}
	}()
	wg.Wait()

	// Nothing has aged out, so every record must survive concurrent sweeps.
	if got := r.Count("u", models.SignalUpload, time.Minute); got != 500 {
		t.Errorf("Count = %d, want 500", got)
	}
	clk.Advance(2 * time.Minute)
	r.Sweep()
	if got := r.Subjects(); got != 0 {
		t.Errorf("Subjects = %d, want 0", got)
	}
}
