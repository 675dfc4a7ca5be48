// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/riskguard/internal/models"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStore(db)
}

func TestStores(t *testing.T) {
	t.Parallel()

	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"badger": func(t *testing.T) Store { return newTestBadgerStore(t) },
	}

	for name, newStore := range stores {
		newStore := newStore
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := newStore(t)

			if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrStateNotFound) {
				t.Fatalf("Get(missing) = %v, want ErrStateNotFound", err)
			}

			s := NewState("u2")
			s.Status = StatusSuspended
			s.SuspensionCount = 2
			s.LastSuspensionTier = models.TierSecond
			s.Scores = []ScorePoint{{At: epoch, Score: 72, Level: models.LevelCritical}}
			s.Active = []ActiveAction{{
				Action:      models.Action{Kind: models.ActionTemporarySuspension, Tier: models.TierSecond, Duration: 6 * time.Hour},
				AppliedAt:   epoch,
				ActivatesAt: epoch.Add(15 * time.Minute),
				ExpiresAt:   epoch.Add(6*time.Hour + 15*time.Minute),
			}}
			s.Pending = &PendingAction{ID: "pend-1", Action: models.Action{Kind: models.ActionImmediateBlock}, PriorStatus: StatusSuspended}
			if err := store.Put(ctx, s); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := store.Put(ctx, NewState("u1")); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := store.Get(ctx, "u2")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != StatusSuspended || got.SuspensionCount != 2 || got.LastSuspensionTier != models.TierSecond {
				t.Errorf("Get = %+v", got)
			}
			if len(got.Scores) != 1 || got.Scores[0].Level != models.LevelCritical {
				t.Errorf("Scores = %+v", got.Scores)
			}
			if len(got.Active) != 1 || !got.Active[0].ExpiresAt.Equal(s.Active[0].ExpiresAt) {
				t.Errorf("Active = %+v", got.Active)
			}
			if got.Pending == nil || got.Pending.ID != "pend-1" {
				t.Errorf("Pending = %+v", got.Pending)
			}

			got.Status = StatusBlocked
			if again, _ := store.Get(ctx, "u2"); again.Status != StatusSuspended {
				t.Error("mutating a returned record changed the store")
			}

			all, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(all) != 2 || all[0].SubjectID != "u1" || all[1].SubjectID != "u2" {
				t.Errorf("List = %d records, want u1,u2", len(all))
			}

			if err := store.Delete(ctx, "u2"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := store.Delete(ctx, "u2"); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
			if _, err := store.Get(ctx, "u2"); !errors.Is(err, ErrStateNotFound) {
				t.Errorf("Get after Delete = %v", err)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	store, closer, err := OpenStore(BackendMemory, "")
	if err != nil {
		t.Fatalf("OpenStore(memory): %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("store = %T, want *MemoryStore", store)
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	store, closer, err = OpenStore(BackendBadger, t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore(badger): %v", err)
	}
	if _, ok := store.(*BadgerStore); !ok {
		t.Errorf("store = %T, want *BadgerStore", store)
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	if _, _, err := OpenStore("etcd", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}
