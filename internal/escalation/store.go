// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package escalation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// ErrStateNotFound is returned when a subject has no escalation record.
var ErrStateNotFound = errors.New("escalation state not found")

// Store persists escalation records. Implementations must return copies so
// callers can never mutate stored state outside Tracker.Update.
type Store interface {
	Get(ctx context.Context, subjectID string) (*State, error)
	Put(ctx context.Context, state *State) error
	Delete(ctx context.Context, subjectID string) error
	// List returns every stored record ordered by subject id.
	List(ctx context.Context) ([]*State, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

// Get returns a copy of the stored record.
func (m *MemoryStore) Get(_ context.Context, subjectID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[subjectID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return s.Clone(), nil
}

// Put stores a copy of state.
func (m *MemoryStore) Put(_ context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.SubjectID] = state.Clone()
	return nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (m *MemoryStore) Delete(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, subjectID)
	return nil
}

// List returns copies of all records.
func (m *MemoryStore) List(_ context.Context) ([]*State, error) {
	m.mu.RLock()
	out := make([]*State, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// OpenStore creates the configured store. The returned closer releases the
// badger database and is a no-op for the memory backend.
func OpenStore(backend, path string) (Store, io.Closer, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nopCloser{}, nil
	case BackendBadger:
		opts := badger.DefaultOptions(path)
		opts.Logger = nil // Suppress BadgerDB logs

		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger db for escalation state: %w", err)
		}
		return NewBadgerStore(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
