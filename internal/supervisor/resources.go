// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package supervisor

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Resources holds components that must be released after the tree has
// stopped, such as the escalation store and queue connections. They close in
// reverse registration order, at most once.
type Resources struct {
	mu      sync.Mutex
	closers []namedCloser
	closed  bool
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// Add registers a resource. Nil closers are ignored.
func (r *Resources) Add(name string, closer io.Closer) {
	if closer == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, namedCloser{name: name, closer: closer})
}

// Close releases every resource and joins their errors. Later calls return nil.
func (r *Resources) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
