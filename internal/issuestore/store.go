// Package issuestore owns issue identity, partial-update semantics and the
// consistency of the persisted collection under concurrent access.
//
// Every operation reads the collection fresh from the backend. Write operations
// (Create, Update, Delete) run their read → mutate → write sequence inside an
// exclusive critical section, so concurrent writers never clobber each other.
package issuestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/runoshun/issue-crew/internal/domain"
)

// maxIDAttempts bounds retries when the generator returns an id already in use.
const maxIDAttempts = 8

// ErrIDExhausted is returned when no unused id could be generated.
var ErrIDExhausted = errors.New("could not generate a unique issue id")

// Store is the issue store. It is safe for concurrent use.
// Construct one per backend and share it between request handlers.
type Store struct {
	backend domain.Backend
	ids     domain.IDGenerator
	mu      sync.RWMutex
}

// New creates a Store on top of backend. A nil ids uses random UUIDs.
func New(backend domain.Backend, ids domain.IDGenerator) *Store {
	if ids == nil {
		ids = domain.UUIDGenerator{}
	}
	return &Store{
		backend: backend,
		ids:     ids,
	}
}

// List returns every issue in insertion order.
func (s *Store) List(ctx context.Context) (domain.Collection, error) {
	issues, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return issues, nil
}

// Get returns the issue with the given id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Issue, error) {
	issues, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	idx := issues.IndexOf(id)
	if idx < 0 {
		return nil, domain.ErrIssueNotFound
	}
	issue := issues[idx]
	return &issue, nil
}

// Create validates in, assigns a fresh id and the initial status, and appends
// the new issue to the collection.
func (s *Store) Create(ctx context.Context, in domain.NewIssue) (*domain.Issue, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created domain.Issue
	err := s.mutate(ctx, func(issues domain.Collection) (domain.Collection, bool, error) {
		id, err := s.newID(issues)
		if err != nil {
			return nil, false, err
		}
		created = domain.Issue{
			ID:          id,
			Title:       in.Title,
			Description: in.Description,
			Priority:    in.Priority,
			Status:      domain.InitialStatus,
		}
		return append(issues, created), true, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update applies the supplied fields of patch to the issue with the given id.
// If any supplied field is invalid nothing is applied.
func (s *Store) Update(ctx context.Context, id string, patch domain.IssuePatch) (*domain.Issue, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated domain.Issue
	err := s.mutate(ctx, func(issues domain.Collection) (domain.Collection, bool, error) {
		idx := issues.IndexOf(id)
		if idx < 0 {
			return nil, false, domain.ErrIssueNotFound
		}
		if patch.IsEmpty() {
			updated = issues[idx]
			return issues, false, nil
		}
		patch.ApplyTo(&issues[idx])
		updated = issues[idx]
		return issues, true, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the issue with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, func(issues domain.Collection) (domain.Collection, bool, error) {
		idx := issues.IndexOf(id)
		if idx < 0 {
			return nil, false, domain.ErrIssueNotFound
		}
		return slices.Delete(issues, idx, idx+1), true, nil
	})
}

// read loads the collection under the shared lock.
func (s *Store) read(ctx context.Context) (domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issues, err := s.backend.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read issues: %w", err)
	}
	if issues == nil {
		issues = domain.Collection{}
	}
	return issues, nil
}

// mutate runs fn inside the exclusive critical section and persists its result
// when fn reports a change. Backends that implement domain.Locker are also
// locked for the duration, which extends the exclusion to other processes.
func (s *Store) mutate(ctx context.Context, fn func(domain.Collection) (domain.Collection, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if locker, ok := s.backend.(domain.Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return fmt.Errorf("lock issues: %w", err)
		}
		defer unlock()
	}

	issues, err := s.backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("read issues: %w", err)
	}

	next, changed, err := fn(issues)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := s.backend.Write(ctx, next); err != nil {
		return fmt.Errorf("write issues: %w", err)
	}
	return nil
}

// newID returns an id that is non-empty and not present in issues.
func (s *Store) newID(issues domain.Collection) (string, error) {
	for range maxIDAttempts {
		id := s.ids.NewID()
		if id != "" && issues.IndexOf(id) < 0 {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}
