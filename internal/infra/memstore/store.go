// Package memstore provides an in-process implementation of domain.Backend.
// Data is lost when the process exits; it is meant for tests and throwaway servers.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/runoshun/issue-crew/internal/domain"
)

// Ensure Store implements domain.Backend.
var _ domain.Backend = (*Store)(nil)

// Store holds a private copy of the collection.
type Store struct {
	issues domain.Collection
	mu     sync.RWMutex
}

// New creates a Store seeded with the given issues.
func New(seed ...domain.Issue) *Store {
	return &Store{issues: slices.Clone(domain.Collection(seed))}
}

// Read returns a copy of the stored collection.
func (s *Store) Read(_ context.Context) (domain.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.issues == nil {
		return domain.Collection{}, nil
	}
	return slices.Clone(s.issues), nil
}

// Write replaces the stored collection with a copy of issues.
func (s *Store) Write(_ context.Context, issues domain.Collection) error {
	cp := slices.Clone(issues)
	if cp == nil {
		cp = domain.Collection{}
	}

	s.mu.Lock()
	s.issues = cp
	s.mu.Unlock()
	return nil
}
