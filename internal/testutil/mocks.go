// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/runoshun/issue-crew/internal/domain"
)

// MockBackend is a test double for domain.Backend.
// Fields are ordered to minimize memory padding.
type MockBackend struct {
	ReadErr  error
	WriteErr error
	// BeforeWrite, if set, is called with the collection about to be written.
	BeforeWrite func(domain.Collection)
	Issues      domain.Collection
	Reads       int
	Writes      int
	mu          sync.Mutex
}

// NewMockBackend creates a MockBackend seeded with the given issues.
func NewMockBackend(seed ...domain.Issue) *MockBackend {
	return &MockBackend{Issues: slices.Clone(domain.Collection(seed))}
}

// Read returns a copy of the stored issues or ReadErr.
func (m *MockBackend) Read(_ context.Context) (domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Reads++
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if m.Issues == nil {
		return domain.Collection{}, nil
	}
	return slices.Clone(m.Issues), nil
}

// Write stores a copy of issues or returns WriteErr.
func (m *MockBackend) Write(_ context.Context, issues domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BeforeWrite != nil {
		m.BeforeWrite(issues)
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Writes++
	m.Issues = slices.Clone(issues)
	return nil
}

// Snapshot returns a copy of the stored issues without counting a read.
func (m *MockBackend) Snapshot() domain.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Issues)
}

// MockLockingBackend wraps MockBackend and records Lock calls.
type MockLockingBackend struct {
	*MockBackend
	LockErr error
	Locks   atomic.Int32
	Held    atomic.Bool
}

// Lock records the call and returns LockErr if set.
func (m *MockLockingBackend) Lock(_ context.Context) (func(), error) {
	if m.LockErr != nil {
		return nil, m.LockErr
	}
	m.Locks.Add(1)
	m.Held.Store(true)
	return func() { m.Held.Store(false) }, nil
}

// SequenceIDs is a deterministic domain.IDGenerator producing "issue-1", "issue-2", ...
type SequenceIDs struct {
	Prefix string
	n      atomic.Int64
}

// NewID returns the next id in the sequence.
func (s *SequenceIDs) NewID() string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "issue"
	}
	return fmt.Sprintf("%s-%d", prefix, s.n.Add(1))
}

// FixedIDs returns the given ids in order, then repeats the last one.
type FixedIDs struct {
	IDs []string
	i   int
	mu  sync.Mutex
}

// NewID returns the next configured id.
func (f *FixedIDs) NewID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.IDs) == 0 {
		return ""
	}
	id := f.IDs[min(f.i, len(f.IDs)-1)]
	f.i++
	return id
}
