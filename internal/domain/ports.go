package domain

import (
	"context"

	"github.com/google/uuid"
)

// Backend persists the whole issue collection as one document.
type Backend interface {
	// Read returns the current collection. Missing data yields an empty collection.
	Read(ctx context.Context) (Collection, error)

	// Write atomically replaces the persisted collection.
	Write(ctx context.Context, issues Collection) error
}

// Locker is implemented by backends that may be shared between processes.
// The returned unlock func releases the exclusive lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// IDGenerator produces identifiers for new issues.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator implements IDGenerator with random (version 4) UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
