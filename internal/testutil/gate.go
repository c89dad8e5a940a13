package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/runoshun/issue-crew/internal/domain"
)

// GatedBackend wraps a backend and parks its first Write until Release is closed.
// Lock is forwarded when the wrapped backend is a domain.Locker.
type GatedBackend struct {
	domain.Backend
	Entered chan struct{}
	Release chan struct{}
	once    sync.Once
}

// NewGatedBackend wraps backend.
func NewGatedBackend(backend domain.Backend) *GatedBackend {
	return &GatedBackend{
		Backend: backend,
		Entered: make(chan struct{}),
		Release: make(chan struct{}),
	}
}

// Write signals Entered and waits for Release on the first call.
func (g *GatedBackend) Write(ctx context.Context, issues domain.Collection) error {
	g.once.Do(func() {
		close(g.Entered)
		<-g.Release
	})
	return g.Backend.Write(ctx, issues)
}

// Lock forwards to the wrapped backend.
func (g *GatedBackend) Lock(ctx context.Context) (func(), error) {
	if locker, ok := g.Backend.(domain.Locker); ok {
		return locker.Lock(ctx)
	}
	return func() {}, nil
}

// Interleave runs first until its write is parked on gate, then runs second.
// second must not finish while first is parked; both must succeed once the
// gate is released.
func Interleave(t *testing.T, gate *GatedBackend, first, second func() error) {
	t.Helper()

	firstDone := make(chan error, 1)
	go func() { firstDone <- first() }()

	select {
	case <-gate.Entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first writer never reached Write")
	}

	secondDone := make(chan error, 1)
	go func() { secondDone <- second() }()

	select {
	case err := <-secondDone:
		close(gate.Release)
		<-firstDone
		t.Fatalf("second writer finished while first held the write section (err=%v)", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(gate.Release)
	for name, ch := range map[string]chan error{"first": firstDone, "second": secondDone} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("%s writer: %v", name, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s writer did not finish", name)
		}
	}
}
