package issuestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/issue-crew/internal/domain"
	"github.com/runoshun/issue-crew/internal/infra/memstore"
	"github.com/runoshun/issue-crew/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func newTestStore(seed ...domain.Issue) (*Store, *testutil.MockBackend) {
	backend := testutil.NewMockBackend(seed...)
	return New(backend, &testutil.SequenceIDs{}), backend
}

func seedIssue(id string) domain.Issue {
	return domain.Issue{
		ID:       id,
		Title:    "Issue " + id,
		Priority: domain.PriorityMedium,
		Status:   domain.StatusOpen,
	}
}

// slowBackend widens the window between read and write so that a store without
// a critical section would lose updates.
type slowBackend struct {
	domain.Backend
	delay time.Duration
}

func (b slowBackend) Read(ctx context.Context) (domain.Collection, error) {
	issues, err := b.Backend.Read(ctx)
	time.Sleep(b.delay)
	return issues, err
}

func TestStore_List_Empty(t *testing.T) {
	store, _ := newTestStore()

	issues, err := store.List(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
}

func TestStore_List_NilFromBackend(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.Issues = nil
	store := New(backend, nil)

	issues, err := store.List(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, issues)
}

func TestStore_List_InsertionOrder(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	var want []string
	for i := range 5 {
		created, err := store.Create(ctx, domain.NewIssue{
			Title:    fmt.Sprintf("Issue %d", i),
			Priority: domain.PriorityLow,
		})
		require.NoError(t, err)
		want = append(want, created.ID)
	}

	issues, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 5)
	for i, issue := range issues {
		assert.Equal(t, want[i], issue.ID)
	}
}

func TestStore_Create(t *testing.T) {
	store, backend := newTestStore()
	ctx := context.Background()

	created, err := store.Create(ctx, domain.NewIssue{
		Title:       "Login broken",
		Description: "500 on submit",
		Priority:    domain.PriorityHigh,
	})

	require.NoError(t, err)
	assert.Equal(t, "issue-1", created.ID)
	assert.Equal(t, "Login broken", created.Title)
	assert.Equal(t, "500 on submit", created.Description)
	assert.Equal(t, domain.PriorityHigh, created.Priority)
	assert.Equal(t, domain.StatusOpen, created.Status)
	assert.Equal(t, 1, backend.Writes)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)
}

func TestStore_Create_UniqueIDs(t *testing.T) {
	backend := testutil.NewMockBackend()
	store := New(backend, domain.UUIDGenerator{})
	ctx := context.Background()

	seen := make(map[string]bool)
	for range 20 {
		created, err := store.Create(ctx, domain.NewIssue{Title: "x", Priority: domain.PriorityLow})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, seen[created.ID], "id %s reused", created.ID)
		seen[created.ID] = true
	}
	assert.NoError(t, backend.Snapshot().Validate())
}

func TestStore_Create_RegeneratesCollidingID(t *testing.T) {
	backend := testutil.NewMockBackend()
	store := New(backend, &testutil.FixedIDs{IDs: []string{"a", "a", "", "b"}})
	ctx := context.Background()

	first, err := store.Create(ctx, domain.NewIssue{Title: "first", Priority: domain.PriorityLow})
	require.NoError(t, err)
	second, err := store.Create(ctx, domain.NewIssue{Title: "second", Priority: domain.PriorityLow})
	require.NoError(t, err)

	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
}

func TestStore_Create_SkipsIDsInUse(t *testing.T) {
	store := New(testutil.NewMockBackend(), &testutil.FixedIDs{IDs: []string{"a", "b", "a", "c"}})
	ctx := context.Background()

	a, err := store.Create(ctx, domain.NewIssue{Title: "a", Priority: domain.PriorityLow})
	require.NoError(t, err)
	_, err = store.Create(ctx, domain.NewIssue{Title: "b", Priority: domain.PriorityLow})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "b"))

	// "a" is still live so the generator's repeat is rejected.
	c, err := store.Create(ctx, domain.NewIssue{Title: "c", Priority: domain.PriorityLow})
	require.NoError(t, err)
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "c", c.ID)
}

func TestStore_Create_IDExhausted(t *testing.T) {
	backend := testutil.NewMockBackend(seedIssue("a"))
	store := New(backend, &testutil.FixedIDs{IDs: []string{"a"}})

	_, err := store.Create(context.Background(), domain.NewIssue{Title: "x", Priority: domain.PriorityLow})

	require.ErrorIs(t, err, ErrIDExhausted)
	assert.Equal(t, 0, backend.Writes)
}

func TestStore_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      domain.NewIssue
		wantErr error
	}{
		{
			name:    "empty title",
			in:      domain.NewIssue{Priority: domain.PriorityLow},
			wantErr: domain.ErrEmptyTitle,
		},
		{
			name:    "invalid priority",
			in:      domain.NewIssue{Title: "x", Priority: "urgent"},
			wantErr: domain.ErrInvalidPriority,
		},
		{
			name:    "missing priority",
			in:      domain.NewIssue{Title: "x"},
			wantErr: domain.ErrInvalidPriority,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend := newTestStore(seedIssue("existing"))

			_, err := store.Create(context.Background(), tt.in)

			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, 0, backend.Writes)
			assert.Equal(t, domain.Collection{seedIssue("existing")}, backend.Snapshot())
		})
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store, _ := newTestStore(seedIssue("a"))

	_, err := store.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrIssueNotFound)
}

func TestStore_Get_ReturnsCopy(t *testing.T) {
	store, backend := newTestStore(seedIssue("a"))

	got, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	got.Title = "mutated"

	assert.Equal(t, "Issue a", backend.Snapshot()[0].Title)
}

func TestStore_Update_Partial(t *testing.T) {
	original := domain.Issue{
		ID:          "a",
		Title:       "Old title",
		Description: "keep me",
		Priority:    domain.PriorityLow,
		Status:      domain.StatusOpen,
	}
	store, backend := newTestStore(original)

	updated, err := store.Update(context.Background(), "a", domain.IssuePatch{
		Status: ptr(domain.StatusInProgress),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.Issue{
		ID:          "a",
		Title:       "Old title",
		Description: "keep me",
		Priority:    domain.PriorityLow,
		Status:      domain.StatusInProgress,
	}, *updated)
	assert.Equal(t, *updated, backend.Snapshot()[0])
}

func TestStore_Update_AllFields(t *testing.T) {
	store, _ := newTestStore(seedIssue("a"), seedIssue("b"))

	updated, err := store.Update(context.Background(), "b", domain.IssuePatch{
		Title:       ptr("New"),
		Description: ptr(""),
		Priority:    ptr(domain.PriorityHigh),
		Status:      ptr(domain.StatusClosed),
	})

	require.NoError(t, err)
	assert.Equal(t, "b", updated.ID)
	assert.Equal(t, "New", updated.Title)
	assert.Empty(t, updated.Description)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)
	assert.Equal(t, domain.StatusClosed, updated.Status)

	other, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, seedIssue("a"), *other)
}

func TestStore_Update_EmptyPatch(t *testing.T) {
	store, backend := newTestStore(seedIssue("a"))

	updated, err := store.Update(context.Background(), "a", domain.IssuePatch{})

	require.NoError(t, err)
	assert.Equal(t, seedIssue("a"), *updated)
	assert.Equal(t, 0, backend.Writes)
}

func TestStore_Update_EmptyPatchNotFound(t *testing.T) {
	store, _ := newTestStore(seedIssue("a"))

	_, err := store.Update(context.Background(), "missing", domain.IssuePatch{})

	assert.ErrorIs(t, err, domain.ErrIssueNotFound)
}

func TestStore_Update_NotFound(t *testing.T) {
	store, backend := newTestStore(seedIssue("a"))

	_, err := store.Update(context.Background(), "missing", domain.IssuePatch{Title: ptr("x")})

	require.ErrorIs(t, err, domain.ErrIssueNotFound)
	assert.Equal(t, 0, backend.Writes)
}

func TestStore_Update_AllOrNothing(t *testing.T) {
	tests := []struct {
		name    string
		patch   domain.IssuePatch
		wantErr error
	}{
		{
			name:    "invalid status with valid title",
			patch:   domain.IssuePatch{Title: ptr("changed"), Status: ptr(domain.Status("done"))},
			wantErr: domain.ErrInvalidStatus,
		},
		{
			name:    "invalid priority with valid description",
			patch:   domain.IssuePatch{Description: ptr("changed"), Priority: ptr(domain.Priority("urgent"))},
			wantErr: domain.ErrInvalidPriority,
		},
		{
			name:    "empty title with valid status",
			patch:   domain.IssuePatch{Title: ptr(""), Status: ptr(domain.StatusClosed)},
			wantErr: domain.ErrEmptyTitle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend := newTestStore(seedIssue("a"))

			_, err := store.Update(context.Background(), "a", tt.patch)

			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, 0, backend.Writes)
			assert.Equal(t, domain.Collection{seedIssue("a")}, backend.Snapshot())
		})
	}
}

func TestStore_Update_ValidationBeforeLookup(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.Update(context.Background(), "missing", domain.IssuePatch{Status: ptr(domain.Status("done"))})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotErrorIs(t, err, domain.ErrIssueNotFound)
}

func TestStore_Delete(t *testing.T) {
	store, backend := newTestStore(seedIssue("a"), seedIssue("b"), seedIssue("c"))
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "b"))

	_, err := store.Get(ctx, "b")
	require.ErrorIs(t, err, domain.ErrIssueNotFound)
	assert.Equal(t, domain.Collection{seedIssue("a"), seedIssue("c")}, backend.Snapshot())
}

func TestStore_Delete_NotFound(t *testing.T) {
	store, backend := newTestStore(seedIssue("a"))

	err := store.Delete(context.Background(), "missing")

	require.ErrorIs(t, err, domain.ErrIssueNotFound)
	assert.Equal(t, 0, backend.Writes)
	assert.Equal(t, domain.Collection{seedIssue("a")}, backend.Snapshot())
}

func TestStore_Delete_Twice(t *testing.T) {
	store, _ := newTestStore(seedIssue("a"))
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "a"))
	assert.ErrorIs(t, store.Delete(ctx, "a"), domain.ErrIssueNotFound)
}

func TestStore_StorageErrors(t *testing.T) {
	ioErr := fmt.Errorf("%w: disk on fire", domain.ErrStorageIO)
	corruptErr := fmt.Errorf("%w: bad json", domain.ErrStorageCorruption)

	ops := map[string]func(*Store) error{
		"list": func(s *Store) error {
			_, err := s.List(context.Background())
			return err
		},
		"get": func(s *Store) error {
			_, err := s.Get(context.Background(), "a")
			return err
		},
		"create": func(s *Store) error {
			_, err := s.Create(context.Background(), domain.NewIssue{Title: "x", Priority: domain.PriorityLow})
			return err
		},
		"update": func(s *Store) error {
			_, err := s.Update(context.Background(), "a", domain.IssuePatch{Title: ptr("x")})
			return err
		},
		"delete": func(s *Store) error {
			return s.Delete(context.Background(), "a")
		},
	}

	for name, op := range ops {
		t.Run(name+"/read io", func(t *testing.T) {
			store, backend := newTestStore(seedIssue("a"))
			backend.ReadErr = ioErr
			assert.ErrorIs(t, op(store), domain.ErrStorageIO)
		})
		t.Run(name+"/read corruption", func(t *testing.T) {
			store, backend := newTestStore(seedIssue("a"))
			backend.ReadErr = corruptErr
			err := op(store)
			assert.ErrorIs(t, err, domain.ErrStorageCorruption)
			assert.NotErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestStore_WriteFailureLeavesCollection(t *testing.T) {
	store, backend := newTestStore(seedIssue("a"))
	backend.WriteErr = fmt.Errorf("%w: read-only filesystem", domain.ErrStorageIO)
	ctx := context.Background()

	_, err := store.Create(ctx, domain.NewIssue{Title: "x", Priority: domain.PriorityLow})
	require.ErrorIs(t, err, domain.ErrStorageIO)

	_, err = store.Update(ctx, "a", domain.IssuePatch{Title: ptr("x")})
	require.ErrorIs(t, err, domain.ErrStorageIO)

	require.ErrorIs(t, store.Delete(ctx, "a"), domain.ErrStorageIO)

	assert.Equal(t, domain.Collection{seedIssue("a")}, backend.Snapshot())
}

func TestStore_LocksBackendForWrites(t *testing.T) {
	backend := &testutil.MockLockingBackend{MockBackend: testutil.NewMockBackend()}
	var heldDuringWrite []bool
	backend.BeforeWrite = func(domain.Collection) {
		heldDuringWrite = append(heldDuringWrite, backend.Held.Load())
	}
	store := New(backend, &testutil.SequenceIDs{})
	ctx := context.Background()

	created, err := store.Create(ctx, domain.NewIssue{Title: "x", Priority: domain.PriorityLow})
	require.NoError(t, err)
	_, err = store.Update(ctx, created.ID, domain.IssuePatch{Status: ptr(domain.StatusClosed)})
	require.NoError(t, err)
	_, err = store.List(ctx)
	require.NoError(t, err)
	_, err = store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, created.ID))

	assert.Equal(t, int32(3), backend.Locks.Load())
	assert.Equal(t, []bool{true, true, true}, heldDuringWrite)
	assert.False(t, backend.Held.Load())
}

func TestStore_LockError(t *testing.T) {
	lockErr := errors.New("lock timeout")
	backend := &testutil.MockLockingBackend{
		MockBackend: testutil.NewMockBackend(),
		LockErr:     lockErr,
	}
	store := New(backend, nil)

	_, err := store.Create(context.Background(), domain.NewIssue{Title: "x", Priority: domain.PriorityLow})

	require.ErrorIs(t, err, lockErr)
	assert.Equal(t, 0, backend.Reads)
	assert.Equal(t, 0, backend.Writes)
}

func TestStore_ConcurrentUpdatesDifferentFields(t *testing.T) {
	backend := slowBackend{Backend: memstore.New(), delay: 2 * time.Millisecond}
	store := New(backend, &testutil.SequenceIDs{})
	ctx := context.Background()

	for round := range 10 {
		created, err := store.Create(ctx, domain.NewIssue{Title: "orig", Priority: domain.PriorityLow})
		require.NoError(t, err)

		title := fmt.Sprintf("title %d", round)
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.Update(ctx, created.ID, domain.IssuePatch{Title: &title})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, err := store.Update(ctx, created.ID, domain.IssuePatch{Status: ptr(domain.StatusClosed)})
			assert.NoError(t, err)
		}()
		close(start)
		wg.Wait()

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, title, got.Title)
		assert.Equal(t, domain.StatusClosed, got.Status)
	}
}

func TestStore_ConcurrentCreates(t *testing.T) {
	backend := slowBackend{Backend: memstore.New(), delay: time.Millisecond}
	store := New(backend, nil)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, domain.NewIssue{Title: fmt.Sprintf("issue %d", i), Priority: domain.PriorityMedium})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	issues, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, n)
	assert.NoError(t, issues.Validate())
}

func TestStore_Scenario(t *testing.T) {
	store := New(memstore.New(), nil)
	ctx := context.Background()

	created, err := store.Create(ctx, domain.NewIssue{
		Title:       "Login broken",
		Description: "500 on submit",
		Priority:    domain.PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, created.Status)

	issues, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Collection{*created}, issues)

	updated, err := store.Update(ctx, created.ID, domain.IssuePatch{Status: ptr(domain.StatusInProgress)})
	require.NoError(t, err)
	assert.Equal(t, "Login broken", updated.Title)
	assert.Equal(t, "500 on submit", updated.Description)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)
	assert.Equal(t, domain.StatusInProgress, updated.Status)

	_, err = store.Update(ctx, created.ID, domain.IssuePatch{Priority: ptr(domain.Priority("urgent"))})
	require.ErrorIs(t, err, domain.ErrValidation)
	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *updated, *got)

	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.Get(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrIssueNotFound)
	require.ErrorIs(t, store.Delete(ctx, created.ID), domain.ErrIssueNotFound)

	issues, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, issues)
}
