package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/issue-crew/internal/domain"
	"github.com/runoshun/issue-crew/internal/infra/document"
	"github.com/runoshun/issue-crew/internal/issuestore"
	"github.com/runoshun/issue-crew/internal/testutil"
)

func sampleIssues() domain.Collection {
	return domain.Collection{
		{ID: "a", Title: "First", Priority: domain.PriorityHigh, Status: domain.StatusOpen},
		{ID: "b", Title: "Second", Description: "details", Priority: domain.PriorityLow, Status: domain.StatusInProgress},
	}
}

func openTestSQLite(t *testing.T, name string, codec *document.Codec) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "issues.db"), name, codec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenSQLite_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "issues.db")

	s, err := OpenSQLite(context.Background(), path, "issues", nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestStore_Read_Missing(t *testing.T) {
	s := openTestSQLite(t, "issues", nil)

	issues, err := s.Read(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
}

func TestStore_RoundTrip(t *testing.T) {
	tests := []struct {
		codec *document.Codec
		name  string
	}{
		{name: "json", codec: document.JSON()},
		{name: "yaml", codec: document.YAML()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestSQLite(t, "issues", tt.codec)
			ctx := context.Background()

			require.NoError(t, s.Write(ctx, sampleIssues()))
			got, err := s.Read(ctx)

			require.NoError(t, err)
			assert.Equal(t, sampleIssues(), got)
		})
	}
}

func TestStore_Write_Upserts(t *testing.T) {
	s := openTestSQLite(t, "issues", nil)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, sampleIssues()))
	require.NoError(t, s.Write(ctx, sampleIssues()[1:]))

	var rows int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM issue_documents`).Scan(&rows))
	assert.Equal(t, 1, rows)

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleIssues()[1:], got)
}

func TestStore_NamesAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "issues.db")
	a, err := OpenSQLite(ctx, path, "team-a", nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := OpenSQLite(ctx, path, "team-b", nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.Write(ctx, sampleIssues()))

	got, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "issues.db")

	first, err := OpenSQLite(ctx, path, "issues", nil)
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, sampleIssues()))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path, "issues", nil)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	got, err := second.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleIssues(), got)
}

func TestStore_Read_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "{broken"},
		{name: "invalid status", payload: `[{"id":"a","title":"x","description":"","priority":"low","status":"done"}]`},
		{name: "duplicate id", payload: `[
			{"id":"a","title":"x","description":"","priority":"low","status":"open"},
			{"id":"a","title":"y","description":"","priority":"low","status":"open"}
		]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestSQLite(t, "issues", nil)
			ctx := context.Background()
			_, err := s.DB().ExecContext(ctx, sqliteUpsert, "issues", []byte(tt.payload))
			require.NoError(t, err)

			_, err = s.Read(ctx)

			assert.ErrorIs(t, err, domain.ErrStorageCorruption)
			assert.NotErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestStore_ClosedDatabase(t *testing.T) {
	s := openTestSQLite(t, "issues", nil)
	require.NoError(t, s.Close())
	ctx := context.Background()

	_, err := s.Read(ctx)
	require.ErrorIs(t, err, domain.ErrStorageIO)

	err = s.Write(ctx, sampleIssues())
	assert.ErrorIs(t, err, domain.ErrStorageIO)
}

func TestStore_Encrypted(t *testing.T) {
	codec, err := document.NewCodec(domain.FormatJSON, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)
	s := openTestSQLite(t, "issues", codec)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, sampleIssues()))

	var payload []byte
	require.NoError(t, s.DB().QueryRowContext(ctx, sqliteSelect, "issues").Scan(&payload))
	assert.NotContains(t, string(payload), "First")

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleIssues(), got)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := openTestSQLite(t, "issues", nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Write(ctx, sampleIssues()))
			_, err := s.Read(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestSQLiteStore_LockSerializesHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.db")
	ctx := context.Background()

	a, err := OpenSQLite(ctx, path, "issues", nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := OpenSQLite(ctx, path, "issues", nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.Write(ctx, domain.Collection{
		{ID: "1", Title: "original", Priority: domain.PriorityMedium, Status: domain.StatusOpen},
	}))

	gate := testutil.NewGatedBackend(a)
	first := issuestore.New(gate, nil)
	second := issuestore.New(b, nil)
	title := "changed by first"
	closed := domain.StatusClosed

	testutil.Interleave(t, gate,
		func() error {
			_, err := first.Update(ctx, "1", domain.IssuePatch{Title: &title})
			return err
		},
		func() error {
			_, err := second.Update(ctx, "1", domain.IssuePatch{Status: &closed})
			return err
		},
	)

	got, err := second.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, domain.StatusClosed, got.Status)

	_, err = os.Stat(path + ".lock")
	assert.NoError(t, err)
}

func TestAdvisoryKey(t *testing.T) {
	assert.Equal(t, advisoryKey("issues"), advisoryKey("issues"))
	assert.NotEqual(t, advisoryKey("issues"), advisoryKey("other"))
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("ISSUE_CREW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ISSUE_CREW_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := OpenPostgres(ctx, dsn, "test-"+t.Name(), nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Write(ctx, sampleIssues()))
	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleIssues(), got)

	unlock, err := s.Lock(ctx)
	require.NoError(t, err)
	unlock()

	_, err = s.DB().ExecContext(ctx, `DELETE FROM issue_documents WHERE name = $1`, s.name)
	require.NoError(t, err)
}
