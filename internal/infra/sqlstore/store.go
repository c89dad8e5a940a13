// Package sqlstore persists the issue collection as a single row of an SQL table.
// Each write is one upsert statement, so readers see either the old or the new document.
// Writers in different processes are serialized by a sidecar flock (SQLite) or a
// session advisory lock (Postgres).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/runoshun/issue-crew/internal/domain"
	"github.com/runoshun/issue-crew/internal/infra/document"
	"github.com/runoshun/issue-crew/internal/infra/flock"
)

var (
	_ domain.Backend = (*Store)(nil)
	_ domain.Locker  = (*LockingStore)(nil)
	_ domain.Locker  = (*SQLiteStore)(nil)
)

// Store implements domain.Backend on a database/sql handle.
type Store struct {
	db      *sql.DB
	codec   *document.Codec
	dialect Dialect
	name    string // row key; lets several collections share one table
}

// LockingStore is a Store whose writers are serialized across processes with
// a Postgres session-level advisory lock.
type LockingStore struct {
	*Store
	lockKey int64
}

// sqliteBusyTimeout makes readers wait out another process's write instead of
// failing with SQLITE_BUSY.
const sqliteBusyTimeout = "?_pragma=busy_timeout(5000)"

// SQLiteStore is a Store on a database file. Writers are serialized with a
// flock on <path>.lock, since SQLite's own write lock only spans one statement.
type SQLiteStore struct {
	*Store
	lockPath string
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path, name string, codec *document.Codec) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create dirs: %w", domain.ErrStorageIO, err)
	}
	db, err := sql.Open(SQLite.Driver, path+sqliteBusyTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", domain.ErrStorageIO, err)
	}
	s, err := New(ctx, db, SQLite, name, codec)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{Store: s, lockPath: path + ".lock"}, nil
}

// OpenPostgres connects to the Postgres database named by dsn.
func OpenPostgres(ctx context.Context, dsn, name string, codec *document.Codec) (*LockingStore, error) {
	db, err := sql.Open(Postgres.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %w", domain.ErrStorageIO, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", domain.ErrStorageIO, err)
	}
	s, err := New(ctx, db, Postgres, name, codec)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &LockingStore{Store: s, lockKey: advisoryKey(name)}, nil
}

// New wraps an open database and ensures the document table exists.
// A nil codec stores plain JSON.
func New(ctx context.Context, db *sql.DB, dialect Dialect, name string, codec *document.Codec) (*Store, error) {
	if codec == nil {
		codec = document.JSON()
	}
	if name == "" {
		name = domain.DefaultNamespace
	}
	if dialect.maxOpenConns > 0 {
		db.SetMaxOpenConns(dialect.maxOpenConns)
	}
	if _, err := db.ExecContext(ctx, dialect.createTable); err != nil {
		return nil, fmt.Errorf("%w: create issue_documents table: %w", domain.ErrStorageIO, err)
	}
	return &Store{db: db, codec: codec, dialect: dialect, name: name}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Read loads the collection. A missing row yields an empty collection.
func (s *Store) Read(ctx context.Context) (domain.Collection, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.dialect.selectDoc, s.name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Collection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %w", domain.ErrStorageIO, s.name, err)
	}

	issues, err := s.codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.name, err)
	}
	return issues, nil
}

// Write replaces the collection row.
func (s *Store) Write(ctx context.Context, issues domain.Collection) error {
	payload, err := s.codec.Encode(issues)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertDoc, s.name, payload); err != nil {
		return fmt.Errorf("%w: upsert %s: %w", domain.ErrStorageIO, s.name, err)
	}
	return nil
}

// Lock takes the advisory lock on a dedicated connection and holds it until
// the returned func is called.
func (s *LockingStore) Lock(ctx context.Context) (func(), error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", domain.ErrStorageIO, err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, s.lockKey); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: advisory lock: %w", domain.ErrStorageIO, err)
	}

	return func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, s.lockKey)
		_ = conn.Close()
	}, nil
}

// Lock takes the sidecar file lock.
func (s *SQLiteStore) Lock(ctx context.Context) (func(), error) {
	unlock, err := flock.Acquire(ctx, s.lockPath)
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %w", domain.ErrStorageIO, s.name, err)
	}
	return unlock, nil
}

// advisoryKey maps a row name onto the int64 key space of pg_advisory_lock.
func advisoryKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("issue-crew:" + name))
	return int64(h.Sum64()) //nolint:gosec // wrap-around is fine for a lock key
}
