// Package filestore provides a single-file implementation of domain.Backend.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/runoshun/issue-crew/internal/domain"
	"github.com/runoshun/issue-crew/internal/infra/document"
	"github.com/runoshun/issue-crew/internal/infra/flock"
)

// Ensure Store implements domain.Backend and domain.Locker.
var (
	_ domain.Backend = (*Store)(nil)
	_ domain.Locker  = (*Store)(nil)
)

// Store keeps the whole collection in one file.
// Writes go to a temp file in the same directory which is then renamed over
// the target, so readers always see a complete document.
type Store struct {
	codec    *document.Codec
	path     string
	lockPath string
}

// New creates a new Store for the given file path.
// The file does not need to exist; it will be created on first write.
func New(path string, codec *document.Codec) *Store {
	if codec == nil {
		codec = document.JSON()
	}
	return &Store{
		codec:    codec,
		path:     path,
		lockPath: path + ".lock",
	}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Read loads the collection from disk. A missing file yields an empty collection.
func (s *Store) Read(_ context.Context) (domain.Collection, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Collection{}, nil
		}
		return nil, fmt.Errorf("%w: read store file: %w", domain.ErrStorageIO, err)
	}

	issues, err := s.codec.Decode(content)
	if err != nil {
		return nil, fmt.Errorf("parse store file %s: %w", s.path, err)
	}
	return issues, nil
}

// Write atomically replaces the file contents with the encoded collection.
func (s *Store) Write(_ context.Context, issues domain.Collection) error {
	content, err := s.codec.Encode(issues)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: create directory: %w", domain.ErrStorageIO, err)
	}

	// Write to temp file first, then rename for atomicity
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", domain.ErrStorageIO, err)
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, content); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp file: %w", domain.ErrStorageIO, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath) // Clean up
		return fmt.Errorf("%w: rename temp file: %w", domain.ErrStorageIO, err)
	}

	syncDir(dir)
	return nil
}

// Lock takes an exclusive flock on the sidecar lock file so that writers in
// other processes (for example the CLI next to a running server) are serialized.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	unlock, err := flock.Acquire(ctx, s.lockPath)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire lock: %w", domain.ErrStorageIO, err)
	}
	return unlock, nil
}

func writeAndSync(f *os.File, content []byte) error {
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes the directory entry so the rename survives a crash.
// Errors are ignored; some filesystems do not support syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
