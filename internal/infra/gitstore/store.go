// Package gitstore stores the issue collection inside a Git repository using
// plumbing objects only: the document is a blob and refs/<namespace>/issues
// points at it. The work tree and branches are never touched.
package gitstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/runoshun/issue-crew/internal/domain"
	"github.com/runoshun/issue-crew/internal/infra/document"
	"github.com/runoshun/issue-crew/internal/infra/flock"
)

// Ensure Store implements domain.Backend and domain.Locker.
var (
	_ domain.Backend = (*Store)(nil)
	_ domain.Locker  = (*Store)(nil)
)

// Store implements domain.Backend on Git refs and blobs.
//
// Data structure:
//
//	refs/<namespace>/
//	  issues → blob (collection document)
type Store struct {
	repo      *git.Repository
	codec     *document.Codec
	namespace string // e.g., "issues"
	lockPath  string // empty for in-memory repositories
	mu        sync.Mutex
}

// Open opens the repository containing repoPath.
func Open(repoPath, namespace string, codec *document.Codec) (*Store, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: open git repository %s: %w", domain.ErrStorageIO, repoPath, err)
	}
	return NewWithRepo(repo, namespace, codec), nil
}

// NewWithRepo creates a Store with an existing repository instance.
// A nil codec stores plain JSON.
func NewWithRepo(repo *git.Repository, namespace string, codec *document.Codec) *Store {
	if codec == nil {
		codec = document.JSON()
	}
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	return &Store{
		repo:      repo,
		codec:     codec,
		namespace: namespace,
		lockPath:  lockPathFor(repo, namespace),
	}
}

// lockPathFor places the sidecar lock inside the git directory, one file per namespace.
func lockPathFor(repo *git.Repository, namespace string) string {
	fs, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return ""
	}
	name := "issue-crew-" + strings.ReplaceAll(namespace, "/", "-") + ".lock"
	return filepath.Join(fs.Filesystem().Root(), name)
}

// Lock serializes writers across processes sharing the repository.
// Repositories without an on-disk git directory have nothing to lock.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	if s.lockPath == "" {
		return func() {}, nil
	}
	unlock, err := flock.Acquire(ctx, s.lockPath)
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %w", domain.ErrStorageIO, s.RefName(), err)
	}
	return unlock, nil
}

// RefName returns the ref holding the collection document.
func (s *Store) RefName() plumbing.ReferenceName {
	return plumbing.ReferenceName("refs/" + s.namespace + "/issues")
}

// Read loads the collection the ref points at. A missing ref yields an empty collection.
func (s *Store) Read(_ context.Context) (domain.Collection, error) {
	ref, err := s.repo.Reference(s.RefName(), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return domain.Collection{}, nil
		}
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrStorageIO, s.RefName(), err)
	}

	data, err := s.readBlob(ref.Hash())
	if err != nil {
		return nil, err
	}

	issues, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.RefName(), err)
	}
	return issues, nil
}

// Write stores the collection as a new blob and moves the ref to it.
// Callers that read before writing must hold Lock; the ref update only guards
// against the ref moving while the blob is written.
func (s *Store) Write(_ context.Context, issues domain.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.codec.Encode(issues)
	if err != nil {
		return err
	}

	old, err := s.repo.Storer.Reference(s.RefName())
	if err != nil {
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("%w: get %s: %w", domain.ErrStorageIO, s.RefName(), err)
		}
		old = nil
	}

	hash, err := s.writeBlob(data)
	if err != nil {
		return err
	}

	ref := plumbing.NewHashReference(s.RefName(), hash)
	if err := s.repo.Storer.CheckAndSetReference(ref, old); err != nil {
		return fmt.Errorf("%w: set %s: %w", domain.ErrStorageIO, s.RefName(), err)
	}
	return nil
}

// writeBlob writes data to a blob and returns the hash.
func (s *Store) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: create blob writer: %w", domain.ErrStorageIO, err)
	}
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("%w: write blob: %w", domain.ErrStorageIO, err)
	}
	if err := writer.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: write blob: %w", domain.ErrStorageIO, err)
	}

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: store blob: %w", domain.ErrStorageIO, err)
	}
	return hash, nil
}

// readBlob reads the content of a blob. A ref to a missing or non-blob object is corruption.
func (s *Store) readBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := s.repo.BlobObject(hash)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) || errors.Is(err, plumbing.ErrInvalidType) {
			return nil, fmt.Errorf("%w: %s points at %s: %v", domain.ErrStorageCorruption, s.RefName(), hash, err)
		}
		return nil, fmt.Errorf("%w: get blob %s: %w", domain.ErrStorageIO, hash, err)
	}

	reader, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: open blob %s: %w", domain.ErrStorageIO, hash, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read blob %s: %w", domain.ErrStorageIO, hash, err)
	}
	return data, nil
}
