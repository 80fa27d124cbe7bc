package objects

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cairn-vcs/cairn/internal/fsutil"
)

// ErrNotFound is returned when a digest is absent from the store. It
// signals repository corruption rather than a user mistake.
var ErrNotFound = errors.New("object not found")

// Store persists blobs and commits under digest-named files in two
// sibling directories.
type Store struct {
	blobsDir   string
	commitsDir string
}

// Open creates (if absent) and returns a Store rooted at dir, which holds
// the "blobs" and "commits" subdirectories.
func Open(dir string) (*Store, error) {
	s := &Store{
		blobsDir:   filepath.Join(dir, "blobs"),
		commitsDir: filepath.Join(dir, "commits"),
	}
	for _, d := range []string{s.blobsDir, s.commitsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create object directory %s: %w", d, err)
		}
	}
	return s, nil
}

// PutBlob serializes and stores a blob, returning its digest. A no-op if
// the digest is already present.
func (s *Store) PutBlob(name string, data []byte) (Digest, error) {
	b := Blob{Name: name, Data: data}
	raw, err := b.serialize()
	if err != nil {
		return Undef, fmt.Errorf("serialize blob %s: %w", name, err)
	}
	d, err := compute(raw)
	if err != nil {
		return Undef, err
	}
	path := filepath.Join(s.blobsDir, d.String())
	if _, err := os.Stat(path); err == nil {
		return d, nil
	}
	if err := fsutil.WriteFile(path, raw); err != nil {
		return Undef, fmt.Errorf("write blob %s: %w", d, err)
	}
	return d, nil
}

// GetBlob reads and deserializes a blob by digest.
func (s *Store) GetBlob(d Digest) (Blob, error) {
	path := filepath.Join(s.blobsDir, d.String())
	raw, err := fsutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Blob{}, fmt.Errorf("%w: blob %s", ErrNotFound, d)
		}
		return Blob{}, fmt.Errorf("read blob %s: %w", d, err)
	}
	return deserializeBlob(raw)
}

// HasBlob reports whether a blob digest is present in the store.
func (s *Store) HasBlob(d Digest) bool {
	_, err := os.Stat(filepath.Join(s.blobsDir, d.String()))
	return err == nil
}

// PutCommit serializes and stores a commit, returning its digest. A
// no-op if the digest is already present; two commits with identical
// parents, timestamp, message, and tree therefore collide and share one
// file.
func (s *Store) PutCommit(c Commit) (Digest, error) {
	raw, err := c.serialize()
	if err != nil {
		return Undef, fmt.Errorf("serialize commit: %w", err)
	}
	d, err := compute(raw)
	if err != nil {
		return Undef, err
	}
	path := filepath.Join(s.commitsDir, d.String())
	if _, err := os.Stat(path); err == nil {
		return d, nil
	}
	if err := fsutil.WriteFile(path, raw); err != nil {
		return Undef, fmt.Errorf("write commit %s: %w", d, err)
	}
	return d, nil
}

// GetCommit reads and deserializes a commit by digest.
func (s *Store) GetCommit(d Digest) (Commit, error) {
	path := filepath.Join(s.commitsDir, d.String())
	raw, err := fsutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Commit{}, fmt.Errorf("%w: commit %s", ErrNotFound, d)
		}
		return Commit{}, fmt.Errorf("read commit %s: %w", d, err)
	}
	return deserializeCommit(raw)
}

// HasCommit reports whether a commit digest is present in the store.
func (s *Store) HasCommit(d Digest) bool {
	_, err := os.Stat(filepath.Join(s.commitsDir, d.String()))
	return err == nil
}

// ErrAmbiguousPrefix is returned by ResolvePrefix when more than one
// commit digest shares the given prefix. Ambiguity is rejected rather
// than resolved arbitrarily.
var ErrAmbiguousPrefix = errors.New("ambiguous commit digest prefix")

// ResolvePrefix scans the commit directory for the unique digest starting
// with prefix. Returns Undef, nil if none match.
func (s *Store) ResolvePrefix(prefix string) (Digest, error) {
	names, err := fsutil.ListDirectory(s.commitsDir)
	if err != nil {
		return Undef, fmt.Errorf("list commits: %w", err)
	}
	var match string
	for _, name := range names {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			if match != "" && match != name {
				return Undef, fmt.Errorf("%w: %q", ErrAmbiguousPrefix, prefix)
			}
			match = name
		}
	}
	if match == "" {
		return Undef, nil
	}
	return ParseDigest(match)
}
