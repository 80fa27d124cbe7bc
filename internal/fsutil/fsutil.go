// Package fsutil implements the small set of filesystem primitives the
// core depends on: reading and writing whole files, listing a directory,
// and a restricted delete that refuses to operate outside the tree it
// was scoped to. Writes go through a temp-file-then-rename sequence so a
// process killed mid-write never leaves a half-written object or control
// record behind.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFile reads the entire contents of path.
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile atomically writes data to path: tempfile -> fsync -> rename,
// in the same directory as path so the rename is on one filesystem.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp to target: %w", err)
	}
	return nil
}

// ListDirectory returns the names of the non-directory entries directly
// inside dir (subdirectories are skipped, no recursion, no hidden-file
// filtering). A missing dir yields nil and no error.
func ListDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// RestrictedDelete removes the file at path, refusing if path escapes
// root (guards against a caller-supplied name like "../../etc/passwd"
// reaching a real delete). root and path are both made absolute before
// the containment check.
func RestrictedDelete(root, path string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return fmt.Errorf("refusing to delete %s: outside %s", path, root)
	}
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
