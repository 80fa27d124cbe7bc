// Package index implements the staging area: files staged for addition,
// mapped to the blob digest that will be committed, and files staged
// for removal.
package index

import (
	"path/filepath"

	"github.com/cairn-vcs/cairn/internal/fsutil"
	"github.com/cairn-vcs/cairn/internal/objects"
)

// Index is the pending set of changes to apply on the next commit.
type Index struct {
	StagedAdd    map[string]string `json:"staged_add"`
	StagedRemove map[string]bool   `json:"staged_remove"`
}

// New returns an empty index.
func New() *Index {
	return &Index{
		StagedAdd:    map[string]string{},
		StagedRemove: map[string]bool{},
	}
}

// Clear empties both staging sets, as done on commit, merge, branch
// switch, and reset.
func (ix *Index) Clear() {
	ix.StagedAdd = map[string]string{}
	ix.StagedRemove = map[string]bool{}
}

// IsClean reports whether there are no pending additions or removals.
func (ix *Index) IsClean() bool {
	return len(ix.StagedAdd) == 0 && len(ix.StagedRemove) == 0
}

// Add stages name for the next commit: a pending removal is cancelled,
// a file identical to HEAD's version is un-staged, anything else has its
// blob stored and staged. headTracked is HEAD's current
// filename-to-digest map. Returns ok=false with a fixed message when the
// working file does not exist.
func (ix *Index) Add(store *objects.Store, root, name string, headTracked map[string]string) (ok bool, message string, err error) {
	path := filepath.Join(root, name)
	if !fsutil.Exists(path) {
		return false, "File does not exist.", nil
	}

	if ix.StagedRemove[name] {
		delete(ix.StagedRemove, name)
		return true, "", nil
	}

	data, err := fsutil.ReadFile(path)
	if err != nil {
		return false, "", err
	}
	digest, err := (objects.Blob{Name: name, Data: data}).Digest()
	if err != nil {
		return false, "", err
	}

	if headTracked[name] == digest.String() {
		delete(ix.StagedAdd, name)
		return true, "", nil
	}

	if _, err := store.PutBlob(name, data); err != nil {
		return false, "", err
	}
	ix.StagedAdd[name] = digest.String()
	return true, "", nil
}

// Remove un-stages a staged file, or stages a HEAD-tracked file for
// removal and deletes it from the working directory.
func (ix *Index) Remove(root, name string, headTracked map[string]string) (ok bool, message string, err error) {
	if _, staged := ix.StagedAdd[name]; staged {
		delete(ix.StagedAdd, name)
		return true, "", nil
	}
	if _, tracked := headTracked[name]; tracked {
		ix.StagedRemove[name] = true
		path := filepath.Join(root, name)
		if fsutil.Exists(path) {
			if err := fsutil.RestrictedDelete(root, path); err != nil {
				return false, "", err
			}
		}
		return true, "", nil
	}
	return false, "No reason to remove the file.", nil
}
