// Package worktree materializes a commit into the working directory,
// runs the untracked-file hazard check, and restores one file at a time
// for `checkout -- file`.
package worktree

import (
	"fmt"
	"path/filepath"

	"github.com/cairn-vcs/cairn/internal/fsutil"
	"github.com/cairn-vcs/cairn/internal/objects"
)

// ErrUntrackedFile is returned by Hazard when a working-directory file's
// content is not stored as a blob, so a reconciliation could clobber it.
var ErrUntrackedFile = fmt.Errorf("there is an untracked file in the way; delete it, or add and commit it first")

// Reconciler materializes commits into a working directory rooted at Root.
type Reconciler struct {
	Store *objects.Store
	Root  string
}

// ControlDirName is excluded from every directory listing of the
// working tree.
const ControlDirName = ".cairn"

// WorkingFiles lists the top-level, non-control files present in the
// working directory.
func (r *Reconciler) WorkingFiles() ([]string, error) {
	names, err := fsutil.ListDirectory(r.Root)
	if err != nil {
		return nil, err
	}
	out := names[:0:0]
	for _, n := range names {
		if n == ControlDirName {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Hazard runs the untracked-file check: any working-directory file
// whose content digest is not already stored as a blob anywhere in the
// repository aborts the operation. The rule is content-known, not
// tracked-by-target; see DESIGN.md.
func (r *Reconciler) Hazard() error {
	names, err := r.WorkingFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		data, err := fsutil.ReadFile(filepath.Join(r.Root, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		digest, err := (objects.Blob{Name: name, Data: data}).Digest()
		if err != nil {
			return err
		}
		if !r.Store.HasBlob(digest) {
			return ErrUntrackedFile
		}
	}
	return nil
}

// RestoreFile overwrites (or creates) name in the working directory with
// the bytes tracked for it, or reports that the commit doesn't track it.
func (r *Reconciler) RestoreFile(tracked map[string]string, name string) (ok bool, err error) {
	digestHex, present := tracked[name]
	if !present {
		return false, nil
	}
	digest, err := objects.ParseDigest(digestHex)
	if err != nil {
		return false, err
	}
	blob, err := r.Store.GetBlob(digest)
	if err != nil {
		return false, err
	}
	if err := fsutil.WriteFile(filepath.Join(r.Root, name), blob.Data); err != nil {
		return false, err
	}
	return true, nil
}

// Reconcile brings the working tree from "from" tracked state to "to"
// tracked state: deletes files tracked by "from" but not "to", then
// writes every file tracked by "to". Callers must run Hazard first;
// Reconcile itself performs no safety check so it can be reused by
// checkout-branch, reset, and the merge engine's fast-forward.
func (r *Reconciler) Reconcile(from, to map[string]string) error {
	for name := range from {
		if _, stillTracked := to[name]; !stillTracked {
			path := filepath.Join(r.Root, name)
			if fsutil.Exists(path) {
				if err := fsutil.RestrictedDelete(r.Root, path); err != nil {
					return err
				}
			}
		}
	}
	for name, digestHex := range to {
		digest, err := objects.ParseDigest(digestHex)
		if err != nil {
			return fmt.Errorf("parse digest for %s: %w", name, err)
		}
		blob, err := r.Store.GetBlob(digest)
		if err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
		if err := fsutil.WriteFile(filepath.Join(r.Root, name), blob.Data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
