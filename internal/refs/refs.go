// Package refs implements the branch-name-to-commit-digest map, the
// active branch, HEAD, and the remote-name-to-path map. Refs live inside
// the single control record rather than one file per ref, so this
// package is plain in-memory bookkeeping.
package refs

import "fmt"

// Refs is the mutable ref state of a repository.
type Refs struct {
	Branches     map[string]string `json:"branches"`
	ActiveBranch string            `json:"active_branch"`
	Head         string            `json:"head"`
	Remotes      map[string]string `json:"remotes"`
}

// New returns Refs for a freshly initialized repository: a single
// branch pointing at initialCommit.
func New(branch, initialCommit string) *Refs {
	return &Refs{
		Branches:     map[string]string{branch: initialCommit},
		ActiveBranch: branch,
		Head:         initialCommit,
		Remotes:      map[string]string{},
	}
}

// SetHead advances both HEAD and the active branch's tip to digest,
// preserving HEAD == branches[active].
func (r *Refs) SetHead(digest string) {
	r.Head = digest
	r.Branches[r.ActiveBranch] = digest
}

// Validate checks the ref invariants that don't require consulting the
// object store.
func (r *Refs) Validate() error {
	if _, ok := r.Branches[r.ActiveBranch]; !ok {
		return fmt.Errorf("active branch %q has no entry in branches", r.ActiveBranch)
	}
	if r.Branches[r.ActiveBranch] != r.Head {
		return fmt.Errorf("HEAD %q does not match active branch tip %q", r.Head, r.Branches[r.ActiveBranch])
	}
	return nil
}
