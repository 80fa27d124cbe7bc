// Package repo loads and saves the single control record (refs, index,
// commit summaries, remotes) and wires the object store, index, refs,
// commit graph, working-tree reconciler, and merge engine together into
// the user-visible commands.
package repo

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cairn-vcs/cairn/internal/fsutil"
	"github.com/cairn-vcs/cairn/internal/graph"
	"github.com/cairn-vcs/cairn/internal/index"
	"github.com/cairn-vcs/cairn/internal/merge"
	"github.com/cairn-vcs/cairn/internal/objects"
	"github.com/cairn-vcs/cairn/internal/refs"
	"github.com/cairn-vcs/cairn/internal/worktree"
)

// ControlDirName is the hidden directory every repository lives under.
const ControlDirName = worktree.ControlDirName

// recordFileName is the single file holding the serialized control
// record: refs, index, remotes, and commit summaries.
const recordFileName = "repository"

// initialBranch is the name of the sole branch a fresh repository
// starts with.
const initialBranch = "master"

// initialCommitMessage is the message stamped on the commit every
// repository starts from.
const initialCommitMessage = "initial commit"

var errNotInitialized = fmt.Errorf("not in an initialized %s directory", ControlDirName)

// controlRecord is the on-disk shape of the "repository" file.
type controlRecord struct {
	Refs      *refs.Refs                `json:"refs"`
	Index     *index.Index              `json:"index"`
	Summaries map[string]objects.Summary `json:"summaries"`
}

// Repository is the in-memory, mutated-then-persisted view of a single
// repository rooted at Root. Commands load it, mutate it, and write it
// back; there is no other mutable persistent state.
type Repository struct {
	Root string

	Store      *objects.Store
	Refs       *refs.Refs
	Index      *index.Index
	Summaries  graph.Summaries
	Reconciler *worktree.Reconciler
	Merge      *merge.Engine
}

func controlDir(root string) string {
	return filepath.Join(root, ControlDirName)
}

func recordPath(root string) string {
	return filepath.Join(controlDir(root), recordFileName)
}

// Exists reports whether root already holds an initialized repository.
func Exists(root string) bool {
	return fsutil.Exists(recordPath(root))
}

// Init creates a new repository at root: an object store, a single
// "master" branch pointing at a parentless, fileless initial commit
// dated the Unix epoch, and persists the control record.
func Init(root string) (*Repository, error) {
	if Exists(root) {
		return nil, fmt.Errorf("already initialized")
	}
	store, err := objects.Open(controlDir(root))
	if err != nil {
		return nil, err
	}
	initial := objects.Commit{
		Timestamp: objects.Epoch,
		Message:   initialCommitMessage,
		Tracked:   map[string]string{},
	}
	digest, err := store.PutCommit(initial)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		Root:      root,
		Store:     store,
		Refs:      refs.New(initialBranch, digest.String()),
		Index:     index.New(),
		Summaries: graph.Summaries{digest.String(): initial.Summary()},
	}
	r.wire()
	return r, r.Save()
}

// Open loads an existing repository's control record from root.
func Open(root string) (*Repository, error) {
	if !Exists(root) {
		return nil, errNotInitialized
	}
	store, err := objects.Open(controlDir(root))
	if err != nil {
		return nil, err
	}
	raw, err := fsutil.ReadFile(recordPath(root))
	if err != nil {
		return nil, fmt.Errorf("read control record: %w", err)
	}
	var rec controlRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("parse control record: %w", err)
	}
	if rec.Summaries == nil {
		rec.Summaries = map[string]objects.Summary{}
	}

	r := &Repository{
		Root:      root,
		Store:     store,
		Refs:      rec.Refs,
		Index:     rec.Index,
		Summaries: rec.Summaries,
	}
	r.wire()
	return r, r.Refs.Validate()
}

func (r *Repository) wire() {
	r.Reconciler = &worktree.Reconciler{Store: r.Store, Root: r.Root}
	r.Merge = &merge.Engine{Store: r.Store, Reconciler: r.Reconciler}
}

// Save persists the control record. Callers run it as the final step of
// a command, after all object-store and working-tree side effects.
func (r *Repository) Save() error {
	rec := controlRecord{Refs: r.Refs, Index: r.Index, Summaries: r.Summaries}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("serialize control record: %w", err)
	}
	return fsutil.WriteFile(recordPath(r.Root), raw)
}

// headCommit loads the full Commit for the current HEAD.
func (r *Repository) headCommit() (objects.Commit, error) {
	d, err := objects.ParseDigest(r.Refs.Head)
	if err != nil {
		return objects.Commit{}, err
	}
	return r.Store.GetCommit(d)
}

// recordCommit stores c, records its summary, and returns its digest.
func (r *Repository) recordCommit(c objects.Commit) (objects.Digest, error) {
	d, err := r.Store.PutCommit(c)
	if err != nil {
		return objects.Undef, err
	}
	r.Summaries[d.String()] = c.Summary()
	return d, nil
}

// now supplies the timestamp for commits made by `commit`. Init stamps
// the epoch, and the merge engine stamps its merge commits itself.
func now() time.Time {
	return time.Now()
}
