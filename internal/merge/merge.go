// Package merge implements the three-way merge between HEAD, another
// branch's tip, and their split-point, including the octopus
// split-point special case, conflict-marker emission, fast-forward and
// ancestor short-circuits, and the post-merge auto-commit.
//
// Rather than re-entering checkout logic from inside the merge loop,
// Plan computes a flat list of per-file decisions up front; Execute
// then applies them.
package merge

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/cairn-vcs/cairn/internal/fsutil"
	"github.com/cairn-vcs/cairn/internal/graph"
	"github.com/cairn-vcs/cairn/internal/index"
	"github.com/cairn-vcs/cairn/internal/objects"
	"github.com/cairn-vcs/cairn/internal/refs"
	"github.com/cairn-vcs/cairn/internal/worktree"
)

// Action is the per-file disposition the three-way comparison assigns.
type Action int

const (
	ActionKeep Action = iota
	ActionTakeOther
	ActionRemove
	ActionConflict
)

// Decision pairs a filename with the action the merge plans for it.
type Decision struct {
	Name   string
	Action Action
}

// Engine runs merges against a single repository's store and working tree.
type Engine struct {
	Store      *objects.Store
	Reconciler *worktree.Reconciler
}

// Fixed user-facing messages.
const (
	MsgUncommittedChanges = "You have uncommitted changes."
	MsgNoSuchBranch       = "A branch with that name does not exist."
	MsgSelfMerge          = "Cannot merge a branch with itself."
	MsgAncestor           = "Given branch is an ancestor of the current branch."
	MsgFastForwarded      = "Current branch fast-forwarded."
	MsgConflict           = "Encountered a merge conflict."
)

// Result reports what a Merge call did, for the caller (internal/repo) to
// relay to the user.
type Result struct {
	Message       string
	FastForwarded bool
	Conflicted    bool
	CommitDigest  objects.Digest

	// NewCommit carries the created merge commit's summary fields so the
	// caller can record it in the commit-summary map without a second
	// store round trip. Zero value when no new commit was created
	// (ancestor, self-merge, or fast-forward).
	NewCommit objects.Commit
}

// classifyOne applies the three-way comparison for a single split-point
// pass. fS, fA, fO are the split, active, and other blob digests as hex
// strings, "" meaning absent.
func classifyOne(fS, fA, fO string) Action {
	if fO != "" {
		if fA == fS {
			if fO != fS {
				return ActionTakeOther // only the other side changed it
			}
			return ActionKeep
		}
		if fO == fS {
			return ActionKeep // only the active side changed it
		}
		if fA == fO {
			return ActionKeep // both sides made the same change
		}
		return ActionConflict // divergent changes
	}
	if fS == "" {
		return ActionKeep // new on the active side, or absent everywhere
	}
	if fA == fS {
		return ActionRemove // other side deleted it
	}
	if fA == "" {
		return ActionKeep // deleted on both sides; nothing left to do
	}
	return ActionConflict // other deleted what the active side modified
}

// rank orders actions by the priority the octopus branch needs: a
// conflict from either pass always wins, "take other" beats "remove",
// and both beat "keep".
func rank(a Action) int {
	switch a {
	case ActionConflict:
		return 3
	case ActionTakeOther:
		return 2
	case ActionRemove:
		return 1
	default:
		return 0
	}
}

// classify combines the primary and, when present, secondary
// split-point passes.
func classify(fS, fA, fO string, hasSplit2 bool, fS2 string) Action {
	action := classifyOne(fS, fA, fO)
	if hasSplit2 {
		if second := classifyOne(fS2, fA, fO); rank(second) > rank(action) {
			action = second
		}
	}
	return action
}

// Plan computes the full set of per-file decisions for a merge. The
// candidate universe is the union of filenames tracked by head, other,
// split (and split2, when present), plus whatever is currently in the
// working directory.
func Plan(headTracked, otherTracked, splitTracked, split2Tracked map[string]string, hasSplit2 bool, workingFiles []string) []Decision {
	names := map[string]bool{}
	for n := range headTracked {
		names[n] = true
	}
	for n := range otherTracked {
		names[n] = true
	}
	for n := range splitTracked {
		names[n] = true
	}
	if hasSplit2 {
		for n := range split2Tracked {
			names[n] = true
		}
	}
	for _, n := range workingFiles {
		names[n] = true
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	decisions := make([]Decision, 0, len(sorted))
	for _, name := range sorted {
		action := classify(splitTracked[name], headTracked[name], otherTracked[name], hasSplit2, split2Tracked[name])
		decisions = append(decisions, Decision{Name: name, Action: action})
	}
	return decisions
}

// conflictMarker builds the conflict-marker file contents.
func conflictMarker(active, other []byte) []byte {
	var buf []byte
	buf = append(buf, "<<<<<<< HEAD\n"...)
	buf = append(buf, active...)
	buf = append(buf, "=======\n"...)
	buf = append(buf, other...)
	buf = append(buf, ">>>>>>>\n"...)
	return buf
}

// blobBytes returns the stored bytes for name's digest in tracked, or nil
// if name isn't tracked there.
func (e *Engine) blobBytes(tracked map[string]string, name string) ([]byte, error) {
	hex, ok := tracked[name]
	if !ok {
		return nil, nil
	}
	d, err := objects.ParseDigest(hex)
	if err != nil {
		return nil, err
	}
	b, err := e.Store.GetBlob(d)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

// Execute applies a merge plan: checking out "take other" files and
// staging them, deleting "remove" files and staging the removal, and
// writing conflict-marker files (staged for addition). Returns whether
// any conflict fired.
func (e *Engine) Execute(decisions []Decision, headTracked, otherTracked map[string]string, ix *index.Index) (conflicted bool, err error) {
	for _, d := range decisions {
		switch d.Action {
		case ActionKeep:
			// no change
		case ActionTakeOther:
			if _, err := e.Reconciler.RestoreFile(otherTracked, d.Name); err != nil {
				return conflicted, fmt.Errorf("checkout %s from other branch: %w", d.Name, err)
			}
			ix.StagedAdd[d.Name] = otherTracked[d.Name]
			delete(ix.StagedRemove, d.Name)
		case ActionRemove:
			if _, msg, err := ix.Remove(e.Reconciler.Root, d.Name, headTracked); err != nil {
				return conflicted, fmt.Errorf("remove %s: %w", d.Name, err)
			} else if msg != "" {
				return conflicted, fmt.Errorf("remove %s: unexpected %q", d.Name, msg)
			}
		case ActionConflict:
			activeBytes, err := e.blobBytes(headTracked, d.Name)
			if err != nil {
				return conflicted, err
			}
			otherBytes, err := e.blobBytes(otherTracked, d.Name)
			if err != nil {
				return conflicted, err
			}
			marker := conflictMarker(activeBytes, otherBytes)
			digest, err := e.writeWorkingFile(d.Name, marker)
			if err != nil {
				return conflicted, err
			}
			ix.StagedAdd[d.Name] = digest.String()
			delete(ix.StagedRemove, d.Name)
			conflicted = true
		}
	}
	return conflicted, nil
}

func (e *Engine) writeWorkingFile(name string, data []byte) (objects.Digest, error) {
	if err := fsutil.WriteFile(filepath.Join(e.Reconciler.Root, name), data); err != nil {
		return objects.Undef, err
	}
	return e.Store.PutBlob(name, data)
}

// Merge runs the full merge entry point: hazard check,
// uncommitted-changes check, branch validation, split-point search (with
// the ancestor and fast-forward short-circuits), the three-way file
// comparison, and the merge commit itself.
func (e *Engine) Merge(rf *refs.Refs, ix *index.Index, sums graph.Summaries, otherBranch string) (Result, error) {
	if err := e.Reconciler.Hazard(); err != nil {
		if err == worktree.ErrUntrackedFile {
			return Result{Message: "There is an untracked file in the way; delete it, or add and commit it first."}, nil
		}
		return Result{}, err
	}
	if !ix.IsClean() {
		return Result{Message: MsgUncommittedChanges}, nil
	}
	otherDigest, ok := rf.Branches[otherBranch]
	if !ok {
		return Result{Message: MsgNoSuchBranch}, nil
	}
	if otherBranch == rf.ActiveBranch {
		return Result{Message: MsgSelfMerge}, nil
	}

	head := rf.Head
	split, split2 := sums.SplitPoints(head, otherDigest)
	hasSplit2 := split2 != ""

	if split == otherDigest || (hasSplit2 && split2 == otherDigest) {
		return Result{Message: MsgAncestor}, nil
	}
	if split == head || (hasSplit2 && split2 == head) {
		headCommit, err := e.commitByHex(head)
		if err != nil {
			return Result{}, err
		}
		otherCommit, err := e.commitByHex(otherDigest)
		if err != nil {
			return Result{}, err
		}
		if err := e.Reconciler.Reconcile(headCommit.Tracked, otherCommit.Tracked); err != nil {
			return Result{}, err
		}
		ix.Clear()
		rf.SetHead(otherDigest)
		return Result{Message: MsgFastForwarded, FastForwarded: true}, nil
	}

	headCommit, err := e.commitByHex(head)
	if err != nil {
		return Result{}, err
	}
	otherCommit, err := e.commitByHex(otherDigest)
	if err != nil {
		return Result{}, err
	}
	splitTracked := map[string]string{}
	if split != "" {
		splitCommit, err := e.commitByHex(split)
		if err != nil {
			return Result{}, err
		}
		splitTracked = splitCommit.Tracked
	}
	split2Tracked := map[string]string{}
	if hasSplit2 {
		split2Commit, err := e.commitByHex(split2)
		if err != nil {
			return Result{}, err
		}
		split2Tracked = split2Commit.Tracked
	}

	workingFiles, err := e.Reconciler.WorkingFiles()
	if err != nil {
		return Result{}, err
	}

	decisions := Plan(headCommit.Tracked, otherCommit.Tracked, splitTracked, split2Tracked, hasSplit2, workingFiles)
	conflicted, err := e.Execute(decisions, headCommit.Tracked, otherCommit.Tracked, ix)
	if err != nil {
		return Result{}, err
	}

	tracked := map[string]string{}
	for name, d := range headCommit.Tracked {
		tracked[name] = d
	}
	for name := range ix.StagedRemove {
		delete(tracked, name)
	}
	for name, d := range ix.StagedAdd {
		tracked[name] = d
	}

	newCommit := objects.Commit{
		Parent1:   head,
		Parent2:   otherDigest,
		Timestamp: time.Now(),
		Message:   fmt.Sprintf("Merged %s into %s.", otherBranch, rf.ActiveBranch),
		Tracked:   tracked,
	}
	digest, err := e.Store.PutCommit(newCommit)
	if err != nil {
		return Result{}, err
	}
	ix.Clear()
	rf.SetHead(digest.String())

	msg := ""
	if conflicted {
		msg = MsgConflict
	}
	return Result{Message: msg, Conflicted: conflicted, CommitDigest: digest, NewCommit: newCommit}, nil
}

func (e *Engine) commitByHex(hex string) (objects.Commit, error) {
	d, err := objects.ParseDigest(hex)
	if err != nil {
		return objects.Commit{}, err
	}
	return e.Store.GetCommit(d)
}
