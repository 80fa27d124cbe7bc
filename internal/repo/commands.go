package repo

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cairn-vcs/cairn/internal/fsutil"
	"github.com/cairn-vcs/cairn/internal/objects"
	"github.com/cairn-vcs/cairn/internal/worktree"
)

// Add implements `add <file>`.
func (r *Repository) Add(name string) (string, error) {
	head, err := r.headCommit()
	if err != nil {
		return "", err
	}
	_, msg, err := r.Index.Add(r.Store, r.Root, name, head.Tracked)
	if err != nil {
		return "", err
	}
	return line(msg), nil
}

// Remove implements `rm <file>`.
func (r *Repository) Remove(name string) (string, error) {
	head, err := r.headCommit()
	if err != nil {
		return "", err
	}
	_, msg, err := r.Index.Remove(r.Root, name, head.Tracked)
	if err != nil {
		return "", err
	}
	return line(msg), nil
}

// Commit implements `commit <message>`.
func (r *Repository) Commit(message string) (string, error) {
	if message == "" {
		return "Please enter a commit message.\n", nil
	}
	if r.Index.IsClean() {
		return "No changes added to the commit.\n", nil
	}

	head, err := r.headCommit()
	if err != nil {
		return "", err
	}
	tracked := map[string]string{}
	for name, digest := range head.Tracked {
		tracked[name] = digest
	}
	for name := range r.Index.StagedRemove {
		delete(tracked, name)
	}
	for name, digest := range r.Index.StagedAdd {
		tracked[name] = digest
	}

	c := objects.Commit{
		Parent1:   r.Refs.Head,
		Timestamp: now(),
		Message:   message,
		Tracked:   tracked,
	}
	digest, err := r.recordCommit(c)
	if err != nil {
		return "", err
	}
	r.Index.Clear()
	r.Refs.SetHead(digest.String())
	return "", nil
}

func commitBlock(digest, message, timestamp string) string {
	var b strings.Builder
	b.WriteString("===\n")
	b.WriteString("commit " + digest + "\n")
	b.WriteString("Date: " + timestamp + "\n")
	b.WriteString(message + "\n")
	b.WriteString("\n")
	return b.String()
}

// Log implements `log`: first-parent walk from HEAD.
func (r *Repository) Log() (string, error) {
	var b strings.Builder
	for _, digest := range r.Summaries.FirstParentWalk(r.Refs.Head) {
		sum := r.Summaries[digest]
		b.WriteString(commitBlock(digest, sum.Message, objects.FormatTimestamp(sum.Timestamp)))
	}
	return b.String(), nil
}

// GlobalLog implements `global-log`, sorted by timestamp descending
// with digest as a tiebreaker so the output is deterministic.
func (r *Repository) GlobalLog() (string, error) {
	digests := r.sortedSummaryDigests()
	var b strings.Builder
	for _, digest := range digests {
		sum := r.Summaries[digest]
		b.WriteString(commitBlock(digest, sum.Message, objects.FormatTimestamp(sum.Timestamp)))
	}
	return b.String(), nil
}

// Find implements `find <message>`.
func (r *Repository) Find(message string) (string, error) {
	var matches []string
	for _, digest := range r.sortedSummaryDigests() {
		if strings.Contains(r.Summaries[digest].Message, message) {
			matches = append(matches, digest)
		}
	}
	if len(matches) == 0 {
		return "Found no commit with that message.\n", nil
	}
	var b strings.Builder
	for _, digest := range matches {
		b.WriteString(digest + "\n")
	}
	return b.String(), nil
}

func (r *Repository) sortedSummaryDigests() []string {
	digests := make([]string, 0, len(r.Summaries))
	for digest := range r.Summaries {
		digests = append(digests, digest)
	}
	sort.Slice(digests, func(i, j int) bool {
		ti, tj := r.Summaries[digests[i]].Timestamp, r.Summaries[digests[j]].Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return digests[i] < digests[j]
	})
	return digests
}

// Status implements `status`.
func (r *Repository) Status() (string, error) {
	var b strings.Builder

	b.WriteString("=== Branches ===\n")
	branches := make([]string, 0, len(r.Refs.Branches))
	for name := range r.Refs.Branches {
		branches = append(branches, name)
	}
	sort.Strings(branches)
	for _, name := range branches {
		if name == r.Refs.ActiveBranch {
			b.WriteString("*" + name + "\n")
		} else {
			b.WriteString(name + "\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("=== Staged Files ===\n")
	staged := sortedKeys(r.Index.StagedAdd)
	for _, name := range staged {
		b.WriteString(name + "\n")
	}
	b.WriteString("\n")

	b.WriteString("=== Removed Files ===\n")
	removed := make([]string, 0, len(r.Index.StagedRemove))
	for name := range r.Index.StagedRemove {
		removed = append(removed, name)
	}
	sort.Strings(removed)
	for _, name := range removed {
		b.WriteString(name + "\n")
	}
	b.WriteString("\n")

	modified, err := r.modificationsNotStaged()
	if err != nil {
		return "", err
	}
	b.WriteString("=== Modifications Not Staged For Commit ===\n")
	for _, entry := range modified {
		b.WriteString(entry + "\n")
	}
	b.WriteString("\n")

	untracked, err := r.untrackedFiles()
	if err != nil {
		return "", err
	}
	b.WriteString("=== Untracked Files ===\n")
	for _, name := range untracked {
		b.WriteString(name + "\n")
	}
	b.WriteString("\n")

	return b.String(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// modificationsNotStaged finds files HEAD tracks or the index stages
// whose working-directory state has diverged, sorted case-insensitively.
func (r *Repository) modificationsNotStaged() ([]string, error) {
	head, err := r.headCommit()
	if err != nil {
		return nil, err
	}
	expected := map[string]string{}
	for name, digest := range head.Tracked {
		expected[name] = digest
	}
	for name := range r.Index.StagedRemove {
		delete(expected, name)
	}
	for name, digest := range r.Index.StagedAdd {
		expected[name] = digest
	}

	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	var entries []string
	for _, name := range names {
		path := filepath.Join(r.Root, name)
		if !fsutil.Exists(path) {
			entries = append(entries, name+" (deleted)")
			continue
		}
		data, err := fsutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		digest, err := (objects.Blob{Name: name, Data: data}).Digest()
		if err != nil {
			return nil, err
		}
		if digest.String() != expected[name] {
			entries = append(entries, name+" (modified)")
		}
	}
	return entries, nil
}

// untrackedFiles lists working-directory files whose content digest is
// not yet a stored blob.
func (r *Repository) untrackedFiles() ([]string, error) {
	names, err := r.Reconciler.WorkingFiles()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	var untracked []string
	for _, name := range names {
		data, err := fsutil.ReadFile(filepath.Join(r.Root, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		digest, err := (objects.Blob{Name: name, Data: data}).Digest()
		if err != nil {
			return nil, err
		}
		if !r.Store.HasBlob(digest) {
			untracked = append(untracked, name)
		}
	}
	return untracked, nil
}

// CheckoutFile implements `checkout -- <file>`.
func (r *Repository) CheckoutFile(name string) (string, error) {
	head, err := r.headCommit()
	if err != nil {
		return "", err
	}
	ok, err := r.Reconciler.RestoreFile(head.Tracked, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "File does not exist in that commit.\n", nil
	}
	return "", nil
}

// CheckoutCommitFile implements `checkout <commitId> -- <file>`.
func (r *Repository) CheckoutCommitFile(commitRef, name string) (string, error) {
	_, commit, found, ambiguous, err := r.resolveCommit(commitRef)
	if err != nil {
		return "", err
	}
	if ambiguous {
		return fmt.Sprintf("Ambiguous commit id %q.\n", commitRef), nil
	}
	if !found {
		return "No commit with that id exists.\n", nil
	}
	ok, err := r.Reconciler.RestoreFile(commit.Tracked, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "File does not exist in that commit.\n", nil
	}
	return "", nil
}

// CheckoutBranch implements `checkout <branch>`.
func (r *Repository) CheckoutBranch(branch string) (string, error) {
	targetHead, ok := r.Refs.Branches[branch]
	if !ok {
		return "No such branch exists.\n", nil
	}
	if branch == r.Refs.ActiveBranch {
		return "No need to checkout the current branch.\n", nil
	}
	if err := r.Reconciler.Hazard(); err != nil {
		if err == worktree.ErrUntrackedFile {
			return "There is an untracked file in the way; delete it, or add and commit it first.\n", nil
		}
		return "", err
	}

	head, err := r.headCommit()
	if err != nil {
		return "", err
	}
	targetDigest, err := objects.ParseDigest(targetHead)
	if err != nil {
		return "", err
	}
	target, err := r.Store.GetCommit(targetDigest)
	if err != nil {
		return "", err
	}
	if err := r.Reconciler.Reconcile(head.Tracked, target.Tracked); err != nil {
		return "", err
	}
	r.Index.Clear()
	r.Refs.ActiveBranch = branch
	r.Refs.Head = targetHead
	return "", nil
}

// Branch implements `branch <name>`.
func (r *Repository) Branch(name string) (string, error) {
	if _, exists := r.Refs.Branches[name]; exists {
		return "A branch with that name already exists.\n", nil
	}
	r.Refs.Branches[name] = r.Refs.Head
	return "", nil
}

// RemoveBranch implements `rm-branch <name>`.
func (r *Repository) RemoveBranch(name string) (string, error) {
	if _, exists := r.Refs.Branches[name]; !exists {
		return "A branch with that name does not exist.\n", nil
	}
	if name == r.Refs.ActiveBranch {
		return "Cannot remove the current branch.\n", nil
	}
	delete(r.Refs.Branches, name)
	return "", nil
}

// Reset implements `reset <commitId>`.
func (r *Repository) Reset(commitRef string) (string, error) {
	digest, target, found, ambiguous, err := r.resolveCommit(commitRef)
	if err != nil {
		return "", err
	}
	if ambiguous {
		return fmt.Sprintf("Ambiguous commit id %q.\n", commitRef), nil
	}
	if !found {
		return "No commit with that id exists.\n", nil
	}
	if err := r.Reconciler.Hazard(); err != nil {
		if err == worktree.ErrUntrackedFile {
			return "There is an untracked file in the way; delete it, or add and commit it first.\n", nil
		}
		return "", err
	}
	head, err := r.headCommit()
	if err != nil {
		return "", err
	}
	if err := r.Reconciler.Reconcile(head.Tracked, target.Tracked); err != nil {
		return "", err
	}
	r.Index.Clear()
	r.Refs.Head = digest.String()
	r.Refs.Branches[r.Refs.ActiveBranch] = digest.String()
	return "", nil
}

// resolveCommit resolves a commit reference that may be a full
// 40-character digest or an unambiguous prefix. Ambiguous prefixes are
// reported rather than guessed at.
func (r *Repository) resolveCommit(ref string) (digest objects.Digest, commit objects.Commit, found, ambiguous bool, err error) {
	if len(ref) == 40 {
		d, parseErr := objects.ParseDigest(ref)
		if parseErr != nil || !r.Store.HasCommit(d) {
			return objects.Undef, objects.Commit{}, false, false, nil
		}
		c, getErr := r.Store.GetCommit(d)
		if getErr != nil {
			return objects.Undef, objects.Commit{}, false, false, getErr
		}
		return d, c, true, false, nil
	}
	d, resolveErr := r.Store.ResolvePrefix(ref)
	if resolveErr != nil {
		if errors.Is(resolveErr, objects.ErrAmbiguousPrefix) {
			return objects.Undef, objects.Commit{}, false, true, nil
		}
		return objects.Undef, objects.Commit{}, false, false, resolveErr
	}
	if d.IsUndef() {
		return objects.Undef, objects.Commit{}, false, false, nil
	}
	c, getErr := r.Store.GetCommit(d)
	if getErr != nil {
		return objects.Undef, objects.Commit{}, false, false, getErr
	}
	return d, c, true, false, nil
}

// MergeBranch implements `merge <branch>`.
func (r *Repository) MergeBranch(branch string) (string, error) {
	result, err := r.Merge.Merge(r.Refs, r.Index, r.Summaries, branch)
	if err != nil {
		return "", err
	}
	if !result.CommitDigest.IsUndef() {
		r.Summaries[result.CommitDigest.String()] = result.NewCommit.Summary()
	}
	return line(result.Message), nil
}

func line(s string) string {
	if s == "" {
		return ""
	}
	return s + "\n"
}
