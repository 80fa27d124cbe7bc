package repo

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/cairn-vcs/cairn/internal/fsutil"
)

func initRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func writeWorking(t *testing.T, r *Repository, name, contents string) {
	t.Helper()
	if err := fsutil.WriteFile(filepath.Join(r.Root, name), []byte(contents)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func readWorking(t *testing.T, r *Repository, name string) string {
	t.Helper()
	data, err := fsutil.ReadFile(filepath.Join(r.Root, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

// run invokes a command method and fails the test on either an error or
// an unexpected user-facing message.
func run(t *testing.T, what string, f func() (string, error)) {
	t.Helper()
	out, err := f()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
	if out != "" {
		t.Fatalf("%s printed %q, want no output", what, out)
	}
}

func addAndCommit(t *testing.T, r *Repository, name, contents, message string) {
	t.Helper()
	writeWorking(t, r, name, contents)
	run(t, "add "+name, func() (string, error) { return r.Add(name) })
	run(t, "commit "+message, func() (string, error) { return r.Commit(message) })
}

func checkInvariants(t *testing.T, r *Repository) {
	t.Helper()
	if err := r.Refs.Validate(); err != nil {
		t.Errorf("ref invariants: %v", err)
	}
	for branch, tip := range r.Refs.Branches {
		if _, ok := r.Summaries[tip]; !ok {
			t.Errorf("branch %s tip %s missing from commit summaries", branch, tip)
		}
	}
	for name := range r.Index.StagedAdd {
		if r.Index.StagedRemove[name] {
			t.Errorf("%s staged for both addition and removal", name)
		}
	}
}

func TestInitThenEmptyCommit(t *testing.T) {
	r := initRepo(t)

	out, err := r.Commit("x")
	if err != nil {
		t.Fatal(err)
	}
	if out != "No changes added to the commit.\n" {
		t.Errorf("commit output = %q", out)
	}

	log, err := r.Log()
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(log, "===\n"); got != 1 {
		t.Errorf("log has %d blocks, want 1:\n%s", got, log)
	}
	if !strings.Contains(log, "initial commit") || !strings.Contains(log, "1970") {
		t.Errorf("log missing initial commit block:\n%s", log)
	}
	checkInvariants(t, r)
}

func TestEmptyCommitMessage(t *testing.T) {
	r := initRepo(t)
	writeWorking(t, r, "f", "x")
	run(t, "add f", func() (string, error) { return r.Add("f") })

	out, err := r.Commit("")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Please enter a commit message.\n" {
		t.Errorf("commit output = %q", out)
	}
}

func TestAddCommitRemoveCycle(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "wug.txt", "hello\n", "added wug")

	run(t, "rm wug.txt", func() (string, error) { return r.Remove("wug.txt") })
	status, err := r.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(status, "=== Removed Files ===\nwug.txt\n") {
		t.Errorf("status missing removed entry:\n%s", status)
	}
	if fsutil.Exists(filepath.Join(r.Root, "wug.txt")) {
		t.Error("rm did not delete the working file")
	}

	run(t, "commit removed wug", func() (string, error) { return r.Commit("removed wug") })
	log, err := r.Log()
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(log, "===\n"); got != 3 {
		t.Errorf("log has %d blocks, want 3:\n%s", got, log)
	}
	checkInvariants(t, r)
}

func TestCheckoutRestoresOldVersion(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "wug.txt", "hello\n", "added wug")
	firstCommit := r.Refs.Head

	addAndCommit(t, r, "wug.txt", "goodbye\n", "changed")

	run(t, "checkout -- wug.txt", func() (string, error) { return r.CheckoutFile("wug.txt") })
	if got := readWorking(t, r, "wug.txt"); got != "goodbye\n" {
		t.Errorf("head checkout = %q, want %q", got, "goodbye\n")
	}

	run(t, "checkout <id> -- wug.txt", func() (string, error) {
		return r.CheckoutCommitFile(firstCommit, "wug.txt")
	})
	if got := readWorking(t, r, "wug.txt"); got != "hello\n" {
		t.Errorf("old checkout = %q, want %q", got, "hello\n")
	}
}

func TestCheckoutFileNotInCommit(t *testing.T) {
	r := initRepo(t)
	out, err := r.CheckoutFile("nope.txt")
	if err != nil {
		t.Fatal(err)
	}
	if out != "File does not exist in that commit.\n" {
		t.Errorf("output = %q", out)
	}
}

func TestFastForwardMerge(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "a.txt", "A", "a")
	run(t, "branch side", func() (string, error) { return r.Branch("side") })
	run(t, "checkout side", func() (string, error) { return r.CheckoutBranch("side") })
	addAndCommit(t, r, "b.txt", "B", "b")
	run(t, "checkout master", func() (string, error) { return r.CheckoutBranch("master") })

	out, err := r.MergeBranch("side")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Current branch fast-forwarded.\n" {
		t.Errorf("merge output = %q", out)
	}
	if got := readWorking(t, r, "a.txt"); got != "A" {
		t.Errorf("a.txt = %q", got)
	}
	if got := readWorking(t, r, "b.txt"); got != "B" {
		t.Errorf("b.txt = %q", got)
	}
	if r.Refs.Branches["master"] != r.Refs.Branches["side"] {
		t.Error("master tip did not advance to side tip")
	}
	checkInvariants(t, r)
}

func TestConflictMerge(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "f", "1\n", "c0")
	run(t, "branch other", func() (string, error) { return r.Branch("other") })
	addAndCommit(t, r, "f", "2\n", "c1")
	run(t, "checkout other", func() (string, error) { return r.CheckoutBranch("other") })
	addAndCommit(t, r, "f", "3\n", "c2")
	run(t, "checkout master", func() (string, error) { return r.CheckoutBranch("master") })

	out, err := r.MergeBranch("other")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Encountered a merge conflict.\n" {
		t.Errorf("merge output = %q", out)
	}
	want := "<<<<<<< HEAD\n2\n=======\n3\n>>>>>>>\n"
	if got := readWorking(t, r, "f"); got != want {
		t.Errorf("conflict file = %q, want %q", got, want)
	}
	if r.Summaries[r.Refs.Head].Parent2 == "" {
		t.Error("merge commit has no second parent")
	}
	if !strings.Contains(r.Summaries[r.Refs.Head].Message, "Merged other into master.") {
		t.Errorf("merge message = %q", r.Summaries[r.Refs.Head].Message)
	}
	checkInvariants(t, r)
}

func TestUntrackedFileHazard(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "a.txt", "A", "a")
	run(t, "branch side", func() (string, error) { return r.Branch("side") })
	run(t, "checkout side", func() (string, error) { return r.CheckoutBranch("side") })
	writeWorking(t, r, "u.txt", "U")

	out, err := r.CheckoutBranch("master")
	if err != nil {
		t.Fatal(err)
	}
	if out != "There is an untracked file in the way; delete it, or add and commit it first.\n" {
		t.Errorf("output = %q", out)
	}
	if r.Refs.ActiveBranch != "side" {
		t.Errorf("active branch = %q, refs must be unchanged", r.Refs.ActiveBranch)
	}
	if got := readWorking(t, r, "u.txt"); got != "U" {
		t.Errorf("u.txt = %q, working tree must be unchanged", got)
	}
}

func TestMergePreconditions(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "f", "1\n", "c0")
	run(t, "branch side", func() (string, error) { return r.Branch("side") })

	out, err := r.MergeBranch("nope")
	if err != nil {
		t.Fatal(err)
	}
	if out != "A branch with that name does not exist.\n" {
		t.Errorf("missing branch: %q", out)
	}

	out, err = r.MergeBranch("master")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Cannot merge a branch with itself.\n" {
		t.Errorf("self merge: %q", out)
	}

	writeWorking(t, r, "g", "pending")
	run(t, "add g", func() (string, error) { return r.Add("g") })
	out, err = r.MergeBranch("side")
	if err != nil {
		t.Fatal(err)
	}
	if out != "You have uncommitted changes.\n" {
		t.Errorf("dirty index: %q", out)
	}
}

func TestMergeAncestor(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "f", "1\n", "c1")
	run(t, "branch side", func() (string, error) { return r.Branch("side") })
	addAndCommit(t, r, "g", "2\n", "c2")

	out, err := r.MergeBranch("side")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Given branch is an ancestor of the current branch.\n" {
		t.Errorf("merge output = %q", out)
	}
}

func TestMergeTakesOtherSideFile(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "a", "base\n", "c0")
	run(t, "branch side", func() (string, error) { return r.Branch("side") })
	addAndCommit(t, r, "m", "master-only\n", "c1")
	run(t, "checkout side", func() (string, error) { return r.CheckoutBranch("side") })
	addAndCommit(t, r, "s", "side-only\n", "c2")
	run(t, "checkout master", func() (string, error) { return r.CheckoutBranch("master") })

	out, err := r.MergeBranch("side")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("merge output = %q, want clean merge", out)
	}
	if got := readWorking(t, r, "s"); got != "side-only\n" {
		t.Errorf("s = %q, want the other branch's file checked out", got)
	}
	if got := readWorking(t, r, "m"); got != "master-only\n" {
		t.Errorf("m = %q, want the active branch's file kept", got)
	}
	if r.Summaries[r.Refs.Head].Parent2 == "" {
		t.Error("clean merge still must create a two-parent commit")
	}
	checkInvariants(t, r)
}

func TestStatusOutput(t *testing.T) {
	r := initRepo(t)
	run(t, "branch other", func() (string, error) { return r.Branch("other") })
	writeWorking(t, r, "f.txt", "x\n")
	run(t, "add f.txt", func() (string, error) { return r.Add("f.txt") })

	status, err := r.Status()
	if err != nil {
		t.Fatal(err)
	}
	want := "=== Branches ===\n" +
		"*master\n" +
		"other\n" +
		"\n" +
		"=== Staged Files ===\n" +
		"f.txt\n" +
		"\n" +
		"=== Removed Files ===\n" +
		"\n" +
		"=== Modifications Not Staged For Commit ===\n" +
		"\n" +
		"=== Untracked Files ===\n" +
		"\n"
	if status != want {
		t.Errorf("status = %q, want %q", status, want)
	}
}

func TestStatusModifiedAndDeleted(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "mod.txt", "v1\n", "c1")
	addAndCommit(t, r, "gone.txt", "here\n", "c2")

	writeWorking(t, r, "mod.txt", "v2\n")
	if err := fsutil.RestrictedDelete(r.Root, filepath.Join(r.Root, "gone.txt")); err != nil {
		t.Fatal(err)
	}

	status, err := r.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(status, "gone.txt (deleted)\n") {
		t.Errorf("status missing deleted entry:\n%s", status)
	}
	if !strings.Contains(status, "mod.txt (modified)\n") {
		t.Errorf("status missing modified entry:\n%s", status)
	}
	// The edited mod.txt content was never stored as a blob, so the
	// content-based rule also lists it as untracked.
	if !strings.Contains(status, "=== Untracked Files ===\nmod.txt\n") {
		t.Errorf("status missing untracked entry for modified content:\n%s", status)
	}
}

func TestFind(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "f", "1\n", "alpha release")
	target := r.Refs.Head
	addAndCommit(t, r, "f", "2\n", "beta")

	out, err := r.Find("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if out != target+"\n" {
		t.Errorf("find = %q, want %q", out, target+"\n")
	}

	out, err = r.Find("no such message")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Found no commit with that message.\n" {
		t.Errorf("find = %q", out)
	}
}

func TestGlobalLogListsEveryCommit(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "f", "1\n", "c1")
	run(t, "branch side", func() (string, error) { return r.Branch("side") })
	addAndCommit(t, r, "f", "2\n", "c2")

	out, err := r.GlobalLog()
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out, "===\n"); got != 3 {
		t.Errorf("global-log has %d blocks, want 3:\n%s", got, out)
	}
}

func TestBranchCommands(t *testing.T) {
	r := initRepo(t)
	run(t, "branch side", func() (string, error) { return r.Branch("side") })

	out, err := r.Branch("side")
	if err != nil {
		t.Fatal(err)
	}
	if out != "A branch with that name already exists.\n" {
		t.Errorf("duplicate branch: %q", out)
	}

	out, err = r.RemoveBranch("master")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Cannot remove the current branch.\n" {
		t.Errorf("rm current branch: %q", out)
	}

	run(t, "rm-branch side", func() (string, error) { return r.RemoveBranch("side") })
	out, err = r.RemoveBranch("side")
	if err != nil {
		t.Fatal(err)
	}
	if out != "A branch with that name does not exist.\n" {
		t.Errorf("rm missing branch: %q", out)
	}
}

func TestResetWithPrefix(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "f", "v1\n", "c1")
	first := r.Refs.Head
	addAndCommit(t, r, "f", "v2\n", "c2")

	run(t, "reset <prefix>", func() (string, error) { return r.Reset(first[:8]) })
	if r.Refs.Head != first {
		t.Errorf("head = %s, want %s", r.Refs.Head, first)
	}
	if r.Refs.Branches["master"] != first {
		t.Error("branch tip did not move with reset")
	}
	if got := readWorking(t, r, "f"); got != "v1\n" {
		t.Errorf("f = %q, want %q", got, "v1\n")
	}
	if !r.Index.IsClean() {
		t.Error("reset must clear the index")
	}
	checkInvariants(t, r)
}

func TestResetUnknownCommit(t *testing.T) {
	r := initRepo(t)
	out, err := r.Reset("deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if out != "No commit with that id exists.\n" {
		t.Errorf("reset output = %q", out)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	r := initRepo(t)
	addAndCommit(t, r, "f", "1\n", "c1")
	writeWorking(t, r, "g", "2\n")
	run(t, "add g", func() (string, error) { return r.Add("g") })
	if err := r.Save(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(r.Root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Refs.Head != r.Refs.Head {
		t.Errorf("head after reopen = %s, want %s", reopened.Refs.Head, r.Refs.Head)
	}
	if reopened.Index.StagedAdd["g"] != r.Index.StagedAdd["g"] {
		t.Error("staged addition lost across reopen")
	}
	if len(reopened.Summaries) != len(r.Summaries) {
		t.Errorf("summaries after reopen = %d, want %d", len(reopened.Summaries), len(r.Summaries))
	}
	checkInvariants(t, reopened)
}

func TestRemoteAddRemove(t *testing.T) {
	r := initRepo(t)
	run(t, "add-remote", func() (string, error) { return r.AddRemote("origin", "/tmp/elsewhere") })

	out, err := r.AddRemote("origin", "/tmp/other")
	if err != nil {
		t.Fatal(err)
	}
	if out != "A remote with that name already exists.\n" {
		t.Errorf("duplicate remote: %q", out)
	}

	run(t, "rm-remote", func() (string, error) { return r.RemoveRemote("origin") })
	out, err = r.RemoveRemote("origin")
	if err != nil {
		t.Fatal(err)
	}
	if out != "A remote with that name does not exist.\n" {
		t.Errorf("rm missing remote: %q", out)
	}
}

func TestPushMissingRemoteDir(t *testing.T) {
	r := initRepo(t)
	run(t, "add-remote", func() (string, error) {
		return r.AddRemote("origin", filepath.Join(t.TempDir(), "never-initialized"))
	})
	out, err := r.Push("origin", "master")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Remote directory not found.\n" {
		t.Errorf("push output = %q", out)
	}
}

func TestPushAdvancesRemote(t *testing.T) {
	local := initRepo(t)
	remote := initRepo(t)
	addAndCommit(t, local, "f", "1\n", "c1")
	run(t, "add-remote", func() (string, error) { return local.AddRemote("origin", remote.Root) })

	run(t, "push", func() (string, error) { return local.Push("origin", "master") })

	reopened, err := Open(remote.Root)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Refs.Head != local.Refs.Head {
		t.Errorf("remote head = %s, want %s", reopened.Refs.Head, local.Refs.Head)
	}
	if got := readWorking(t, reopened, "f"); got != "1\n" {
		t.Errorf("remote working file = %q, want %q", got, "1\n")
	}
	checkInvariants(t, reopened)
}

func TestPushRejectedWhenBehind(t *testing.T) {
	local := initRepo(t)
	remote := initRepo(t)
	addAndCommit(t, remote, "r", "remote work\n", "remote c1")
	if err := remote.Save(); err != nil {
		t.Fatal(err)
	}
	addAndCommit(t, local, "f", "1\n", "c1")
	run(t, "add-remote", func() (string, error) { return local.AddRemote("origin", remote.Root) })

	out, err := local.Push("origin", "master")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Please pull down remote changes before pushing.\n" {
		t.Errorf("push output = %q", out)
	}
}

func TestFetchCreatesTrackingBranch(t *testing.T) {
	local := initRepo(t)
	remote := initRepo(t)
	addAndCommit(t, remote, "f", "remote\n", "remote c1")
	if err := remote.Save(); err != nil {
		t.Fatal(err)
	}
	run(t, "add-remote", func() (string, error) { return local.AddRemote("origin", remote.Root) })

	run(t, "fetch", func() (string, error) { return local.Fetch("origin", "master") })
	tip, ok := local.Refs.Branches["origin/master"]
	if !ok {
		t.Fatal("fetch did not create origin/master")
	}
	if tip != remote.Refs.Head {
		t.Errorf("origin/master = %s, want %s", tip, remote.Refs.Head)
	}
	if _, known := local.Summaries[tip]; !known {
		t.Error("fetched tip missing from local summaries")
	}
}

func TestFetchMissingBranch(t *testing.T) {
	local := initRepo(t)
	remote := initRepo(t)
	run(t, "add-remote", func() (string, error) { return local.AddRemote("origin", remote.Root) })

	out, err := local.Fetch("origin", "topic")
	if err != nil {
		t.Fatal(err)
	}
	if out != "That remote does not have that branch.\n" {
		t.Errorf("fetch output = %q", out)
	}
}

func TestPullFastForwards(t *testing.T) {
	local := initRepo(t)
	remote := initRepo(t)
	addAndCommit(t, remote, "f", "remote\n", "remote c1")
	if err := remote.Save(); err != nil {
		t.Fatal(err)
	}
	run(t, "add-remote", func() (string, error) { return local.AddRemote("origin", remote.Root) })

	out, err := local.Pull("origin", "master")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Current branch fast-forwarded.\n" {
		t.Errorf("pull output = %q", out)
	}
	if local.Refs.Head != remote.Refs.Head {
		t.Errorf("local head = %s, want %s", local.Refs.Head, remote.Refs.Head)
	}
	if got := readWorking(t, local, "f"); got != "remote\n" {
		t.Errorf("f = %q, want %q", got, "remote\n")
	}
	checkInvariants(t, local)
}
