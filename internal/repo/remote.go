package repo

import (
	"path/filepath"

	"github.com/cairn-vcs/cairn/internal/objects"
)

// AddRemote implements `add-remote <name> <path>`. The path is
// normalized so "/" separators become the platform separator.
func (r *Repository) AddRemote(name, path string) (string, error) {
	if _, exists := r.Refs.Remotes[name]; exists {
		return "A remote with that name already exists.\n", nil
	}
	r.Refs.Remotes[name] = filepath.FromSlash(path)
	return "", nil
}

// RemoveRemote implements `rm-remote <name>`.
func (r *Repository) RemoveRemote(name string) (string, error) {
	if _, exists := r.Refs.Remotes[name]; !exists {
		return "A remote with that name does not exist.\n", nil
	}
	delete(r.Refs.Remotes, name)
	return "", nil
}

// copyCommit copies one commit and every blob it references from one
// store to another, returning the copied commit so the caller can record
// its summary in the destination's commit-summary map.
func copyCommit(from, to *objects.Store, digestHex string) (objects.Commit, error) {
	d, err := objects.ParseDigest(digestHex)
	if err != nil {
		return objects.Commit{}, err
	}
	c, err := from.GetCommit(d)
	if err != nil {
		return objects.Commit{}, err
	}
	if _, err := to.PutCommit(c); err != nil {
		return objects.Commit{}, err
	}
	for name, blobHex := range c.Tracked {
		bd, err := objects.ParseDigest(blobHex)
		if err != nil {
			return objects.Commit{}, err
		}
		if to.HasBlob(bd) {
			continue
		}
		b, err := from.GetBlob(bd)
		if err != nil {
			return objects.Commit{}, err
		}
		if _, err := to.PutBlob(name, b.Data); err != nil {
			return objects.Commit{}, err
		}
	}
	return c, nil
}

// firstParentChainUntil walks digest's first-parent chain starting at
// start, collecting every digest up to (but not including) stop, using
// summaries to find each commit's parent.
func firstParentChainUntil(summaries map[string]objects.Summary, start, stop string) []string {
	var out []string
	cur := start
	for cur != "" && cur != stop {
		out = append(out, cur)
		sum, ok := summaries[cur]
		if !ok {
			break
		}
		cur = sum.Parent1
	}
	reverse(out)
	return out
}

// firstParentChainMissing walks digest's first-parent chain starting at
// start, collecting every digest not already present in known.
func firstParentChainMissing(summaries map[string]objects.Summary, known map[string]objects.Summary, start string) []string {
	var out []string
	cur := start
	for cur != "" {
		if _, exists := known[cur]; exists {
			break
		}
		out = append(out, cur)
		sum, ok := summaries[cur]
		if !ok {
			break
		}
		cur = sum.Parent1
	}
	reverse(out)
	return out
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Push implements `push <remote> <branch>`.
func (r *Repository) Push(remoteName, remoteBranch string) (string, error) {
	path, ok := r.Refs.Remotes[remoteName]
	if !ok || !Exists(path) {
		return "Remote directory not found.\n", nil
	}
	remoteRepo, err := Open(path)
	if err != nil {
		return "", err
	}

	remoteTip, exists := remoteRepo.Refs.Branches[remoteBranch]
	if !exists {
		remoteTip = remoteRepo.Refs.Head
		remoteRepo.Refs.Branches[remoteBranch] = remoteTip
	}
	if _, known := r.Summaries[remoteTip]; !known {
		return "Please pull down remote changes before pushing.\n", nil
	}

	for _, digestHex := range firstParentChainUntil(r.Summaries, r.Refs.Head, remoteTip) {
		c, err := copyCommit(r.Store, remoteRepo.Store, digestHex)
		if err != nil {
			return "", err
		}
		remoteRepo.Summaries[digestHex] = c.Summary()
	}

	if remoteBranch == remoteRepo.Refs.ActiveBranch {
		msg, err := remoteRepo.Reset(r.Refs.Head)
		if err != nil {
			return "", err
		}
		if msg != "" {
			return msg, nil
		}
	} else {
		remoteRepo.Refs.Branches[remoteBranch] = r.Refs.Head
	}

	if err := remoteRepo.Save(); err != nil {
		return "", err
	}
	return "", nil
}

// Fetch implements `fetch <remote> <branch>`.
func (r *Repository) Fetch(remoteName, remoteBranch string) (string, error) {
	path, ok := r.Refs.Remotes[remoteName]
	if !ok || !Exists(path) {
		return "Remote directory not found.\n", nil
	}
	remoteRepo, err := Open(path)
	if err != nil {
		return "", err
	}
	remoteTip, exists := remoteRepo.Refs.Branches[remoteBranch]
	if !exists {
		return "That remote does not have that branch.\n", nil
	}

	for _, digestHex := range firstParentChainMissing(remoteRepo.Summaries, r.Summaries, remoteTip) {
		c, err := copyCommit(remoteRepo.Store, r.Store, digestHex)
		if err != nil {
			return "", err
		}
		r.Summaries[digestHex] = c.Summary()
	}

	r.Refs.Branches[remoteName+"/"+remoteBranch] = remoteTip
	return "", nil
}

// Pull implements `pull <remote> <branch>`: fetch, then merge
// the tracking branch into the active branch.
func (r *Repository) Pull(remoteName, remoteBranch string) (string, error) {
	msg, err := r.Fetch(remoteName, remoteBranch)
	if err != nil || msg != "" {
		return msg, err
	}
	return r.MergeBranch(remoteName + "/" + remoteBranch)
}
