// Package graph implements traversal of the commit DAG using
// only commit summaries (parent digests, timestamp, message) — never the
// full tracked-file map — for log, ancestry, and split-point search.
package graph

import "github.com/cairn-vcs/cairn/internal/objects"

// Summaries maps a commit digest to its reduced view. Callers (the
// repository) own the map; this package only walks it.
type Summaries map[string]objects.Summary

// FirstParentWalk follows parent1 from start until it runs out, used by
// log.
func (s Summaries) FirstParentWalk(start string) []string {
	var out []string
	seen := map[string]bool{}
	cur := start
	for cur != "" && !seen[cur] {
		seen[cur] = true
		sum, ok := s[cur]
		if !ok {
			break
		}
		out = append(out, cur)
		cur = sum.Parent1
	}
	return out
}

// ReachableViaParent1 collects every digest reachable from start by
// following parent1 only, guarding against cycles in malformed input.
func (s Summaries) ReachableViaParent1(start string) map[string]bool {
	return s.reachable(start, func(sum objects.Summary) string { return sum.Parent1 })
}

// ReachableViaParent2 collects every digest reachable from start by
// following parent2 only, used solely for the octopus split-point
// heuristic.
func (s Summaries) ReachableViaParent2(start string) map[string]bool {
	return s.reachable(start, func(sum objects.Summary) string { return sum.Parent2 })
}

func (s Summaries) reachable(start string, next func(objects.Summary) string) map[string]bool {
	seen := map[string]bool{}
	cur := start
	for cur != "" && !seen[cur] {
		seen[cur] = true
		sum, ok := s[cur]
		if !ok {
			break
		}
		cur = next(sum)
	}
	return seen
}

// SplitPoint walks b's first-parent chain, returning the first digest
// that appears in reachable. Returns "" if none does.
func SplitPoint(reachable map[string]bool, s Summaries, b string) string {
	seen := map[string]bool{}
	cur := b
	for cur != "" && !seen[cur] {
		seen[cur] = true
		if reachable[cur] {
			return cur
		}
		sum, ok := s[cur]
		if !ok {
			break
		}
		cur = sum.Parent1
	}
	return ""
}

// SplitPoints computes the primary split-point between the current tip a
// and the other tip b, plus, when a itself has a second parent, the
// secondary split-point used by the merge engine's octopus branch.
// split2 is "" when a has no second parent.
func (s Summaries) SplitPoints(a, b string) (split, split2 string) {
	split = SplitPoint(s.ReachableViaParent1(a), s, b)

	sumA, ok := s[a]
	if !ok || sumA.Parent2 == "" {
		return split, ""
	}
	split2 = SplitPoint(s.ReachableViaParent2(a), s, b)
	return split, split2
}
