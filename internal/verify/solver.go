package verify

import (
	"sort"

	"github.com/smilemakc/avtrace/internal/dag"
)

// solved is one node's outcome from the topological solve: the earliest
// frame index it could be matched to, or matched=false if no topologically
// valid frame exists for it given its parents.
type solved struct {
	matched    bool
	frameIndex int
}

// solve runs the topological dynamic-programming pass: for each node, in
// topological order, it computes the earliest candidate frame strictly
// after the threshold implied by its parents, where:
//
//   - an AND parent (declared via the node's own Deps) raises the
//     threshold to its matched frame — ALL deps must already be satisfied,
//     so the threshold is the max over them;
//   - an OR parent (declared via a parent's Next) lowers the threshold to
//     the earliest satisfied one — ANY one of them suffices, so the
//     threshold is the min over the ones that matched.
//
// A node with non-empty Deps is governed by AND semantics alone: any OR
// parents it also happens to have (via some other node's Next) are ignored
// for feasibility, so a still-unmatched OR branch can never make an
// otherwise-satisfied AND node unreachable. Only a node with no Deps falls
// back to OR semantics. A root node (no parents of either kind) has an
// implicit threshold of frame 0, the synthetic blank frame every trace
// starts with.
//
// Because every match requires frame(child) > frame(parent), strictly, no
// two nodes on the same DAG path can ever end up pointing at the same
// frame.
//
// Frame-exclusive nodes (OCR/LLM-backed, per condition.IsFrameExclusive)
// add a second constraint on top of the threshold: a node may not commit
// to any frame already "spent" by a frame-exclusive ancestor. An ancestor
// matched at frame k is treated as having consumed every frame 0..k for
// the rest of its branch, not just frame k itself — two expensive vision
// checks on the same path can never be satisfied by re-reading the same
// evidence. This is computed over the full transitive ancestor set (both
// deps- and next-derived parents), not just a node's immediate parents,
// since an OR-parent that matched but lost the threshold race (the other
// OR-parent matched earlier) still consumed its own frames if exclusive.
// Independent branches never share an ancestor set, so they consume frames
// independently.
func solve(g *dag.Graph, candidates map[string]*candidateSet) map[string]solved {
	results := make(map[string]solved, len(g.Nodes))
	ancestors := make(map[string]map[string]bool, len(g.Nodes))

	for _, nodeID := range g.Order {
		ancestors[nodeID] = transitiveAncestors(g, nodeID, ancestors)

		threshold, feasible := parentThreshold(g, results, nodeID)
		if !feasible {
			results[nodeID] = solved{matched: false}
			continue
		}

		consumedUpTo := exclusiveConsumption(ancestors[nodeID], results, candidates)

		hit, ok := firstUnconsumedAfter(candidates[nodeID].frames, threshold, consumedUpTo)
		if !ok {
			results[nodeID] = solved{matched: false}
			continue
		}

		results[nodeID] = solved{matched: true, frameIndex: hit}
	}

	return results
}

// transitiveAncestors returns every node reachable by walking parent edges
// (both AND and OR) backward from nodeID, using resolved answers for
// already-processed ancestors out of cache.
func transitiveAncestors(g *dag.Graph, nodeID string, cache map[string]map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for parent := range g.Parents(nodeID) {
		out[parent] = true
		for a := range cache[parent] {
			out[a] = true
		}
	}
	return out
}

// exclusiveConsumption returns the highest frame index consumed by any
// matched, frame-exclusive node in ancestors — i.e. the upper bound of the
// union of their "0..matched_frame" consumption ranges — or -1 if none of
// them are both matched and frame-exclusive.
func exclusiveConsumption(ancestors map[string]bool, results map[string]solved, candidates map[string]*candidateSet) int {
	consumedUpTo := -1
	for a := range ancestors {
		r, ok := results[a]
		if !ok || !r.matched {
			continue
		}
		cs := candidates[a]
		if cs == nil || !cs.exclusive {
			continue
		}
		if r.frameIndex > consumedUpTo {
			consumedUpTo = r.frameIndex
		}
	}
	return consumedUpTo
}

// parentThreshold computes the frame index a node's own match must exceed,
// and whether the node is even reachable (its required parents matched).
// When a node has non-empty AND parents (Deps), feasibility is decided by
// those alone — ALL of them must have matched — and any OR parents (via
// another node's Next) are ignored entirely for this purpose, even if some
// of them never matched. Only a node with no AND parents falls back to OR
// semantics: ANY one matched parent unlocks it. A node with neither is a
// root, with an implicit threshold of frame 0.
func parentThreshold(g *dag.Graph, results map[string]solved, nodeID string) (int, bool) {
	andParents := g.AndParents[nodeID]
	orParents := g.OrParents[nodeID]

	if len(andParents) > 0 {
		threshold := -1
		for _, p := range andParents {
			r, ok := results[p]
			if !ok || !r.matched {
				return 0, false
			}
			if r.frameIndex > threshold {
				threshold = r.frameIndex
			}
		}
		return threshold, true
	}

	if len(orParents) > 0 {
		threshold := -1
		anyMatched := false
		for _, p := range orParents {
			r, ok := results[p]
			if !ok || !r.matched {
				continue
			}
			anyMatched = true
			if threshold == -1 || r.frameIndex < threshold {
				threshold = r.frameIndex
			}
		}
		if !anyMatched {
			return 0, false
		}
		return threshold, true
	}

	return 0, true
}

// firstUnconsumedAfter returns the smallest element of sorted frame indices
// that is strictly greater than threshold and strictly greater than
// consumedUpTo (the exclusion bound contributed by frame-exclusive
// ancestors; -1 when there is none, which excludes nothing).
func firstUnconsumedAfter(indices []int, threshold, consumedUpTo int) (int, bool) {
	start := threshold
	if consumedUpTo > start {
		start = consumedUpTo
	}
	i := sort.SearchInts(indices, start+1)
	if i >= len(indices) {
		return 0, false
	}
	return indices[i], true
}
