// Package dag builds and validates the verification DAG described by a
// TaskSpec: nodes connected by two different parent-edge kinds, "deps" (an
// AND relationship — a node needs ALL of its deps satisfied first) and
// "next" (an OR relationship — a node declares the children it leads to,
// any one of which may pick it as a satisfied parent).
package dag

import (
	"fmt"
	"sort"

	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/utils"
)

// EdgeKind distinguishes the two parent-edge semantics a node can have.
type EdgeKind int

const (
	// KindAnd marks an edge declared via a node's own Deps field.
	KindAnd EdgeKind = iota
	// KindOr marks an edge declared via a parent's Next field.
	KindOr
)

// Graph is the built, validated representation of a TaskSpec's node set.
type Graph struct {
	Nodes map[string]*domain.NodeSpec

	// Children maps a node ID to every node ID that names it as a parent,
	// through either Deps or Next.
	Children map[string][]string

	// AndParents maps a node ID to the parents it requires via Deps (ALL
	// must be satisfied before this node can be considered).
	AndParents map[string][]string

	// OrParents maps a node ID to the parents that named it via their own
	// Next field (ANY one satisfied parent unlocks this node through that
	// edge).
	OrParents map[string][]string

	// Order is a valid topological ordering of all node IDs.
	Order []string
}

// Build validates a TaskSpec's node list and assembles its Graph, detecting
// duplicate IDs, dangling references, and cycles.
func Build(nodes []*domain.NodeSpec) (*Graph, error) {
	g := &Graph{
		Nodes:      make(map[string]*domain.NodeSpec, len(nodes)),
		Children:   make(map[string][]string),
		AndParents: make(map[string][]string),
		OrParents:  make(map[string][]string),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, domain.NewDomainError(domain.ErrCodeInvalidInput, "node with empty id", nil)
		}
		if _, dup := g.Nodes[n.ID]; dup {
			return nil, domain.NewDomainError(domain.ErrCodeInvalidInput, fmt.Sprintf("duplicate node id %q", n.ID), nil)
		}
		n.Score = utils.DefaultValue(n.Score, domain.DefaultNodeScore)
		g.Nodes[n.ID] = n
	}

	for _, n := range nodes {
		for _, dep := range n.Deps {
			if _, ok := g.Nodes[dep]; !ok {
				return nil, domain.NewDomainError(domain.ErrCodeInvalidInput, fmt.Sprintf("node %q depends on unknown node %q", n.ID, dep), nil)
			}
			g.AndParents[n.ID] = append(g.AndParents[n.ID], dep)
			g.Children[dep] = append(g.Children[dep], n.ID)
		}
		for _, next := range n.Next {
			if _, ok := g.Nodes[next]; !ok {
				return nil, domain.NewDomainError(domain.ErrCodeInvalidInput, fmt.Sprintf("node %q names unknown next node %q", n.ID, next), nil)
			}
			g.OrParents[next] = append(g.OrParents[next], n.ID)
			g.Children[n.ID] = append(g.Children[n.ID], next)
		}
	}

	order, err := g.topologicalSort()
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// Parents returns every parent of a node across both edge kinds, each
// tagged with the kind of edge that produced it.
func (g *Graph) Parents(nodeID string) map[string]EdgeKind {
	out := make(map[string]EdgeKind)
	for _, p := range g.AndParents[nodeID] {
		out[p] = KindAnd
	}
	for _, p := range g.OrParents[nodeID] {
		if _, exists := out[p]; !exists {
			out[p] = KindOr
		}
	}
	return out
}

// IsRoot reports whether a node has no parents of either kind.
func (g *Graph) IsRoot(nodeID string) bool {
	return len(g.AndParents[nodeID]) == 0 && len(g.OrParents[nodeID]) == 0
}

// Terminals returns the node IDs that have no children — the nodes an
// empty SuccessSpec falls back to, as AnyOf.
func (g *Graph) Terminals() []string {
	var out []string
	for id := range g.Nodes {
		if len(g.Children[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// RootToTargetPaths enumerates every simple path from a root node (no
// parents of either kind) to a terminal node (no children), walking the
// unified child edge set. It exists purely for diagnostics — logging which
// branches a task actually exercises — and plays no part in candidate
// collection or solving.
func (g *Graph) RootToTargetPaths() [][]string {
	var roots []string
	for id := range g.Nodes {
		if g.IsRoot(id) {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)

	var paths [][]string
	for _, root := range roots {
		g.walkPaths(root, []string{root}, &paths)
	}
	return paths
}

func (g *Graph) walkPaths(nodeID string, prefix []string, paths *[][]string) {
	children := g.Children[nodeID]
	if len(children) == 0 {
		path := make([]string, len(prefix))
		copy(path, prefix)
		*paths = append(*paths, path)
		return
	}

	sorted := append([]string(nil), children...)
	sort.Strings(sorted)
	for _, child := range sorted {
		next := make([]string, len(prefix)+1)
		copy(next, prefix)
		next[len(prefix)] = child
		g.walkPaths(child, next, paths)
	}
}

// topologicalSort runs Kahn's algorithm over the unified edge set (AND and
// OR edges both count as "must come before"), returning an error if a cycle
// is detected.
func (g *Graph) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		inDegree[id] = len(g.AndParents[id]) + len(g.OrParents[id])
	}

	queue := make([]string, 0, len(g.Nodes))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		for _, child := range g.Children[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(result) != len(g.Nodes) {
		return nil, domain.NewDomainError(domain.ErrCodeCycleDetected, "node graph contains a cycle", nil)
	}

	return result, nil
}
