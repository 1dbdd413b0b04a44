package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/avtrace/internal/domain"
)

func node(id string, deps, next []string) *domain.NodeSpec {
	return &domain.NodeSpec{ID: id, Deps: deps, Next: next, Condition: domain.ConditionSpec{Checker: "text"}}
}

func TestBuildLinearChain(t *testing.T) {
	nodes := []*domain.NodeSpec{
		node("A", nil, nil),
		node("B", []string{"A"}, nil),
		node("C", []string{"B"}, nil),
	}

	g, err := Build(nodes)
	require.NoError(t, err)
	assert.True(t, g.IsRoot("A"))
	assert.False(t, g.IsRoot("B"))
	assert.Equal(t, []string{"A"}, g.AndParents["B"])
	assert.ElementsMatch(t, []string{"C"}, g.Terminals())

	idx := make(map[string]int, len(g.Order))
	for i, id := range g.Order {
		idx[id] = i
	}
	assert.Less(t, idx["A"], idx["B"])
	assert.Less(t, idx["B"], idx["C"])
}

func TestBuildNextDeclaresOrParent(t *testing.T) {
	nodes := []*domain.NodeSpec{
		node("A", nil, []string{"C"}),
		node("B", nil, []string{"C"}),
		node("C", nil, nil),
	}

	g, err := Build(nodes)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, g.OrParents["C"])
	assert.Empty(t, g.AndParents["C"])

	parents := g.Parents("C")
	assert.Equal(t, KindOr, parents["A"])
	assert.Equal(t, KindOr, parents["B"])
}

func TestBuildDetectsCycle(t *testing.T) {
	nodes := []*domain.NodeSpec{
		node("A", []string{"B"}, nil),
		node("B", []string{"A"}, nil),
	}

	_, err := Build(nodes)
	require.Error(t, err)
	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeCycleDetected, derr.Code)
}

func TestBuildRejectsDanglingDep(t *testing.T) {
	nodes := []*domain.NodeSpec{
		node("A", []string{"missing"}, nil),
	}

	_, err := Build(nodes)
	require.Error(t, err)
}

func TestBuildRejectsDuplicateID(t *testing.T) {
	nodes := []*domain.NodeSpec{
		node("A", nil, nil),
		node("A", nil, nil),
	}

	_, err := Build(nodes)
	require.Error(t, err)
}

func TestRootToTargetPathsEnumeratesBranches(t *testing.T) {
	nodes := []*domain.NodeSpec{
		node("A", nil, []string{"B", "C"}),
		node("B", nil, nil),
		node("C", nil, nil),
		node("D", []string{"B"}, nil),
	}

	g, err := Build(nodes)
	require.NoError(t, err)

	paths := g.RootToTargetPaths()
	assert.ElementsMatch(t, [][]string{
		{"A", "B", "D"},
		{"A", "C"},
	}, paths)
}

func TestBuildAppliesDefaultScore(t *testing.T) {
	n := node("A", nil, nil)
	n.Score = 0

	g, err := Build([]*domain.NodeSpec{n})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultNodeScore, g.Nodes["A"].Score)
}
