package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/avtrace/internal/domain"
)

func textNode(id string, deps, next []string, keyword string) *domain.NodeSpec {
	return &domain.NodeSpec{
		ID:        id,
		Deps:      deps,
		Next:      next,
		Condition: domain.ConditionSpec{Checker: "text", Params: map[string]any{"any_of": []any{keyword}}},
		Score:     10,
	}
}

func frameWithText(idx int, text string) *domain.Frame {
	return &domain.Frame{Index: idx, Text: text, Prev: idx - 1, Next: idx + 1}
}

func chainFrames(texts ...string) []*domain.Frame {
	frames := make([]*domain.Frame, 0, len(texts)+1)
	frames = append(frames, &domain.Frame{Index: 0, Prev: -1, Next: -1})
	for i, t := range texts {
		frames = append(frames, frameWithText(i+1, t))
	}
	for i := range frames {
		frames[i].Prev = i - 1
		if i+1 < len(frames) {
			frames[i].Next = i + 1
		} else {
			frames[i].Next = -1
		}
	}
	return frames
}

func TestVerifyLinearChainMatchesInOrder(t *testing.T) {
	task := &domain.TaskSpec{
		Name: "linear",
		Nodes: []*domain.NodeSpec{
			textNode("A", nil, nil, "start"),
			textNode("B", []string{"A"}, nil, "middle"),
			textNode("C", []string{"B"}, nil, "end"),
		},
		Success: domain.SuccessSpec{AllOf: []string{"C"}},
	}
	frames := chainFrames("start screen", "middle step", "end screen")

	v := New(nil, nil, nil, domain.VerifierOptions{})
	result, err := v.Verify(context.Background(), task, frames)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Len(t, result.Matched, 3)
	assert.Equal(t, 30, result.TotalScore)
}

// TestVerifyStrictOrderingRejectsOutOfOrderMatch mirrors the strict
// frame(child) > frame(parent) scenario: D depends on a node matched at
// frame 4, and the only candidate frame for D that also satisfies the
// text condition is frame 4 itself — not strictly after it — so D must
// instead pick up its next valid candidate at frame 5.
func TestVerifyStrictOrderingRejectsOutOfOrderMatch(t *testing.T) {
	task := &domain.TaskSpec{
		Name: "strict-order",
		Nodes: []*domain.NodeSpec{
			textNode("P", nil, nil, "parent"),
			textNode("D", []string{"P"}, nil, "child"),
		},
		Success: domain.SuccessSpec{AllOf: []string{"D"}},
	}

	// frame 4 matches "parent", and also (coincidentally) "child"; the
	// next frame that matches "child" is frame 5.
	frames := []*domain.Frame{
		{Index: 0, Prev: -1, Next: -1},
		frameWithText(1, "nothing"),
		frameWithText(2, "nothing"),
		frameWithText(3, "nothing"),
		frameWithText(4, "parent child"),
		frameWithText(5, "child again"),
	}
	for i := range frames {
		frames[i].Prev = i - 1
		if i+1 < len(frames) {
			frames[i].Next = i + 1
		} else {
			frames[i].Next = -1
		}
	}

	v := New(nil, nil, nil, domain.VerifierOptions{})
	result, err := v.Verify(context.Background(), task, frames)
	require.NoError(t, err)
	require.True(t, result.OK)

	byNode := make(map[string]int)
	for _, m := range result.Matched {
		byNode[m.NodeID] = m.FrameIndex
	}
	assert.Equal(t, 4, byNode["P"])
	assert.Equal(t, 5, byNode["D"])
}

func TestVerifyUnmatchedNodeFailsAllOf(t *testing.T) {
	task := &domain.TaskSpec{
		Name: "unreachable",
		Nodes: []*domain.NodeSpec{
			textNode("A", nil, nil, "start"),
			textNode("B", []string{"A"}, nil, "never present"),
		},
		Success: domain.SuccessSpec{AllOf: []string{"B"}},
	}
	frames := chainFrames("start screen")

	v := New(nil, nil, nil, domain.VerifierOptions{})
	result, err := v.Verify(context.Background(), task, frames)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Len(t, result.Matched, 1)
}

func TestVerifyOrParentUnlocksOnEarliestMatch(t *testing.T) {
	task := &domain.TaskSpec{
		Name: "or-parent",
		Nodes: []*domain.NodeSpec{
			{ID: "A", Next: []string{"C"}, Condition: domain.ConditionSpec{Checker: "text", Params: map[string]any{"any_of": []any{"alpha"}}}, Score: 10},
			{ID: "B", Next: []string{"C"}, Condition: domain.ConditionSpec{Checker: "text", Params: map[string]any{"any_of": []any{"beta"}}}, Score: 10},
			textNode("C", nil, nil, "gamma"),
		},
		Success: domain.SuccessSpec{AllOf: []string{"C"}},
	}
	frames := chainFrames("alpha screen", "unrelated", "gamma screen")

	v := New(nil, nil, nil, domain.VerifierOptions{})
	result, err := v.Verify(context.Background(), task, frames)
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func ocrNode(id string, deps, next []string, keyword string) *domain.NodeSpec {
	return &domain.NodeSpec{
		ID:        id,
		Deps:      deps,
		Next:      next,
		Condition: domain.ConditionSpec{Checker: "ocr", Params: map[string]any{"any_of": []any{keyword}}},
		Score:     10,
	}
}

func xmlFrame(idx int, label string) *domain.Frame {
	return &domain.Frame{Index: idx, XMLText: `<node text="` + label + `"/>`, Prev: idx - 1, Next: idx + 1}
}

// TestVerifyFrameExclusiveAncestorBlocksEarlierFrame exercises the
// frame-exclusive consumption rule: Z has two OR-parents, Y (matches at
// frame 2) and X (matches at frame 4), both OCR-backed and therefore
// frame-exclusive. Y's earlier match sets Z's ordinary threshold at 2, so
// without exclusivity Z would be free to commit to frame 3. But X — though
// not the parent that unlocked Z — is still an ancestor on this path and
// consumed every frame up to its own match at frame 4, so Z must skip
// frame 3 and commit to frame 5 instead.
func TestVerifyFrameExclusiveAncestorBlocksEarlierFrame(t *testing.T) {
	task := &domain.TaskSpec{
		Name: "frame-exclusive",
		Nodes: []*domain.NodeSpec{
			ocrNode("Y", nil, []string{"Z"}, "settings"),
			ocrNode("X", nil, []string{"Z"}, "checkout"),
			textNode("Z", nil, nil, "z-marker"),
		},
		Success: domain.SuccessSpec{AllOf: []string{"Z"}},
	}

	frames := []*domain.Frame{
		{Index: 0, Prev: -1, Next: -1},
		xmlFrame(1, "nothing"),
		xmlFrame(2, "settings"),
		xmlFrame(3, "nothing"),
		xmlFrame(4, "checkout"),
		xmlFrame(5, "nothing"),
	}
	frames[1].Text, frames[2].Text, frames[3].Text = "nothing", "nothing", "z-marker"
	frames[4].Text, frames[5].Text = "nothing", "z-marker"
	for i := range frames {
		frames[i].Prev = i - 1
		if i+1 < len(frames) {
			frames[i].Next = i + 1
		} else {
			frames[i].Next = -1
		}
	}

	v := New(nil, nil, nil, domain.VerifierOptions{})
	result, err := v.Verify(context.Background(), task, frames)
	require.NoError(t, err)
	require.True(t, result.OK)

	byNode := make(map[string]int)
	for _, m := range result.Matched {
		byNode[m.NodeID] = m.FrameIndex
	}
	assert.Equal(t, 2, byNode["Y"])
	assert.Equal(t, 4, byNode["X"])
	assert.Equal(t, 5, byNode["Z"])
}

// TestVerifyAndParentIgnoresUnmatchedOrParent mirrors a diamond where D has
// an AND dep on B and is also reachable via C's Next (an OR edge), but C's
// branch never matches. Per the DAG's parent-feasibility rule (non-empty
// Deps decides feasibility alone, ignoring any OR parents), D must still
// be reachable through B alone.
func TestVerifyAndParentIgnoresUnmatchedOrParent(t *testing.T) {
	task := &domain.TaskSpec{
		Name: "and-ignores-or",
		Nodes: []*domain.NodeSpec{
			{ID: "A", Next: []string{"B", "C"}, Condition: domain.ConditionSpec{Checker: "text", Params: map[string]any{"any_of": []any{"alpha"}}}, Score: 10},
			textNode("B", nil, nil, "bravo"),
			{ID: "C", Next: []string{"D"}, Condition: domain.ConditionSpec{Checker: "text", Params: map[string]any{"any_of": []any{"charlie"}}}, Score: 10},
			{ID: "D", Deps: []string{"B"}, Condition: domain.ConditionSpec{Checker: "text", Params: map[string]any{"any_of": []any{"delta"}}}, Score: 10},
		},
		Success: domain.SuccessSpec{AllOf: []string{"D"}},
	}
	frames := chainFrames("alpha screen", "bravo screen", "delta screen")

	v := New(nil, nil, nil, domain.VerifierOptions{})
	result, err := v.Verify(context.Background(), task, frames)
	require.NoError(t, err)
	assert.True(t, result.OK)

	byNode := make(map[string]int)
	for _, m := range result.Matched {
		byNode[m.NodeID] = m.FrameIndex
	}
	assert.Equal(t, 2, byNode["B"])
	assert.Equal(t, 3, byNode["D"])
	_, cMatched := byNode["C"]
	assert.False(t, cMatched)
}

// TestVerifyManualReviewNeededOnlyWhenEscalateStranded checks the
// manual-review rule: it's raised on failure only when the task has an
// escalate condition and neither an LLM nor an OCR backend is configured
// to actually run it. A plain failing text node never raises it, and
// neither does a failing escalate node once an LLM backend exists.
func TestVerifyManualReviewNeededOnlyWhenEscalateStranded(t *testing.T) {
	escalateTask := &domain.TaskSpec{
		Name: "escalate-stranded",
		Nodes: []*domain.NodeSpec{
			{
				ID:        "A",
				Condition: domain.ConditionSpec{Checker: "escalate", Params: map[string]any{"text": map[string]any{"any_of": []any{"never present"}}}},
				Score:     10,
			},
		},
		Success: domain.SuccessSpec{AllOf: []string{"A"}},
	}
	frames := chainFrames("start screen")

	v := New(nil, nil, nil, domain.VerifierOptions{})
	result, err := v.Verify(context.Background(), escalateTask, frames)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.True(t, result.ManualReviewNeeded)

	vWithLLM := New(nil, stubAlwaysNo{}, nil, domain.VerifierOptions{})
	result, err = vWithLLM.Verify(context.Background(), escalateTask, frames)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.False(t, result.ManualReviewNeeded)

	plainTask := &domain.TaskSpec{
		Name:    "plain-failure",
		Nodes:   []*domain.NodeSpec{textNode("A", nil, nil, "never present")},
		Success: domain.SuccessSpec{AllOf: []string{"A"}},
	}
	v2 := New(nil, nil, nil, domain.VerifierOptions{})
	result, err = v2.Verify(context.Background(), plainTask, frames)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.False(t, result.ManualReviewNeeded)
}

type stubAlwaysNo struct{}

func (stubAlwaysNo) Judge(ctx context.Context, prompt string, frame, neighbor *domain.Frame) (*bool, error) {
	v := false
	return &v, nil
}

func TestVerifyNoFramesErrors(t *testing.T) {
	task := &domain.TaskSpec{Name: "empty"}
	v := New(nil, nil, nil, domain.VerifierOptions{})
	_, err := v.Verify(context.Background(), task, nil)
	require.Error(t, err)
}
