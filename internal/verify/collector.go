package verify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/smilemakc/avtrace/internal/condition"
	"github.com/smilemakc/avtrace/internal/dag"
	"github.com/smilemakc/avtrace/internal/domain"
	domainerrors "github.com/smilemakc/avtrace/internal/domain/errors"
	"github.com/smilemakc/avtrace/internal/tracing"
)

// candidateSet is the set of frame indices at which a node's condition
// evaluated true, in ascending order, along with the Evidence and
// DecisionLog entries produced while finding them.
type candidateSet struct {
	frames    []int
	logs      []domain.DecisionLog
	exclusive bool // condition.IsFrameExclusive(node.Condition); see solver's exclusion-set handling
}

// collect evaluates every node's condition against every frame (frame 0,
// the synthetic blank frame, is never a candidate), recording a
// DecisionLog entry for each (node, frame) pair tried, including every
// frame an OCR/LLM-backed ("frame-exclusive") node matches rather than
// stopping at the first — the solver, not the collector, decides which of
// those candidates a node actually commits to once its parents' frames are
// known, so truncating the scan here could hide a later frame a node
// genuinely needed. It does not itself enforce ordering between nodes —
// that's the solver's job, using these candidate lists plus the strict
// frame(child) > frame(parent) invariant to guarantee no two nodes on the
// same DAG path are ever matched to the same
// frame or to frames out of order.
func collect(ctx context.Context, taskName string, g *dag.Graph, frames []*domain.Frame, registry *condition.Registry, runID string, sink Sink, tracer trace.Tracer) (map[string]*candidateSet, error) {
	result := make(map[string]*candidateSet, len(g.Nodes))

	for _, nodeID := range g.Order {
		node := g.Nodes[nodeID]
		cs := &candidateSet{exclusive: condition.IsFrameExclusive(node.Condition)}

		nodeCtx, span := tracing.StartNode(ctx, tracer, nodeID)

		for idx := 1; idx < len(frames); idx++ {
			ok, evidence, err := safeCheck(nodeCtx, registry, frames, idx, node.Condition)
			if err != nil {
				span.End()
				return nil, domainerrors.NewNodeExecutionError(
					taskName, nodeID, node.Condition.Checker, 1,
					fmt.Sprintf("condition check failed at frame %d", idx), err, false,
				)
			}

			entry := domain.DecisionLog{
				FrameIndex:        idx,
				NodeID:            nodeID,
				Strategy:          node.Condition.Checker,
				Decision:          ok,
				Details:           evidence.Reason,
				CheckerType:       evidence.CheckerType,
				CheckerResult:     ok,
				MatchedKeywords:   evidence.MatchedKeywords,
				UnmatchedKeywords: evidence.UnmatchedKeywords,
			}
			cs.logs = append(cs.logs, entry)
			sink.Publish(runID, entry)

			if ok {
				cs.frames = append(cs.frames, idx)
			}
		}

		tracing.EndNode(span, len(cs.frames), len(cs.frames) > 0)
		result[nodeID] = cs
	}

	return result, nil
}

// safeCheck runs registry.Check with a recover() around it: a checker
// panicking on a malformed frame or an unexpected param shape is logged as
// an inconclusive miss for that one frame rather than taking down the
// whole run. A non-panic error still propagates — the only ones a checker
// itself returns at this point are context cancellation (ocr/llm checkers
// surface it deliberately) and domain.ErrCodeUnknownChecker from an
// unregistered checker name, both of which are genuine, run-ending
// failures rather than per-frame noise.
func safeCheck(ctx context.Context, registry *condition.Registry, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (ok bool, evidence domain.Evidence, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			evidence = domain.Evidence{CheckerType: spec.Checker, Reason: fmt.Sprintf("inconclusive: checker panicked: %v", r)}
			err = nil
		}
	}()
	return registry.Check(ctx, frames, idx, spec)
}
