// Package verify orchestrates a verification run: it builds the node DAG,
// collects per-node/per-frame condition decisions, runs the topological
// solver to find a valid node-to-frame matching, and assembles the result.
package verify

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/smilemakc/avtrace/internal/condition"
	"github.com/smilemakc/avtrace/internal/dag"
	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/tracing"
)

// Verifier runs TaskSpecs against frame traces using a fixed set of
// condition-checker backends (OCR, LLM, icon detector — any of which may be
// nil).
type Verifier struct {
	registry *condition.Registry
	opts     domain.VerifierOptions
	tracer   trace.Tracer
	hasOCR   bool
	hasLLM   bool
}

// New builds a Verifier. opts may be the zero value, in which case
// domain.DefaultVerifierOptions() is used. Runs are traced with a no-op
// tracer by default; call SetTracer to point them at a real provider.
func New(ocrBackend condition.OCRBackend, llmBackend condition.LLMBackend, icons condition.IconDetector, opts domain.VerifierOptions) *Verifier {
	if len(opts.EscalationOrder) == 0 {
		opts = domain.DefaultVerifierOptions()
	}
	return &Verifier{
		registry: condition.NewRegistry(ocrBackend, llmBackend, icons, opts),
		opts:     opts,
		tracer:   noop.NewTracerProvider().Tracer("avtrace"),
		hasOCR:   ocrBackend != nil,
		hasLLM:   llmBackend != nil,
	}
}

// SetTracer points future runs at tracer (e.g. one backed by a configured
// tracing.Provider) instead of the no-op default.
func (v *Verifier) SetTracer(tracer trace.Tracer) {
	if tracer != nil {
		v.tracer = tracer
	}
}

// Verify evaluates task against frames and returns the matching result.
// DecisionLog entries are only collected into the result, not streamed
// live; use VerifyWithSink for a run whose reasoning should be observable
// as it happens.
func (v *Verifier) Verify(ctx context.Context, task *domain.TaskSpec, frames []*domain.Frame) (*domain.VerifyResult, error) {
	return v.VerifyWithSink(ctx, "", task, frames, NopSink{})
}

// VerifyWithSink evaluates task against frames, additionally publishing
// every DecisionLog entry to sink as it's produced, tagged with runID.
func (v *Verifier) VerifyWithSink(ctx context.Context, runID string, task *domain.TaskSpec, frames []*domain.Frame, sink Sink) (*domain.VerifyResult, error) {
	if len(frames) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidInput, "no frames to verify against", nil)
	}
	if sink == nil {
		sink = NopSink{}
	}

	ctx, span := tracing.StartRun(ctx, v.tracer, task.Name, len(frames))
	defer span.End()

	g, err := dag.Build(task.Nodes)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("task", task.Name).Interface("paths", g.RootToTargetPaths()).Msg("enumerated root-to-target paths")

	candidates, err := collect(ctx, task.Name, g, frames, v.registry, runID, sink, v.tracer)
	if err != nil {
		return nil, fmt.Errorf("collecting node candidates: %w", err)
	}

	solved := solve(g, candidates)

	result := &domain.VerifyResult{}
	for _, nodeID := range g.Order {
		result.Logs = append(result.Logs, candidates[nodeID].logs...)

		s := solved[nodeID]
		if !s.matched {
			continue
		}

		node := g.Nodes[nodeID]
		result.Matched = append(result.Matched, domain.NodeMatch{
			NodeID:     nodeID,
			FrameIndex: s.frameIndex,
			Score:      node.Score,
		})
		result.TotalScore += node.Score
	}

	success := task.Success
	if len(success.AllOf) == 0 && len(success.AnyOf) == 0 {
		success.AnyOf = g.Terminals()
		sort.Strings(success.AnyOf)
	}
	ok, reason := evaluateSuccess(success, solved)
	result.OK = ok
	result.Reason = reason

	if !ok && hasEscalateCondition(task.Nodes) && !v.hasLLM && !v.hasOCR {
		result.ManualReviewNeeded = true
	}

	log.Debug().
		Str("task", task.Name).
		Bool("ok", ok).
		Int("matched_nodes", len(result.Matched)).
		Int("total_score", result.TotalScore).
		Msg("verification complete")

	return result, nil
}

// hasEscalateCondition reports whether any node's condition is an escalate
// combinator: a task that relies on escalation but has neither an LLM nor
// an OCR backend configured can never actually exercise the checkers its
// author expected it to fall back to, so a failure there deserves a human
// look rather than being taken as a clean negative.
func hasEscalateCondition(nodes []*domain.NodeSpec) bool {
	for _, n := range nodes {
		if n.Condition.Checker == "escalate" {
			return true
		}
	}
	return false
}

// evaluateSuccess applies a TaskSpec's SuccessSpec against the solved node
// set. VerifyWithSink fills an empty SuccessSpec with the graph's terminal
// nodes as AnyOf before calling it.
func evaluateSuccess(spec domain.SuccessSpec, solved map[string]solved) (bool, string) {
	if len(spec.AllOf) > 0 {
		for _, id := range spec.AllOf {
			if s, ok := solved[id]; !ok || !s.matched {
				return false, fmt.Sprintf("required node %q did not match", id)
			}
		}
		return true, "all required nodes matched"
	}

	if len(spec.AnyOf) > 0 {
		for _, id := range spec.AnyOf {
			if s, ok := solved[id]; ok && s.matched {
				return true, fmt.Sprintf("node %q matched", id)
			}
		}
		return false, "none of the accepted nodes matched"
	}

	return false, "task has no success criteria"
}
