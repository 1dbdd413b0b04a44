package condition

import (
	"context"

	"github.com/smilemakc/avtrace/internal/domain"
)

// escalateChecker runs its configured sub-checkers, keyed by name in
// spec.Params, in the run's EscalationOrder, returning true on the first
// one that does. A failed "icons" sub-check never aborts the escalation
// early when an LLM backend is available to fall back to: it simply falls
// through to whatever checker comes next in order. With no LLM backend
// configured, a failed icons sub-check is a hard negative.
type escalateChecker struct {
	registry *Registry
	opts     domain.VerifierOptions
}

func newEscalateChecker(registry *Registry, opts domain.VerifierOptions) Checker {
	return &escalateChecker{registry: registry, opts: opts}
}

func (c *escalateChecker) Check(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	order := c.opts.EscalationOrder
	if len(order) == 0 {
		order = domain.DefaultVerifierOptions().EscalationOrder
	}

	// Engine-level force: when ForceLLM is set and both an LLM backend and
	// this node's own llm sub-config exist, skip straight to the LLM
	// sub-check instead of walking the rest of the order.
	if c.opts.ForceLLM && c.registry.LLMAvailable() {
		if llmRaw, ok := spec.Params["llm"]; ok {
			if llm, ok := c.registry.Get("llm"); ok {
				m, _ := llmRaw.(map[string]any)
				return llm.Check(ctx, frames, idx, domain.ConditionSpec{Checker: "llm", Params: m})
			}
		}
	}

	checks := subSpecsInOrder(spec.Params, order)
	if len(checks) == 0 {
		return false, domain.Evidence{CheckerType: "escalate", Reason: "no sub-checks configured"}, nil
	}

	var lastEvidence domain.Evidence
	for _, sub := range checks {
		ok, evidence, err := c.registry.Check(ctx, frames, idx, sub)
		if err != nil {
			return false, evidence, err
		}
		lastEvidence = evidence
		if ok {
			return true, evidence, nil
		}
		if sub.Checker == "icons" && !c.registry.LLMAvailable() {
			return false, evidence, nil
		}
	}

	return false, lastEvidence, nil
}
