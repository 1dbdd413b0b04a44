package condition

import (
	"context"

	"github.com/smilemakc/avtrace/internal/domain"
)

// juxtapositionFixedOrder is the fixed sub-checker inspection order for the
// juxtaposition combinator, independent of any configured EscalationOrder.
var juxtapositionFixedOrder = []string{
	"text", "regex", "ui", "action", "xml", "dynamic_match", "icons", "ocr", "llm",
}

// juxtapositionChecker requires every configured sub-checker to pass,
// inspected in the fixed order above, short-circuiting on the first
// failure.
type juxtapositionChecker struct {
	registry *Registry
}

func newJuxtapositionChecker(registry *Registry) Checker {
	return &juxtapositionChecker{registry: registry}
}

func (c *juxtapositionChecker) Check(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	checks := subSpecsInOrder(spec.Params, juxtapositionFixedOrder)
	if len(checks) == 0 {
		return false, domain.Evidence{CheckerType: "juxtaposition", Reason: "no sub-checks configured"}, nil
	}

	for _, sub := range checks {
		ok, evidence, err := c.registry.Check(ctx, frames, idx, sub)
		if err != nil {
			return false, evidence, err
		}
		if !ok {
			return false, evidence, nil
		}
	}

	return true, domain.Evidence{CheckerType: "juxtaposition", Reason: "all sub-checks passed"}, nil
}
