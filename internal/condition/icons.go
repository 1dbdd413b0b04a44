package condition

import (
	"context"

	"github.com/smilemakc/avtrace/internal/domain"
)

// iconsChecker matches a node condition against an icon-detection backend.
// With no detector configured it is a hard negative: a configured "icons"
// checker that can't actually run detection must not silently pass.
type iconsChecker struct {
	detector IconDetector
}

func newIconsChecker(detector IconDetector) Checker {
	return &iconsChecker{detector: detector}
}

func (c *iconsChecker) Check(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	iconName := stringParam(spec.Params, "icon_name")
	if iconName == "" {
		return false, domain.Evidence{CheckerType: "icons", Reason: "no icon_name configured"}, nil
	}

	if c.detector == nil {
		return false, domain.Evidence{CheckerType: "icons", Reason: "icon detector not configured"}, nil
	}

	result, err := c.detector.Detect(ctx, frames[idx], iconName)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, domain.Evidence{CheckerType: "icons", Reason: "detector error: " + err.Error()}, ctxErr
		}
		return false, domain.Evidence{CheckerType: "icons", Reason: "inconclusive: detector error: " + err.Error()}, nil
	}

	if result.Found {
		return true, domain.Evidence{CheckerType: "icons", Reason: "icon detected"}, nil
	}
	return false, domain.Evidence{CheckerType: "icons", Reason: "icon not detected"}, nil
}
