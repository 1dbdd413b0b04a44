package condition

import "github.com/smilemakc/avtrace/internal/domain"

// IsFrameExclusive reports whether evaluating spec may invoke an OCR or LLM
// backend, directly or nested inside an escalate/juxtaposition combinator.
// Nodes whose condition is frame-exclusive consume every frame up to and
// including their matched frame for the rest of their DAG path (see the
// solver's exclusion-set handling), since an expensive vision check
// shouldn't be allowed to "re-read" evidence an earlier exclusive check on
// the same branch already spent.
func IsFrameExclusive(spec domain.ConditionSpec) bool {
	switch spec.Checker {
	case "ocr", "llm":
		return true
	case "escalate", "juxtaposition":
		for _, sub := range subSpecsByName(spec.Params) {
			if IsFrameExclusive(sub) {
				return true
			}
		}
	}
	return false
}

// subSpecsByName builds a ConditionSpec per entry of a combinator's params
// map, keyed by the sub-checker name itself: params maps a sub-checker name
// directly to that sub-checker's own param map (e.g.
// {"text": {"any_of": [...]}, "ocr": {...}}). Iteration order is
// unspecified here since exclusivity only cares whether any nested checker
// is frame-exclusive, never which one runs first.
func subSpecsByName(params map[string]any) map[string]domain.ConditionSpec {
	out := make(map[string]domain.ConditionSpec, len(params))
	for name, raw := range params {
		sub := domain.ConditionSpec{Checker: name}
		if m, ok := raw.(map[string]any); ok {
			sub.Params = m
		}
		out[name] = sub
	}
	return out
}

// subSpecsInOrder builds one ConditionSpec per name in order that has a
// corresponding entry in params, in that order. params maps a sub-checker
// name directly to that sub-checker's own param map — the key names the
// checker to dispatch to, not an arbitrary label.
func subSpecsInOrder(params map[string]any, order []string) []domain.ConditionSpec {
	var specs []domain.ConditionSpec
	for _, name := range order {
		raw, ok := params[name]
		if !ok {
			continue
		}
		sub := domain.ConditionSpec{Checker: name}
		if m, ok := raw.(map[string]any); ok {
			sub.Params = m
		}
		specs = append(specs, sub)
	}
	return specs
}
