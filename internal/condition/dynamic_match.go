package condition

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/smilemakc/avtrace/internal/domain"
)

// dynamicMatchCache memoizes compiled expr programs across checks, since a
// condition's "expr" field is the same string on every frame it's tried
// against during a run.
var dynamicMatchCache = struct {
	mu    sync.RWMutex
	progs map[string]*vm.Program
}{progs: make(map[string]*vm.Program)}

// checkDynamicMatch is a more flexible keyword/regex checker: it extracts
// text from a configurable frame field ("extract_from"), tests it against
// "condition_patterns" (any_of/all_of keyword lists, same shape as the base
// checkers), and additionally supports an "expr" field — an expr-lang
// boolean expression evaluated against the frame's fields — for conditions
// too irregular to express as a keyword list.
func checkDynamicMatch(_ context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	frame := frames[idx]
	field := stringParam(spec.Params, "extract_from")
	if field == "" {
		field = "text"
	}
	haystack := extractFrameField(frame, field)

	if exprSrc := stringParam(spec.Params, "expr"); exprSrc != "" {
		ok, err := evalDynamicExpr(exprSrc, frame)
		if err != nil {
			return false, domain.Evidence{CheckerType: "dynamic_match", Reason: "expr error: " + err.Error()}, nil
		}
		if ok {
			return true, domain.Evidence{CheckerType: "dynamic_match", Reason: "expr matched"}, nil
		}
		// fall through: expr false doesn't preclude condition_patterns also
		// being configured as an alternative route to a match.
	}

	if patterns, ok := spec.Params["condition_patterns"].(map[string]any); ok {
		matched, evidence, _ := matchKeywords(haystack, patterns, "dynamic_match")
		if matched {
			return true, evidence, nil
		}
	}

	return false, domain.Evidence{CheckerType: "dynamic_match", Reason: "no expr or pattern matched"}, nil
}

// extractFrameField pulls the named field off a frame for dynamic_match's
// "extract_from" parameter.
func extractFrameField(frame *domain.Frame, field string) string {
	switch strings.ToLower(field) {
	case "text":
		return frame.Text
	case "xml_text", "xml":
		return frame.XMLText
	case "ui":
		return flattenUI(frame.UI)
	case "action":
		return flattenAction(frame.Action)
	case "reasoning":
		return frame.Reasoning
	default:
		return frame.Text
	}
}

// flattenUI renders a frame's UI property map as deterministic
// "key=value" pairs, sorted by key, for extract_from's string-haystack
// matchers.
func flattenUI(ui map[string]any) string {
	keys := make([]string, 0, len(ui))
	for k := range ui {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ui[k]))
	}
	return strings.Join(parts, " ")
}

// flattenAction renders a frame's action as its type followed by its
// fields as deterministic "key=value" pairs, sorted by key.
func flattenAction(action domain.Action) string {
	keys := make([]string, 0, len(action.Fields))
	for k := range action.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	if action.Type != "" {
		parts = append(parts, action.Type)
	}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, action.Fields[k]))
	}
	return strings.Join(parts, " ")
}

func evalDynamicExpr(src string, frame *domain.Frame) (bool, error) {
	dynamicMatchCache.mu.RLock()
	program, cached := dynamicMatchCache.progs[src]
	dynamicMatchCache.mu.RUnlock()

	if !cached {
		var err error
		program, err = expr.Compile(src, expr.AsBool())
		if err != nil {
			return false, err
		}
		dynamicMatchCache.mu.Lock()
		dynamicMatchCache.progs[src] = program
		dynamicMatchCache.mu.Unlock()
	}

	env := map[string]any{
		"text":      frame.Text,
		"xml_text":  frame.XMLText,
		"ui":        frame.UI,
		"action":    frame.Action,
		"reasoning": frame.Reasoning,
		"app_name":  frame.AppName,
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	result, _ := out.(bool)
	return result, nil
}
