package condition

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/ocr"
)

// checkText matches keywords against a frame's combined reasoning/action
// text. params: "any_of" (default) or "all_of" keyword lists.
func checkText(_ context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	return matchKeywords(frames[idx].Text, spec.Params, "text")
}

// checkRegex matches a regular expression against a frame's combined text.
// A true "ignore_case" param makes the match case-insensitive.
func checkRegex(_ context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	pattern := stringParam(spec.Params, "pattern")
	if pattern == "" {
		return false, domain.Evidence{CheckerType: "regex", Reason: "no pattern configured"}, nil
	}
	if ignoreCase, _ := spec.Params["ignore_case"].(bool); ignoreCase {
		pattern = "(?i)" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, domain.Evidence{CheckerType: "regex", Reason: "invalid pattern: " + err.Error()}, nil
	}

	if re.MatchString(frames[idx].Text) {
		return true, domain.Evidence{CheckerType: "regex", Reason: "pattern matched"}, nil
	}
	return false, domain.Evidence{CheckerType: "regex", Reason: "pattern did not match"}, nil
}

// checkUI looks a single key up in the frame's UI property map. With an
// "equals" param, the looked-up value must stringify equal to it; with an
// "in" param (a list), the value must stringify equal to one of its
// entries; with neither, the check is presence-only — true iff key is set
// at all.
func checkUI(_ context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	key := stringParam(spec.Params, "key")
	if key == "" {
		return false, domain.Evidence{CheckerType: "ui", Reason: "no key configured"}, nil
	}

	value, present := frames[idx].UI[key]

	if equals, ok := spec.Params["equals"]; ok {
		if present && fmt.Sprint(value) == fmt.Sprint(equals) {
			return true, domain.Evidence{CheckerType: "ui", Reason: fmt.Sprintf("ui[%s] equals %v", key, equals)}, nil
		}
		return false, domain.Evidence{CheckerType: "ui", Reason: fmt.Sprintf("ui[%s] does not equal %v", key, equals)}, nil
	}

	if in, ok := spec.Params["in"].([]any); ok {
		if present {
			for _, candidate := range in {
				if fmt.Sprint(value) == fmt.Sprint(candidate) {
					return true, domain.Evidence{CheckerType: "ui", Reason: fmt.Sprintf("ui[%s] in configured set", key)}, nil
				}
			}
		}
		return false, domain.Evidence{CheckerType: "ui", Reason: fmt.Sprintf("ui[%s] not in configured set", key)}, nil
	}

	if present {
		return true, domain.Evidence{CheckerType: "ui", Reason: fmt.Sprintf("ui[%s] present", key)}, nil
	}
	return false, domain.Evidence{CheckerType: "ui", Reason: fmt.Sprintf("ui[%s] absent", key)}, nil
}

// checkAction matches the frame's recorded action: an optional "type"
// (compared against action.Type) and/or a "contains" submap (every key of
// which must be present in action.Fields with a stringify-equal value).
// Neither given is a misconfiguration and checkAction reports false.
func checkAction(_ context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	wantType := stringParam(spec.Params, "type")
	contains, hasContains := spec.Params["contains"].(map[string]any)
	if wantType == "" && !hasContains {
		return false, domain.Evidence{CheckerType: "action", Reason: "no type or contains configured"}, nil
	}

	action := frames[idx].Action

	if wantType != "" && action.Type != wantType {
		return false, domain.Evidence{CheckerType: "action", Reason: fmt.Sprintf("action type %q does not match %q", action.Type, wantType)}, nil
	}

	if hasContains {
		for k, want := range contains {
			got, ok := action.Fields[k]
			if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
				return false, domain.Evidence{CheckerType: "action", Reason: fmt.Sprintf("action field %q does not match", k)}, nil
			}
		}
	}

	return true, domain.Evidence{CheckerType: "action", Reason: "action matched"}, nil
}

// checkXML matches keywords against the frame's accessibility-tree text,
// same any_of/all_of semantics as checkText.
func checkXML(_ context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	return matchKeywords(ocr.ExtractXMLText(frames[idx].XMLText), spec.Params, "xml")
}

// matchKeywords implements the any_of/all_of keyword matching shared by the
// text/xml/dynamic_match checkers: case-insensitive substring containment.
func matchKeywords(haystack string, params map[string]any, checkerType string) (bool, domain.Evidence, error) {
	lower := strings.ToLower(haystack)

	if allOf := stringSlice(params, "all_of"); len(allOf) > 0 {
		var unmatched []string
		for _, kw := range allOf {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				unmatched = append(unmatched, kw)
			}
		}
		if len(unmatched) == 0 {
			return true, domain.Evidence{CheckerType: checkerType, MatchedKeywords: allOf, Reason: "all keywords present"}, nil
		}
		return false, domain.Evidence{CheckerType: checkerType, UnmatchedKeywords: unmatched, Reason: "missing required keywords"}, nil
	}

	keywords := stringSlice(params, "any_of")
	if len(keywords) == 0 {
		keywords = stringSlice(params, "keywords")
	}
	if len(keywords) == 0 {
		return false, domain.Evidence{CheckerType: checkerType, Reason: "no keywords configured"}, nil
	}

	var matched, unmatched []string
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		} else {
			unmatched = append(unmatched, kw)
		}
	}

	if len(matched) > 0 {
		return true, domain.Evidence{CheckerType: checkerType, MatchedKeywords: matched, UnmatchedKeywords: unmatched, Reason: "keyword matched"}, nil
	}
	return false, domain.Evidence{CheckerType: checkerType, UnmatchedKeywords: unmatched, Reason: "no keyword matched"}, nil
}
