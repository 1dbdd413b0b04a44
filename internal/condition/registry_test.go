package condition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/avtrace/internal/domain"
)

func newTestRegistry(ocrBackend OCRBackend, llmBackend LLMBackend, icons IconDetector) *Registry {
	return NewRegistry(ocrBackend, llmBackend, icons, domain.DefaultVerifierOptions())
}

func frames(texts ...string) []*domain.Frame {
	out := make([]*domain.Frame, len(texts))
	for i, t := range texts {
		out[i] = &domain.Frame{Index: i, Text: t, Prev: i - 1, Next: i + 1}
	}
	out[len(out)-1].Next = -1
	return out
}

func TestTextCheckerAnyOf(t *testing.T) {
	r := newTestRegistry(nil, nil, nil)
	fs := frames("", "tap the login button")

	spec := domain.ConditionSpec{Checker: "text", Params: map[string]any{"any_of": []any{"login", "signup"}}}
	ok, ev, err := r.Check(context.Background(), fs, 1, spec)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, ev.MatchedKeywords, "login")
}

func TestTextCheckerAllOfMissing(t *testing.T) {
	r := newTestRegistry(nil, nil, nil)
	fs := frames("tap the login button")

	spec := domain.ConditionSpec{Checker: "text", Params: map[string]any{"all_of": []any{"login", "password"}}}
	ok, ev, err := r.Check(context.Background(), fs, 0, spec)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, ev.UnmatchedKeywords, "password")
}

func TestIconsCheckerWithoutDetectorIsHardNegative(t *testing.T) {
	r := newTestRegistry(nil, nil, nil)
	fs := frames("anything")

	spec := domain.ConditionSpec{Checker: "icons", Params: map[string]any{"icon_name": "cart"}}
	ok, ev, err := r.Check(context.Background(), fs, 0, spec)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "icon detector not configured", ev.Reason)
}

type stubDetector struct{ found bool }

func (d stubDetector) Detect(ctx context.Context, frame *domain.Frame, iconName string) (DetectResult, error) {
	return DetectResult{Found: d.found}, nil
}

func TestIconsCheckerWithDetector(t *testing.T) {
	r := newTestRegistry(nil, nil, stubDetector{found: true})
	fs := frames("anything")

	spec := domain.ConditionSpec{Checker: "icons", Params: map[string]any{"icon_name": "cart"}}
	ok, _, err := r.Check(context.Background(), fs, 0, spec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEscalateStopsAtFirstMatch(t *testing.T) {
	r := newTestRegistry(nil, nil, nil)
	regexCalls := 0
	r.Register("regex", CheckerFunc(func(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
		regexCalls++
		return true, domain.Evidence{CheckerType: "regex"}, nil
	}))
	fs := frames("tap login")

	// params maps sub-checker name directly to that sub-checker's own
	// params; escalate walks them in its configured EscalationOrder, which
	// tries "text" before "regex". "text" matches, so the "regex" sub-check
	// is never invoked.
	spec := domain.ConditionSpec{Checker: "escalate", Params: map[string]any{
		"text":  map[string]any{"any_of": []any{"login"}},
		"regex": map[string]any{"pattern": "login"},
	}}
	ok, _, err := r.Check(context.Background(), fs, 0, spec)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, regexCalls)
}

func TestEscalateContinuesPastFailedIconsWithLLMConfigured(t *testing.T) {
	r := newTestRegistry(nil, stubLLM{verdict: boolPtr(true)}, nil)
	fs := frames("screen")

	spec := domain.ConditionSpec{Checker: "escalate", Params: map[string]any{
		"icons": map[string]any{"icon_name": "cart"},
		"llm":   map[string]any{"prompt": "is the cart icon visible?"},
	}}
	ok, _, err := r.Check(context.Background(), fs, 0, spec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEscalateIconsIsHardNegativeWithoutLLM(t *testing.T) {
	r := newTestRegistry(nil, nil, nil)
	fs := frames("screen")
	fs[0].XMLText = `<node text="cart"/>` // the later ocr sub-check would match if it ran

	spec := domain.ConditionSpec{Checker: "escalate", Params: map[string]any{
		"icons": map[string]any{"icon_name": "cart"},
		"ocr":   map[string]any{"any_of": []any{"cart"}},
	}}
	ok, _, err := r.Check(context.Background(), fs, 0, spec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJuxtapositionRequiresAll(t *testing.T) {
	r := newTestRegistry(nil, nil, nil)
	fs := frames("tap login on main screen")

	spec := domain.ConditionSpec{Checker: "juxtaposition", Params: map[string]any{
		"text":  map[string]any{"any_of": []any{"login"}},
		"regex": map[string]any{"pattern": "signup"},
	}}
	ok, _, err := r.Check(context.Background(), fs, 0, spec)
	require.NoError(t, err)
	assert.False(t, ok)
}

type stubLLM struct{ verdict *bool }

func (s stubLLM) Judge(ctx context.Context, prompt string, frame, neighbor *domain.Frame) (*bool, error) {
	return s.verdict, nil
}

func boolPtr(b bool) *bool { return &b }
