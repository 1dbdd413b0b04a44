// Package condition implements the node condition checkers: string-keyed
// dispatch over a registry of Checker implementations, plus two combinators
// (escalate and juxtaposition) that compose checkers declared in a node's
// condition parameters.
package condition

import (
	"context"
	"fmt"

	"github.com/smilemakc/avtrace/internal/domain"
)

// Checker evaluates a node's condition against one candidate frame, given
// the full ordered frame slice the candidate belongs to so checkers that
// need a neighbor (the LLM checker's two-image prompt) can look one up by
// index without the Frame type itself holding pointers to its neighbors.
// It returns its verdict plus Evidence explaining it; it never mutates the
// frame.
type Checker interface {
	Check(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error)
}

// CheckerFunc adapts a plain function to the Checker interface.
type CheckerFunc func(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error)

func (f CheckerFunc) Check(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	return f(ctx, frames, idx, spec)
}

// DetectResult is the outcome of an icon-detection lookup.
type DetectResult struct {
	Found      bool
	Confidence float64
}

// OCRBackend recognizes text in a frame's screenshot. A nil backend means
// only the frame's existing XML/accessibility text is available.
type OCRBackend interface {
	OCR(ctx context.Context, frame *domain.Frame) (string, error)
}

// LLMBackend adjudicates a yes/no question about a frame (and, where
// helpful, its neighbor) via a vision-capable model. A nil result means the
// model's answer was inconclusive after retries.
type LLMBackend interface {
	Judge(ctx context.Context, prompt string, frame, neighbor *domain.Frame) (*bool, error)
}

// IconDetector locates a named icon within a frame's screenshot.
type IconDetector interface {
	Detect(ctx context.Context, frame *domain.Frame, iconName string) (DetectResult, error)
}

// Registry is the string-keyed checker dispatch table. It is built once per
// verification run with whatever backends (OCR, LLM, icon detector) are
// configured for that run.
type Registry struct {
	checkers     map[string]Checker
	llmAvailable bool
}

// NewRegistry builds the full set of base checkers and combinators, wiring
// in the given backends and the run's VerifierOptions (escalation order,
// force-LLM, OCR cache, LLM retry budget). Any backend may be nil; checkers
// that need one degrade to a documented hard-negative instead of panicking.
func NewRegistry(ocrBackend OCRBackend, llmBackend LLMBackend, icons IconDetector, opts domain.VerifierOptions) *Registry {
	r := &Registry{checkers: make(map[string]Checker), llmAvailable: llmBackend != nil}

	r.Register("text", CheckerFunc(checkText))
	r.Register("regex", CheckerFunc(checkRegex))
	r.Register("ui", CheckerFunc(checkUI))
	r.Register("action", CheckerFunc(checkAction))
	r.Register("xml", CheckerFunc(checkXML))
	r.Register("dynamic_match", CheckerFunc(checkDynamicMatch))
	r.Register("icons", newIconsChecker(icons))
	r.Register("ocr", newOCRChecker(ocrBackend, opts.EnableOCRCache))
	r.Register("llm", newLLMChecker(llmBackend, opts))
	r.Register("escalate", newEscalateChecker(r, opts))
	r.Register("juxtaposition", newJuxtapositionChecker(r))

	return r
}

// LLMAvailable reports whether this registry's llm checker has a real
// backend behind it, as opposed to always degrading to "not configured".
func (r *Registry) LLMAvailable() bool { return r.llmAvailable }

// Register adds or replaces a checker under the given name.
func (r *Registry) Register(name string, c Checker) {
	r.checkers[name] = c
}

// Get returns the checker registered under name, if any.
func (r *Registry) Get(name string) (Checker, bool) {
	c, ok := r.checkers[name]
	return c, ok
}

// Check dispatches spec.Checker to the matching registered Checker.
func (r *Registry) Check(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	c, ok := r.checkers[spec.Checker]
	if !ok {
		return false, domain.Evidence{}, domain.NewDomainError(domain.ErrCodeUnknownChecker, fmt.Sprintf("unknown checker %q", spec.Checker), nil)
	}
	return c.Check(ctx, frames, idx, spec)
}
