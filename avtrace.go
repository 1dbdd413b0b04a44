// Package avtrace verifies whether a recorded mobile-app interaction trace
// satisfies a task's DAG of verification nodes. It re-exports the pieces
// of internal/domain, internal/verify and internal/loader a caller needs
// to run a verification without reaching into internal packages directly.
package avtrace

import (
	"context"

	"github.com/smilemakc/avtrace/internal/condition"
	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/loader"
	"github.com/smilemakc/avtrace/internal/verify"
)

// Frame is one recorded step of a trace: a screenshot, its accessibility
// tree, the action taken, and the reasoning that led to it.
type Frame = domain.Frame

// TaskSpec is a DAG of verification nodes plus the success criteria over
// them.
type TaskSpec = domain.TaskSpec

// NodeSpec is one verification node: a condition, its parents (Deps/Next),
// and its score.
type NodeSpec = domain.NodeSpec

// VerifyResult is the outcome of matching a TaskSpec against a trace.
type VerifyResult = domain.VerifyResult

// DecisionLog is one (node, frame) condition-check decision.
type DecisionLog = domain.DecisionLog

// VerifierOptions configures escalation order, forced LLM verification, LLM
// retry behavior, and OCR caching for a Verifier.
type VerifierOptions = domain.VerifierOptions

// DefaultVerifierOptions returns the default escalation order and retry
// policy.
func DefaultVerifierOptions() VerifierOptions {
	return domain.DefaultVerifierOptions()
}

// OCRBackend extracts text from a frame's screenshot, supplementing the
// accessibility-tree text already on Frame.XMLText.
type OCRBackend = condition.OCRBackend

// LLMBackend adjudicates a yes/no question about a frame (and optionally
// its chronological neighbor) using a vision-capable model.
type LLMBackend = condition.LLMBackend

// IconDetector answers whether a named icon is present in a frame.
type IconDetector = condition.IconDetector

// Verifier runs TaskSpecs against frame traces.
type Verifier = verify.Verifier

// NewVerifier builds a Verifier with the given condition-checker backends.
// Any backend may be nil if the task never exercises it.
func NewVerifier(ocr OCRBackend, llm LLMBackend, icons IconDetector, opts VerifierOptions) *Verifier {
	return verify.New(ocr, llm, icons, opts)
}

// LoadTask reads a TaskSpec from a JSON or YAML file.
func LoadTask(path string) (*TaskSpec, error) {
	return loader.LoadTask(path)
}

// LoadFramesFromDir reads a recorded trace directory (screenshots,
// accessibility trees, actions.json, react.json) into a frame slice.
func LoadFramesFromDir(dir string) ([]*Frame, error) {
	return loader.LoadFramesFromDir(dir)
}

// Verify is a convenience wrapper around Verifier.Verify for one-shot use.
func Verify(ctx context.Context, v *Verifier, task *TaskSpec, frames []*Frame) (*VerifyResult, error) {
	return v.Verify(ctx, task, frames)
}
