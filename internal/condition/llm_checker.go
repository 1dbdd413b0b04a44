package condition

import (
	"context"
	"time"

	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/retry"
)

// llmChecker delegates adjudication of a node condition to a vision-capable
// model, wrapping the call in its own exponential-backoff retry loop
// (independent of, and in addition to, whatever retry policy the backend
// itself may already apply) per the run's MaxLLMRetries/LLMRetryDelaySec —
// a generic safety net that applies regardless of which LLMBackend
// implementation is plugged in. A nil verdict, or an error surviving every
// retry, is treated as inconclusive rather than fatal: a node simply isn't
// matched yet, and the scan continues, except when the error is the
// caller's own context cancellation/deadline, which propagates.
type llmChecker struct {
	backend LLMBackend
	policy  retry.Policy
}

func newLLMChecker(backend LLMBackend, opts domain.VerifierOptions) Checker {
	delay := time.Duration(opts.LLMRetryDelaySec * float64(time.Second))
	return &llmChecker{
		backend: backend,
		policy: retry.Policy{
			MaxAttempts:  opts.MaxLLMRetries,
			InitialDelay: delay,
			MaxDelay:     delay * 8,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}

func (c *llmChecker) Check(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	prompt := stringParam(spec.Params, "prompt")
	if prompt == "" {
		return false, domain.Evidence{CheckerType: "llm", Reason: "no prompt configured"}, nil
	}

	if c.backend == nil {
		return false, domain.Evidence{CheckerType: "llm", Reason: "llm backend not configured"}, nil
	}

	frame := frames[idx]
	neighbor := adjudicationNeighbor(frames, frame)

	verdict, err := retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) (*bool, error) {
		return c.backend.Judge(ctx, prompt, frame, neighbor)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, domain.Evidence{CheckerType: "llm", Reason: "llm error: " + err.Error()}, ctxErr
		}
		return false, domain.Evidence{CheckerType: "llm", Reason: "inconclusive: llm error: " + err.Error()}, nil
	}
	if verdict == nil {
		return false, domain.Evidence{CheckerType: "llm", Reason: "llm verdict inconclusive"}, nil
	}
	if *verdict {
		return true, domain.Evidence{CheckerType: "llm", Reason: "llm judged yes"}, nil
	}
	return false, domain.Evidence{CheckerType: "llm", Reason: "llm judged no"}, nil
}

// adjudicationNeighbor picks the second image for the LLM's two-image
// prompt: the next frame if there is one (showing the effect of whatever
// action this frame recorded), otherwise the previous frame.
func adjudicationNeighbor(frames []*domain.Frame, frame *domain.Frame) *domain.Frame {
	if frame.HasNext() && frame.Next < len(frames) {
		return frames[frame.Next]
	}
	if frame.HasPrev() && frame.Prev >= 0 {
		return frames[frame.Prev]
	}
	return nil
}
