// Package llmadjudicate implements the LLM-backed condition checker: a
// retry-wrapped vision call that shows the model the current frame (and,
// where available, its next-or-previous neighbor) and asks it to answer a
// yes/no question about what it sees.
package llmadjudicate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/retry"
)

// Config configures an Adjudicator.
type Config struct {
	APIKey      string
	Model       string
	MaxRetries  int
	RetryDelay  float64 // seconds
	Temperature float32
}

// Adjudicator calls an OpenAI-compatible vision model to answer yes/no
// questions about frames. It implements condition.LLMBackend.
type Adjudicator struct {
	client *openai.Client
	cfg    Config
}

// New builds an Adjudicator from cfg. cfg.Model defaults to gpt-4o-mini if
// unset.
func New(cfg Config) *Adjudicator {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 1.0
	}
	return &Adjudicator{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
	}
}

type verdictResponse struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

// Judge asks the model whether prompt holds true of frame, showing it
// frame's screenshot and, if present, neighbor's screenshot as a second
// image — typically the next frame, so the model can see the effect of
// whatever action frame recorded, falling back to the previous frame when
// there is no next one.
func (a *Adjudicator) Judge(ctx context.Context, prompt string, frame, neighbor *domain.Frame) (*bool, error) {
	policy := retry.Policy{
		MaxAttempts:  a.cfg.MaxRetries,
		InitialDelay: secondsToDuration(a.cfg.RetryDelay),
		MaxDelay:     secondsToDuration(a.cfg.RetryDelay * 8),
		Multiplier:   2.0,
		Jitter:       true,
	}

	result, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (*bool, error) {
		verdict, rawErr := a.attempt(ctx, prompt, frame, neighbor)
		if rawErr != nil {
			log.Debug().Int("attempt", attempt).Str("prompt", prompt).Err(rawErr).Msg("llm adjudication attempt failed")
		}
		return verdict, rawErr
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, err
		}
		log.Warn().Str("prompt", prompt).Err(err).Msg("llm adjudication exhausted retries, treating as inconclusive")
		return nil, nil
	}
	return result, nil
}

func (a *Adjudicator) attempt(ctx context.Context, prompt string, frame, neighbor *domain.Frame) (*bool, error) {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: buildInstructions(prompt)},
	}
	if frame.ScreenshotB64 != "" {
		parts = append(parts, imagePart(frame.ScreenshotB64))
	}
	if neighbor != nil && neighbor.ScreenshotB64 != "" {
		parts = append(parts, imagePart(neighbor.ScreenshotB64))
	}

	req := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}

	verdict, err := parseVerdict(resp.Choices[0].Message.Content)
	if err == nil && verdict == nil {
		return nil, fmt.Errorf("llm response carried no yes/no verdict")
	}
	return verdict, err
}

// parseVerdict extracts the yes/no verdict from a model response with
// three fallback tiers: strict JSON, a loosely-located JSON object inside
// surrounding prose (first '{' to last '}'), and finally a bare "yes"/"no"
// word search: yes without no is true, no without yes is false, anything
// else is (nil, nil). A JSON result other than yes/no is a Terminal error:
// retrying won't fix a model that's answering a different question.
func parseVerdict(content string) (*bool, error) {
	var parsed verdictResponse

	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed.Result != "" {
		return verdictFromResult(parsed.Result)
	}

	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err == nil && parsed.Result != "" {
				return verdictFromResult(parsed.Result)
			}
		}
	}

	lower := strings.ToLower(content)
	hasYes := regexp.MustCompile(`\byes\b`).MatchString(lower)
	hasNo := regexp.MustCompile(`\bno\b`).MatchString(lower)
	switch {
	case hasYes && !hasNo:
		v := true
		return &v, nil
	case hasNo && !hasYes:
		v := false
		return &v, nil
	}

	return nil, nil
}

func verdictFromResult(result string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "yes":
		v := true
		return &v, nil
	case "no":
		v := false
		return &v, nil
	default:
		return nil, &retry.Terminal{Err: fmt.Errorf("unexpected llm result value %q", result)}
	}
}

func buildInstructions(prompt string) string {
	return fmt.Sprintf(
		"%s\n\nRespond with strict JSON only, in the form {\"result\": \"yes\"|\"no\", \"reason\": \"...\"}.",
		prompt,
	)
}

func imagePart(base64JPEG string) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL: "data:image/jpeg;base64," + base64JPEG,
		},
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
