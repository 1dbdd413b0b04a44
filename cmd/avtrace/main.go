// Command avtrace runs a single verification of a task spec against a
// recorded trace directory and prints the result. Exit codes follow the
// convention 0 = success, 1 = partial success (the task didn't pass, but at
// least one node matched), 2 = failure (nothing matched, or the
// verification could not run at all).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/smilemakc/avtrace/internal/condition"
	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/icons"
	"github.com/smilemakc/avtrace/internal/llmadjudicate"
	"github.com/smilemakc/avtrace/internal/loader"
	"github.com/smilemakc/avtrace/internal/logging"
	"github.com/smilemakc/avtrace/internal/verify"
)

func main() {
	var (
		taskPath        = flag.String("task", "", "path to a task spec (.yaml/.yml/.json)")
		traceDir        = flag.String("trace", "", "path to a recorded trace directory")
		logLevel        = flag.String("log-level", "info", "zerolog level: debug, info, warn, error")
		openaiKey       = flag.String("openai-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key for the llm checker (optional)")
		openaiModel     = flag.String("openai-model", "gpt-4o-mini", "OpenAI vision model for the llm checker")
		iconDetectorURL = flag.String("icon-detector-url", "", "HTTP endpoint for the icons checker (optional)")
		jsonOutput      = flag.Bool("json", false, "print the full VerifyResult as JSON instead of a summary")
	)
	flag.Parse()

	logging.Setup(*logLevel)

	if *taskPath == "" || *traceDir == "" {
		fmt.Fprintln(os.Stderr, "usage: avtrace -task <task.yaml> -trace <trace-dir>")
		os.Exit(2)
	}

	task, err := loader.LoadTask(*taskPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading task: %v\n", err)
		os.Exit(2)
	}

	frames, err := loader.LoadFramesFromDir(*traceDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading trace: %v\n", err)
		os.Exit(2)
	}

	var ocrBackend condition.OCRBackend // no standalone OCR service wired by default; XML-derived text still applies
	var llmBackend condition.LLMBackend
	if *openaiKey != "" {
		llmBackend = llmadjudicate.New(llmadjudicate.Config{APIKey: *openaiKey, Model: *openaiModel})
	}
	var iconDetector condition.IconDetector
	if *iconDetectorURL != "" {
		iconDetector = icons.New(*iconDetectorURL)
	}

	v := verify.New(ocrBackend, llmBackend, iconDetector, domain.DefaultVerifierOptions())

	result, err := v.Verify(context.Background(), task, frames)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verification failed: %v\n", err)
		os.Exit(2)
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printSummary(task.Name, result)
	}

	if result.OK {
		os.Exit(0)
	}
	if len(result.Matched) > 0 {
		os.Exit(1)
	}
	os.Exit(2)
}

func printSummary(taskName string, result *domain.VerifyResult) {
	fmt.Printf("task: %s\n", taskName)
	fmt.Printf("ok: %v\n", result.OK)
	fmt.Printf("reason: %s\n", result.Reason)
	fmt.Printf("total_score: %d\n", result.TotalScore)
	fmt.Printf("manual_review_needed: %v\n", result.ManualReviewNeeded)
	fmt.Println("matched nodes:")
	for _, m := range result.Matched {
		fmt.Printf("  %-20s frame=%d score=%d\n", m.NodeID, m.FrameIndex, m.Score)
	}
}
