package llm

import "context"

// Client abstracts an LLM provider used by the review checks.
// Implementations must be concurrency-safe: one review issues several
// completions from concurrent goroutines.
type Client interface {
	// Complete sends a system instruction and a user payload and returns the
	// raw model output. Checks expect a single JSON object per their schema;
	// callers parse and validate it. Implementations must respect ctx.
	Complete(ctx context.Context, system, user string) (string, error)
	// SourceName returns a short provider label to persist with outcomes
	// (e.g., "ChatGPT", "Gemini").
	SourceName() string
}
