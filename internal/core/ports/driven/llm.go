package driven

import "context"

// LLMService provides language model completions for metadata enrichment.
// This is an optional service - when nil, enrichment is skipped.
type LLMService interface {
	// Complete sends a system and a user message and returns the reply text.
	Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error)

	// ModelName returns the name of the default model.
	ModelName() string

	// Close releases resources.
	Close() error
}

// CompletionOptions configures one completion.
type CompletionOptions struct {
	// Model overrides the service's default model when non-empty.
	Model string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// JSON asks the model for a JSON object response.
	JSON bool
}
