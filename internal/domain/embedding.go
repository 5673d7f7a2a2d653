package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Completer generates text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// CompletionRequest is a single prompt with sampling settings.
type CompletionRequest struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// CompletionResult is the generated text with token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
