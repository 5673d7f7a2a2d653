package pdfchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// Embedder converts text to a vector embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Completer generates an answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, domain.NewUpstreamError("embedding", "embed", err)
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(r.TotalTokens)
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// completerAdapter wraps public Completer to satisfy internal domain.Completer.
type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	text, err := a.inner.Complete(ctx, req.Prompt, req.Temperature, req.MaxTokens)
	if err != nil {
		return domain.CompletionResult{}, domain.NewUpstreamError("completion", "complete", err)
	}
	return domain.CompletionResult{Text: text}, nil
}

// noopCompleter returns an error on Complete (used when no completer configured).
type noopCompleter struct{}

func (noopCompleter) Complete(context.Context, domain.CompletionRequest) (domain.CompletionResult, error) {
	return domain.CompletionResult{}, fmt.Errorf("%w: %w", domain.ErrUpstream,
		errors.New("pdfchat: completer not configured (use WithCompleter)"))
}
