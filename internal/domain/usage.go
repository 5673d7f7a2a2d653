package domain

import (
	"context"
	"sync/atomic"
)

type usageKey struct{}

// Usage collects token consumption for a single HTTP request.
// The handler installs it before calling a pipeline and reads it back for response headers.
// Counters are atomic because page embeddings may run concurrently.
type Usage struct {
	embeddingTokens  atomic.Int64
	completionTokens atomic.Int64
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext returns the collector or nil.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records embedding tokens. Safe on a nil receiver.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.embeddingTokens.Add(int64(n))
	}
}

// AddCompletionTokens records completion tokens. Safe on a nil receiver.
func (u *Usage) AddCompletionTokens(n int) {
	if u != nil {
		u.completionTokens.Add(int64(n))
	}
}

// EmbeddingTokens returns the recorded embedding tokens.
func (u *Usage) EmbeddingTokens() int64 {
	if u == nil {
		return 0
	}
	return u.embeddingTokens.Load()
}

// CompletionTokens returns the recorded completion tokens.
func (u *Usage) CompletionTokens() int64 {
	if u == nil {
		return 0
	}
	return u.completionTokens.Load()
}
