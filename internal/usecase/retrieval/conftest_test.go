package retrieval

import (
	"context"
	"strings"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: keywordVector(text)}, nil
}

// keywordVector is a one-hot encoding over the words A, B and C.
func keywordVector(text string) []float32 {
	vec := make([]float32, 3)
	for i, w := range []string{"A", "B", "C"} {
		if strings.Contains(text, w) {
			vec[i] = 1
		}
	}
	return vec
}

type mockPages struct {
	queryFn func(ctx context.Context, ns string, vector []float32, k int) ([]dompage.Match, error)
	calls   int
}

func (m *mockPages) Query(ctx context.Context, ns string, vector []float32, k int) ([]dompage.Match, error) {
	m.calls++
	return m.queryFn(ctx, ns, vector, k)
}

type mockCompleter struct {
	completeFn func(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error)
	requests   []domain.CompletionRequest
}

func (m *mockCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	m.requests = append(m.requests, req)
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return domain.CompletionResult{Text: "answer"}, nil
}
