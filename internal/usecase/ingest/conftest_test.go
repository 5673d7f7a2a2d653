package ingest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
)

type mockFetcher struct {
	readFn func(ctx context.Context, location string) ([]byte, error)
	calls  atomic.Int32
}

func (m *mockFetcher) ReadAll(ctx context.Context, location string) ([]byte, error) {
	m.calls.Add(1)
	if m.readFn != nil {
		return m.readFn(ctx, location)
	}
	return []byte("%PDF-1.4"), nil
}

type mockExtractor struct {
	extractFn func(ctx context.Context, data []byte) ([]dompage.Record, error)
}

func (m *mockExtractor) Extract(ctx context.Context, data []byte) ([]dompage.Record, error) {
	return m.extractFn(ctx, data)
}

func pagesOf(texts ...string) *mockExtractor {
	return &mockExtractor{extractFn: func(context.Context, []byte) ([]dompage.Record, error) {
		records := make([]dompage.Record, len(texts))
		for i, t := range texts {
			records[i] = dompage.Record{Number: i + 1, Text: t}
		}
		return records, nil
	}}
}

// keywordEmbedder maps text to a one-hot vector over a fixed vocabulary.
type keywordEmbedder struct {
	vocab   []string
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)

	mu     sync.Mutex
	inputs []string
}

func newKeywordEmbedder(vocab ...string) *keywordEmbedder {
	return &keywordEmbedder{vocab: vocab}
}

func (m *keywordEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, text)
	m.mu.Unlock()

	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	vec := make([]float32, len(m.vocab))
	for i, w := range m.vocab {
		if strings.Contains(text, w) {
			vec[i] = 1
		}
	}
	return domain.EmbeddingResult{Embedding: vec, TotalTokens: 1}, nil
}

func (m *keywordEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

type mockPages struct {
	upsertFn func(ctx context.Context, ns string, records []dompage.Record) error
	batches  [][]dompage.Record
}

func (m *mockPages) UpsertBatch(ctx context.Context, ns string, records []dompage.Record) error {
	m.batches = append(m.batches, records)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, ns, records)
	}
	return nil
}
