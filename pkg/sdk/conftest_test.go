package pdfchat

import (
	"context"
	"errors"
	"strings"
	"testing"

	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
)

// pipeExtractor reads "%PDF-" followed by page texts separated by '|'.
type pipeExtractor struct{}

func (pipeExtractor) Extract(_ context.Context, data []byte) ([]dompage.Record, error) {
	body := strings.TrimPrefix(string(data), "%PDF-")
	var records []dompage.Record
	for i, text := range strings.Split(body, "|") {
		records = append(records, dompage.Record{Number: i + 1, Text: text})
	}
	return records, nil
}

// letterEmbedder is a one-hot encoding over the words A, B and C.
type letterEmbedder struct {
	err error
}

func (e letterEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	if e.err != nil {
		return EmbeddingResult{}, e.err
	}
	vec := make([]float32, 3)
	for i, w := range []string{"A", "B", "C"} {
		if strings.Contains(text, w) {
			vec[i] = 1
		}
	}
	return EmbeddingResult{Embedding: vec, PromptTokens: 3, TotalTokens: 3}, nil
}

// firstPassageCompleter answers with the first context passage and records its arguments.
type firstPassageCompleter struct {
	temperature float32
	maxTokens   int
}

func (c *firstPassageCompleter) Complete(_ context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	c.temperature, c.maxTokens = temperature, maxTokens
	_, rest, ok := strings.Cut(prompt, "context below: \n\n ")
	if !ok {
		return "", errors.New("unexpected prompt")
	}
	first, _, _ := strings.Cut(rest, "\n\n===\n\n")
	first, _, _ = strings.Cut(first, " \n\nQuestion:")
	return first, nil
}

func withExtractor() Option {
	return optionFunc(func(c *clientConfig) { c.extractor = pipeExtractor{} })
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithBlobDir(t.TempDir()),
		WithEmbedder(letterEmbedder{}),
		WithVectorDimensions(3),
		withExtractor(),
	}
	c, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}
