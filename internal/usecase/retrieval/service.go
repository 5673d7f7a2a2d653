// Package retrieval answers questions about a document from its most similar pages.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
	"github.com/edwardbudaza/pdfchat/internal/logger"
	"github.com/edwardbudaza/pdfchat/internal/metrics"
)

const (
	// DefaultTopK is the number of pages placed into the prompt.
	DefaultTopK = domain.DefaultTopK
	// DefaultMaxTokens caps the generated answer.
	DefaultMaxTokens = domain.DefaultMaxAnswerTokens

	// ContextSeparator joins page texts inside the prompt.
	ContextSeparator = "\n\n===\n\n"
)

// Options tune retrieval and generation.
type Options struct {
	TopK        int
	Temperature float32
	MaxTokens   int
}

// DefaultOptions returns top 5 pages, temperature 0 and 500 answer tokens.
func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, MaxTokens: DefaultMaxTokens}
}

// Service runs the answer pipeline.
type Service struct {
	documents DocumentGetter
	embedder  domain.Embedder
	pages     PageQuerier
	completer domain.Completer
	opts      Options
}

// New creates a retrieval service. Zero option fields fall back to defaults.
func New(documents DocumentGetter, embedder domain.Embedder, pages PageQuerier, completer domain.Completer, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Service{
		documents: documents,
		embedder:  embedder,
		pages:     pages,
		completer: completer,
		opts:      opts,
	}
}

// Answer generates an answer to query from the document's most similar pages.
// The document does not need to be processed; an empty namespace yields an empty context.
func (s *Service) Answer(ctx context.Context, documentID, query string) (string, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With(zap.String("document_id", documentID))

	answer, matches, err := s.answer(ctx, documentID, query)
	if err != nil {
		metrics.AnswersTotal.WithLabelValues(outcomeOf(err)).Inc()
		return "", err
	}
	metrics.AnswersTotal.WithLabelValues("success").Inc()

	log.Info("Answer generated",
		zap.Int("context_pages", len(matches)),
		zap.Int("answer_chars", len(answer)),
		zap.Duration("duration", time.Since(start)),
	)
	return answer, nil
}

func (s *Service) answer(ctx context.Context, documentID, query string) (string, []dompage.Match, error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, domain.ValidationError("query is required")
	}

	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return "", nil, fmt.Errorf("get document %s: %w", documentID, err)
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.pages.Query(ctx, doc.Namespace(), emb.Embedding, s.opts.TopK)
	if err != nil {
		return "", nil, fmt.Errorf("query %s: %w", doc.Namespace(), err)
	}
	if len(matches) > s.opts.TopK {
		matches = matches[:s.opts.TopK]
	}

	res, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Prompt:      BuildPrompt(JoinContext(matches), query),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return "", nil, fmt.Errorf("complete answer: %w", err)
	}
	return res.Text, matches, nil
}

// JoinContext joins match texts in rank order.
func JoinContext(matches []dompage.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return strings.Join(texts, ContextSeparator)
}

// BuildPrompt renders the question-answering prompt.
func BuildPrompt(context, query string) string {
	return "Answer the question based on the context below: \n\n" + " " + context + " " +
		"\n\nQuestion: " + query + " \n\nAnswer:"
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation_failed"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
