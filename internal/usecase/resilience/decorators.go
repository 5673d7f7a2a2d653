package resilience

import (
	"context"
	"io"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
)

// Embedder retries a domain.Embedder.
type Embedder struct {
	inner   domain.Embedder
	retrier *Retrier
}

// NewEmbedder wraps inner with retries.
func NewEmbedder(inner domain.Embedder, r *Retrier) *Embedder {
	return &Embedder{inner: inner, retrier: r}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return Call(ctx, e.retrier, "embedding", "embed", func(ctx context.Context) (domain.EmbeddingResult, error) {
		return e.inner.Embed(ctx, text)
	})
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Completer retries a domain.Completer.
type Completer struct {
	inner   domain.Completer
	retrier *Retrier
}

// NewCompleter wraps inner with retries.
func NewCompleter(inner domain.Completer, r *Retrier) *Completer {
	return &Completer{inner: inner, retrier: r}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	return Call(ctx, c.retrier, "completion", "complete", func(ctx context.Context) (domain.CompletionResult, error) {
		return c.inner.Complete(ctx, req)
	})
}

// PageIndex is the vector index surface used by the pipelines.
type PageIndex interface {
	UpsertBatch(ctx context.Context, ns string, records []dompage.Record) error
	Query(ctx context.Context, ns string, vector []float32, k int) ([]dompage.Match, error)
}

// Index retries a PageIndex. Both operations are idempotent.
type Index struct {
	inner   PageIndex
	retrier *Retrier
}

// NewIndex wraps inner with retries.
func NewIndex(inner PageIndex, r *Retrier) *Index {
	return &Index{inner: inner, retrier: r}
}

// UpsertBatch writes all records in one call.
func (x *Index) UpsertBatch(ctx context.Context, ns string, records []dompage.Record) error {
	return x.retrier.Do(ctx, "vector_index", "upsert", func(ctx context.Context) error {
		return x.inner.UpsertBatch(ctx, ns, records)
	})
}

// Query returns the top k matches.
func (x *Index) Query(ctx context.Context, ns string, vector []float32, k int) ([]dompage.Match, error) {
	return Call(ctx, x.retrier, "vector_index", "query", func(ctx context.Context) ([]dompage.Match, error) {
		return x.inner.Query(ctx, ns, vector, k)
	})
}

// BlobOpener opens stored documents.
type BlobOpener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Blob reads a whole object with retries. Each attempt re-opens the object.
type Blob struct {
	inner   BlobOpener
	retrier *Retrier
}

// NewBlob wraps inner with retries.
func NewBlob(inner BlobOpener, r *Retrier) *Blob {
	return &Blob{inner: inner, retrier: r}
}

// ReadAll opens location and reads it fully under one attempt deadline.
func (b *Blob) ReadAll(ctx context.Context, location string) ([]byte, error) {
	return Call(ctx, b.retrier, "blob_store", "read", func(ctx context.Context) ([]byte, error) {
		rc, err := b.inner.Open(ctx, location)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	})
}
