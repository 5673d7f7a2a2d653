// Package vectormem is an in-process vector index for local runs and tests.
package vectormem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
)

type space struct {
	dimension int
	pages     map[string]dompage.Record
}

// Index keeps namespaces and their page vectors in memory. Queries are brute-force cosine.
type Index struct {
	mu     sync.RWMutex
	spaces map[string]*space
}

// New creates an empty index.
func New() *Index {
	return &Index{spaces: make(map[string]*space)}
}

// Exists reports whether the namespace was created.
func (x *Index) Exists(_ context.Context, ns string) (bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.spaces[ns]
	return ok, nil
}

// Create registers a namespace with a fixed dimension.
func (x *Index) Create(_ context.Context, ns string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.spaces[ns]; ok {
		return fmt.Errorf("namespace %s: %w", ns, domain.ErrConflict)
	}
	x.spaces[ns] = &space{dimension: dimension, pages: make(map[string]dompage.Record)}
	return nil
}

// Drop removes the namespace with all its pages. Dropping an absent namespace is a no-op.
func (x *Index) Drop(_ context.Context, ns string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.spaces, ns)
	return nil
}

// UpsertBatch stores records keyed by "page{N}". The batch is applied atomically.
func (x *Index) UpsertBatch(_ context.Context, ns string, records []dompage.Record) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	sp, ok := x.spaces[ns]
	if !ok {
		return fmt.Errorf("upsert into %s: %w", ns, domain.ErrNamespaceNotFound)
	}
	for _, rec := range records {
		if len(rec.Embedding) != sp.dimension {
			return fmt.Errorf("page %d: embedding has %d dimensions, namespace expects %d",
				rec.Number, len(rec.Embedding), sp.dimension)
		}
	}
	for _, rec := range records {
		rec.Embedding = append([]float32(nil), rec.Embedding...)
		sp.pages[rec.ID()] = rec
	}
	return nil
}

// Query returns up to k pages by descending cosine similarity; ties go to the lower page number.
func (x *Index) Query(_ context.Context, ns string, vector []float32, k int) ([]dompage.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	sp, ok := x.spaces[ns]
	if !ok {
		return nil, fmt.Errorf("query %s: %w", ns, domain.ErrNamespaceNotFound)
	}
	if len(vector) != sp.dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, namespace expects %d", len(vector), sp.dimension)
	}

	matches := make([]dompage.Match, 0, len(sp.pages))
	for id, rec := range sp.pages {
		matches = append(matches, dompage.Match{
			ID:     id,
			Number: rec.Number,
			Text:   rec.Text,
			Score:  max(0, cosine(vector, rec.Embedding)),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Number < matches[j].Number
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of pages in the namespace.
func (x *Index) Count(_ context.Context, ns string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	sp, ok := x.spaces[ns]
	if !ok {
		return 0, fmt.Errorf("count %s: %w", ns, domain.ErrNamespaceNotFound)
	}
	return len(sp.pages), nil
}

// Ping always succeeds.
func (x *Index) Ping(_ context.Context) error { return nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
