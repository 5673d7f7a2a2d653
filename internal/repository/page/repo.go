package page

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/edwardbudaza/pdfchat/internal/db"
	"github.com/edwardbudaza/pdfchat/internal/domain"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
	"github.com/edwardbudaza/pdfchat/internal/repository/namespace"
)

// store is the consumer interface for page records (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string) (int, error)
}

// Repo stores page records as hashes covered by the namespace index.
type Repo struct {
	store     store
	keys      domain.Keyspace
	dimension int
}

// New creates a page repository. dimension is the fixed embedding width of every namespace.
func New(s store, keys domain.Keyspace, dimension int) *Repo {
	return &Repo{store: s, keys: keys, dimension: dimension}
}

// UpsertBatch writes every record in one pipelined round-trip.
// Records are keyed by "page{N}", so re-running an ingest overwrites in place.
func (r *Repo) UpsertBatch(ctx context.Context, ns string, records []dompage.Record) error {
	if len(records) == 0 {
		return nil
	}

	exists, err := r.store.IndexExists(ctx, r.keys.IndexName(ns))
	if err != nil {
		return fmt.Errorf("check index %s: %w", ns, err)
	}
	if !exists {
		return fmt.Errorf("upsert into %s: %w", ns, domain.ErrNamespaceNotFound)
	}

	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		if len(rec.Embedding) != r.dimension {
			return fmt.Errorf("page %d: embedding has %d dimensions, namespace expects %d",
				rec.Number, len(rec.Embedding), r.dimension)
		}
		items[i] = db.HashSetItem{
			Key:    r.keys.PageKey(ns, rec.ID()),
			Fields: recordToHash(rec),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert pages into %s: %w", ns, err)
	}
	return nil
}

// Query returns up to k pages nearest to vector, most similar first.
func (r *Repo) Query(ctx context.Context, ns string, vector []float32, k int) ([]dompage.Match, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.keys.IndexName(ns),
		VectorField:  namespace.FieldVector,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{namespace.FieldPageNumber, namespace.FieldText},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("query %s: %w", ns, domain.ErrNamespaceNotFound)
		}
		return nil, fmt.Errorf("search knn %s: %w", ns, err)
	}

	return parseMatches(sr, r.keys.PagePrefix(ns))
}

// Count returns the number of indexed pages in the namespace.
func (r *Repo) Count(ctx context.Context, ns string) (int, error) {
	n, err := r.store.SearchCount(ctx, r.keys.IndexName(ns))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, fmt.Errorf("count %s: %w", ns, domain.ErrNamespaceNotFound)
		}
		return 0, fmt.Errorf("count %s: %w", ns, err)
	}
	return n, nil
}

func parseMatches(sr *db.SearchResult, prefix string) ([]dompage.Match, error) {
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	matches := make([]dompage.Match, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, prefix)

		number, err := strconv.Atoi(entry.Fields[namespace.FieldPageNumber])
		if err != nil {
			number, err = dompage.ParseID(id)
			if err != nil {
				return nil, fmt.Errorf("parse match %s: %w", entry.Key, err)
			}
		}

		matches = append(matches, dompage.Match{
			ID:     id,
			Number: number,
			Text:   entry.Fields[namespace.FieldText],
			Score:  entry.Score,
		})
	}
	return matches, nil
}
