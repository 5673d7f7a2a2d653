package namespace

import (
	"context"
	"errors"
	"fmt"

	"github.com/edwardbudaza/pdfchat/internal/db"
	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// store is the consumer interface for namespaces (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements usecase/namespace.Index on Redis Search.
type Repo struct {
	store store
	keys  domain.Keyspace
	hnsw  HNSWConfig
	now   func() int64
}

// New creates a namespace repository.
func New(s store, keys domain.Keyspace) *Repo {
	return &Repo{store: s, keys: keys, hnsw: HNSWConfig{M: 16, EFConstruct: 200}, now: nowMillis}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Exists reports whether the namespace metadata or its index is present.
func (r *Repo) Exists(ctx context.Context, ns string) (bool, error) {
	ok, err := r.store.Exists(ctx, r.keys.MetaKey(ns))
	if err != nil {
		return false, fmt.Errorf("check namespace %s: %w", ns, err)
	}
	if ok {
		return true, nil
	}
	ok, err = r.store.IndexExists(ctx, r.keys.IndexName(ns))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", ns, err)
	}
	return ok, nil
}

// Create stores namespace metadata then runs FT.CREATE.
// On FT.CREATE failure, rolls back the metadata via DEL.
func (r *Repo) Create(ctx context.Context, ns string, dimension int) error {
	exists, err := r.Exists(ctx, ns)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("namespace %s: %w", ns, domain.ErrConflict)
	}

	indexDef, err := buildIndex(r.keys, ns, dimension, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	metaKey := r.keys.MetaKey(ns)
	meta := metaToHash(Meta{Name: ns, Dimension: dimension, CreatedAt: r.now()})

	if err := r.store.HSetMulti(ctx, []db.HashSetItem{{Key: metaKey, Fields: meta}}); err != nil {
		return fmt.Errorf("hset namespace %s: %w", ns, err)
	}

	// FT.CREATE, rolling back the HSET on error. An existing index means a concurrent
	// create won; its metadata stays.
	if err := r.store.CreateIndex(ctx, indexDef); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("namespace %s: %w", ns, domain.ErrConflict)
		}
		cleanupErr := r.store.Del(ctx, metaKey)
		return errors.Join(err, cleanupErr)
	}

	return nil
}

// Drop removes the index together with every page hash, then the metadata.
// Dropping an absent namespace is a no-op.
func (r *Repo) Drop(ctx context.Context, ns string) error {
	err := r.store.DropIndex(ctx, r.keys.IndexName(ns), true)
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", ns, err)
	}
	if err := r.store.Del(ctx, r.keys.MetaKey(ns)); err != nil {
		return fmt.Errorf("del namespace %s: %w", ns, err)
	}
	return nil
}
