package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/edwardbudaza/pdfchat/internal/config"
	dbRedis "github.com/edwardbudaza/pdfchat/internal/db/redis"
	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	"github.com/edwardbudaza/pdfchat/internal/metrics"
	"github.com/edwardbudaza/pdfchat/internal/repository/blob"
	documentrepo "github.com/edwardbudaza/pdfchat/internal/repository/document"
	"github.com/edwardbudaza/pdfchat/internal/repository/embcache"
	"github.com/edwardbudaza/pdfchat/internal/repository/lock"
	namespacerepo "github.com/edwardbudaza/pdfchat/internal/repository/namespace"
	pagerepo "github.com/edwardbudaza/pdfchat/internal/repository/page"
	"github.com/edwardbudaza/pdfchat/internal/repository/vectormem"
	openaiTransport "github.com/edwardbudaza/pdfchat/internal/transport/openai"
	embeddinguc "github.com/edwardbudaza/pdfchat/internal/usecase/embedding"
	healthuc "github.com/edwardbudaza/pdfchat/internal/usecase/health"
	namespaceuc "github.com/edwardbudaza/pdfchat/internal/usecase/namespace"
	"github.com/edwardbudaza/pdfchat/internal/usecase/resilience"
)

// kvStore backs the embedding cache.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// indexBundle is the vector index side of the composition: namespaces, pages, locks.
type indexBundle struct {
	keys     domain.Keyspace
	registry namespaceuc.Registry
	pages    resilience.PageIndex
	locks    domain.Locker
	pinger   healthuc.Pinger
	kv       kvStore // nil unless the index is Redis
	close    func() error
}

func buildIndex(
	ctx context.Context,
	cfg config.VectorIndexConfig,
	dimension int,
	lockTTL time.Duration,
	logger *zap.Logger,
) (*indexBundle, error) {
	keys := domain.NewKeyspace(cfg.KeyPrefix)

	switch cfg.Driver {
	case "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to vector index", zap.Strings("addrs", cfg.Addrs))

		return &indexBundle{
			keys: keys,
			registry: namespacerepo.New(store, keys).WithHNSW(namespacerepo.HNSWConfig{
				M:           cfg.HNSWM,
				EFConstruct: cfg.HNSWEFConstruct,
			}),
			pages:  pagerepo.New(store, keys, dimension),
			locks:  lock.NewRedis(store, keys, lockTTL),
			pinger: store,
			kv:     store,
			close: func() error {
				store.Close()
				return nil
			},
		}, nil
	case "memory":
		index := vectormem.New()
		logger.Warn("Using in-memory vector index; pages are lost on restart")
		return &indexBundle{
			keys:     keys,
			registry: index,
			pages:    index,
			locks:    lock.NewMemory(),
			pinger:   index,
			close:    func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown vector index driver %q", cfg.Driver)
	}
}

// documentStore is everything the pipelines and health checks need from the record store.
type documentStore interface {
	Create(ctx context.Context, doc domdoc.Document) error
	Get(ctx context.Context, id string) (domdoc.Document, error)
	List(ctx context.Context) ([]domdoc.Document, error)
	MarkProcessed(ctx context.Context, id string, now time.Time) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type documentsBundle struct {
	store documentStore
	close func() error
}

func buildDocuments(ctx context.Context, cfg config.DocumentsConfig, logger *zap.Logger) (*documentsBundle, error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory document store; records are lost on restart")
		return &documentsBundle{
			store: documentrepo.NewMemoryStore(),
			close: func() error { return nil },
		}, nil
	}

	dialect := documentrepo.Dialect(cfg.Driver)
	database, err := documentrepo.Open(ctx, dialect, cfg.DSN, documentrepo.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open documents store: %w", err)
	}
	if cfg.Migrate {
		if err := documentrepo.Migrate(ctx, database, dialect); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("migrate documents store: %w", err)
		}
		logger.Info("Document store migrated", zap.String("driver", cfg.Driver))
	}

	store := documentrepo.NewSQLStore(database, dialect)
	return &documentsBundle{store: store, close: store.Close}, nil
}

// blobStore keeps uploads and reopens them for ingestion.
type blobStore interface {
	Put(ctx context.Context, documentID, fileName string, body io.Reader, size int64) (string, error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	Delete(ctx context.Context, location string) error
}

type blobsBundle struct {
	store blobStore
	close func() error
}

func buildBlobs(ctx context.Context, cfg config.BlobConfig) (*blobsBundle, error) {
	switch cfg.Provider {
	case "s3":
		store, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Prefix:   cfg.Prefix,
			Endpoint: cfg.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 store: %w", err)
		}
		return &blobsBundle{store: store, close: func() error { return nil }}, nil
	case "gcs":
		store, err := blob.NewGCSStore(ctx, blob.GCSConfig{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			return nil, fmt.Errorf("create gcs store: %w", err)
		}
		return &blobsBundle{store: store, close: store.Close}, nil
	case "local":
		store, err := blob.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("create local blob store: %w", err)
		}
		return &blobsBundle{store: store, close: func() error { return nil }}, nil
	default:
		return nil, fmt.Errorf("unknown blob provider %q", cfg.Provider)
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Retry -> Cached -> Instrumented.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	index *indexBundle,
	retrier *resilience.Retrier,
	logger *zap.Logger,
) *embeddinguc.InstrumentedEmbedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = resilience.NewEmbedder(base, retrier)
	if cfg.Cache && index.kv != nil {
		embedder = embcache.New(embedder, index.kv, index.keys, cfg.Model, metrics.EmbeddingCacheTotal, logger).
			WithTTL(time.Duration(cfg.CacheTTLHours) * time.Hour)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)
}

func buildCompleter(cfg config.CompletionConfig, retrier *resilience.Retrier, logger *zap.Logger) domain.Completer {
	base := openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Provider: "openai",
		Logger:   logger,
	})
	return resilience.NewCompleter(base, retrier)
}

// closeStack releases clients in reverse order of creation.
type closeStack []namedCloser

type namedCloser struct {
	name string
	fn   func() error
}

func (s *closeStack) push(name string, fn func() error) {
	*s = append(*s, namedCloser{name: name, fn: fn})
}

func (s closeStack) closeAll(logger *zap.Logger) {
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].fn(); err != nil {
			logger.Warn("Failed to close client", zap.String("client", s[i].name), zap.Error(err))
		}
	}
}
