package pdfchat

import (
	"context"
	"errors"
	"fmt"
	"time"

	dbRedis "github.com/edwardbudaza/pdfchat/internal/db/redis"
	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	"github.com/edwardbudaza/pdfchat/internal/extract"
	"github.com/edwardbudaza/pdfchat/internal/repository/blob"
	documentrepo "github.com/edwardbudaza/pdfchat/internal/repository/document"
	"github.com/edwardbudaza/pdfchat/internal/repository/lock"
	namespacerepo "github.com/edwardbudaza/pdfchat/internal/repository/namespace"
	pagerepo "github.com/edwardbudaza/pdfchat/internal/repository/page"
	"github.com/edwardbudaza/pdfchat/internal/repository/vectormem"
	documentuc "github.com/edwardbudaza/pdfchat/internal/usecase/document"
	healthuc "github.com/edwardbudaza/pdfchat/internal/usecase/health"
	ingestuc "github.com/edwardbudaza/pdfchat/internal/usecase/ingest"
	namespaceuc "github.com/edwardbudaza/pdfchat/internal/usecase/namespace"
	"github.com/edwardbudaza/pdfchat/internal/usecase/resilience"
	retrievaluc "github.com/edwardbudaza/pdfchat/internal/usecase/retrieval"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultLockTTL          = 10 * time.Minute
)

// Internal interfaces, swapped in tests.
type documentUseCase interface {
	Upload(ctx context.Context, displayName string, data []byte) (domdoc.Document, error)
	List(ctx context.Context) ([]domdoc.Document, error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, id string) error
}

type ingestUseCase interface {
	Ingest(ctx context.Context, documentID string) (ingestuc.Result, error)
}

type retrievalUseCase interface {
	Answer(ctx context.Context, documentID, query string) (string, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type pinger interface {
	Ping(ctx context.Context) error
}

type recordStore interface {
	documentuc.Store
	ingestuc.Store
	pinger
}

// Client is the pdfchat SDK entry point.
type Client struct {
	docSvc       documentUseCase
	ingestSvc    ingestUseCase
	retrievalSvc retrievalUseCase
	healthSvc    healthUseCase
	closers      []func() error
	obs          *observer
}

// New creates a Client. The context bounds the initial Redis readiness check
// and database migrations.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		documentsDriver:  "memory",
		vectorDimensions: domain.DefaultDimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("pdfchat: embedder required (use WithEmbedder)")
	}
	if cfg.blobDir == "" {
		return nil, errors.New("pdfchat: blob directory required (use WithBlobDir)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs}
	if err := c.wire(ctx, cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) wire(ctx context.Context, cfg *clientConfig) error {
	keys := domain.NewKeyspace("")

	var (
		registry namespaceuc.Registry
		pages    resilience.PageIndex
		locks    domain.Locker
		index    pinger
	)
	if len(cfg.redisAddrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.redisAddrs, Password: cfg.redisPassword})
		if err != nil {
			return fmt.Errorf("pdfchat: create redis store: %w", err)
		}
		c.closers = append(c.closers, func() error { store.Close(); return nil })
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return fmt.Errorf("pdfchat: redis not ready: %w", err)
		}
		repo := namespacerepo.New(store, keys)
		if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
			repo = repo.WithHNSW(namespacerepo.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct})
		}
		registry = repo
		pages = pagerepo.New(store, keys, cfg.vectorDimensions)
		locks = lock.NewRedis(store, keys, defaultLockTTL)
		index = store
	} else {
		mem := vectormem.New()
		registry, pages, locks, index = mem, mem, lock.NewMemory(), mem
	}

	records, err := c.openRecords(ctx, cfg)
	if err != nil {
		return err
	}

	blobs, err := blob.NewLocalStore(cfg.blobDir)
	if err != nil {
		return fmt.Errorf("pdfchat: create blob store: %w", err)
	}

	embedder := &embedderAdapter{inner: cfg.embedder}
	var completer domain.Completer = noopCompleter{}
	if cfg.completer != nil {
		completer = &completerAdapter{inner: cfg.completer}
	}
	extractor := cfg.extractor
	if extractor == nil {
		extractor = extract.NewPDFExtractor()
	}

	ingestSvc := ingestuc.New(records, resilience.NewBlob(blobs, resilience.New(resilience.Policy{}, nil)),
		extractor, embedder, pages, locks)
	if cfg.concurrency > 0 {
		ingestSvc = ingestSvc.WithConcurrency(cfg.concurrency)
	}

	c.docSvc = documentuc.New(records, namespaceuc.New(registry, cfg.vectorDimensions), blobs, locks)
	c.ingestSvc = ingestSvc
	c.retrievalSvc = retrievaluc.New(records, embedder, pages, completer, retrievaluc.Options{TopK: cfg.topK})
	c.healthSvc = healthuc.New(index, records, nil)
	return nil
}

func (c *Client) openRecords(ctx context.Context, cfg *clientConfig) (recordStore, error) {
	if cfg.documentsDriver == "memory" {
		return documentrepo.NewMemoryStore(), nil
	}

	dialect := documentrepo.Dialect(cfg.documentsDriver)
	database, err := documentrepo.Open(ctx, dialect, cfg.documentsDSN, documentrepo.Options{})
	if err != nil {
		return nil, fmt.Errorf("pdfchat: open %s: %w", cfg.documentsDriver, err)
	}
	c.closers = append(c.closers, database.Close)
	if err := documentrepo.Migrate(ctx, database, dialect); err != nil {
		return nil, fmt.Errorf("pdfchat: migrate %s: %w", cfg.documentsDriver, err)
	}
	return documentrepo.NewSQLStore(database, dialect), nil
}

// Close releases all resources.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Health checks the vector index and the document store.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
