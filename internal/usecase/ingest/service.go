// Package ingest turns an uploaded document into page vectors in its namespace.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
	"github.com/edwardbudaza/pdfchat/internal/logger"
	"github.com/edwardbudaza/pdfchat/internal/metrics"
)

// DefaultConcurrency bounds parallel page embeddings.
const DefaultConcurrency = 4

// blankPageInput replaces empty page text as embedding input; providers reject empty strings.
const blankPageInput = " "

// Result describes a completed run.
type Result struct {
	DocumentID string
	Namespace  string
	Pages      int
	RunID      string
}

// Service runs ingestion.
type Service struct {
	store       Store
	fetcher     Fetcher
	extractor   Extractor
	embedder    domain.Embedder
	pages       PageWriter
	locks       domain.Locker
	concurrency int
	now         func() time.Time
}

// New creates an ingestion service with DefaultConcurrency.
func New(
	store Store,
	fetcher Fetcher,
	extractor Extractor,
	embedder domain.Embedder,
	pages PageWriter,
	locks domain.Locker,
) *Service {
	return &Service{
		store:       store,
		fetcher:     fetcher,
		extractor:   extractor,
		embedder:    embedder,
		pages:       pages,
		locks:       locks,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
}

// WithConcurrency sets the number of pages embedded in parallel. 1 embeds sequentially.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Ingest embeds every page of the document and marks it processed.
// The processed flag flips only after all page vectors are written; any failure leaves it false
// and a later run re-embeds and overwrites the same page ids.
func (s *Service) Ingest(ctx context.Context, documentID string) (Result, error) {
	start := time.Now()
	runID := ulid.Make().String()
	log := logger.FromContext(ctx).With(
		zap.String("run_id", runID),
		zap.String("document_id", documentID),
	)
	ctx = logger.ContextWithLogger(ctx, log)

	res, err := s.run(ctx, log, documentID)
	res.RunID = runID

	outcome := outcomeOf(err)
	metrics.IngestRunsTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		fields := []zap.Field{
			zap.String("outcome", outcome),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		}
		if errors.Is(err, domain.ErrUpstream) || outcome == "error" {
			log.Error("Ingest failed", fields...)
		} else {
			log.Warn("Ingest rejected", fields...)
		}
		return res, err
	}

	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	metrics.PagesIngestedTotal.Add(float64(res.Pages))
	log.Info("Ingest completed",
		zap.String("namespace", res.Namespace),
		zap.Int("pages", res.Pages),
		zap.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (s *Service) run(ctx context.Context, log *zap.Logger, documentID string) (Result, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return Result{DocumentID: documentID}, err
	}
	res := Result{DocumentID: documentID, Namespace: doc.Namespace()}

	release, err := s.locks.Acquire(ctx, documentID)
	if err != nil {
		return res, fmt.Errorf("lock document %s: %w", documentID, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Release ingest lock failed", zap.Error(err))
		}
	}()

	// another run may have finished between the first check and the lock
	doc, err = s.load(ctx, documentID)
	if err != nil {
		return res, err
	}

	data, err := s.fetcher.ReadAll(ctx, doc.SourceLocation())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		return res, fmt.Errorf("fetch %s: %w: %w", doc.SourceLocation(), domain.ErrFetch, err)
	}

	records, err := s.extractor.Extract(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if !errors.Is(err, domain.ErrParse) {
			err = fmt.Errorf("%w: %w", domain.ErrParse, err)
		}
		return res, fmt.Errorf("extract %s: %w", doc.SourceLocation(), err)
	}
	if len(records) == 0 {
		return res, fmt.Errorf("extract %s: document has no pages: %w", doc.SourceLocation(), domain.ErrParse)
	}
	log.Debug("Pages extracted", zap.Int("pages", len(records)), zap.Int("bytes", len(data)))

	embedded, err := s.embedPages(ctx, records)
	if err != nil {
		return res, err
	}

	if err := s.pages.UpsertBatch(ctx, doc.Namespace(), embedded); err != nil {
		return res, fmt.Errorf("upsert pages into %s: %w", doc.Namespace(), err)
	}

	if err := s.store.MarkProcessed(ctx, documentID, s.now()); err != nil {
		return res, fmt.Errorf("mark %s processed: %w", documentID, err)
	}

	res.Pages = len(embedded)
	return res, nil
}

func (s *Service) load(ctx context.Context, documentID string) (domdoc.Document, error) {
	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document %s: %w", documentID, err)
	}
	if doc.Processed() {
		return domdoc.Document{}, fmt.Errorf("document %s: %w", documentID, domain.ErrAlreadyProcessed)
	}
	return doc, nil
}

// embedPages embeds pages with bounded parallelism; results keep the input order.
func (s *Service) embedPages(ctx context.Context, records []dompage.Record) ([]dompage.Record, error) {
	out := make([]dompage.Record, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, rec := range records {
		g.Go(func() error {
			input := rec.Text
			if strings.TrimSpace(input) == "" {
				input = blankPageInput
			}
			emb, err := s.embedder.Embed(gctx, input)
			if err != nil {
				return fmt.Errorf("embed page %d: %w", rec.Number, err)
			}
			out[i] = rec.WithEmbedding(emb.Embedding)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return out, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, domain.ErrIngestInProgress):
		return "in_progress"
	case errors.Is(err, domain.ErrFetch):
		return "fetch_failed"
	case errors.Is(err, domain.ErrParse):
		return "parse_failed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
