package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
	docrepo "github.com/edwardbudaza/pdfchat/internal/repository/document"
	"github.com/edwardbudaza/pdfchat/internal/repository/lock"
	"github.com/edwardbudaza/pdfchat/internal/repository/vectormem"
)

const docID = "11111111-1111-1111-1111-111111111111"

type fixture struct {
	store    *docrepo.MemoryStore
	index    *vectormem.Index
	locks    *lock.Memory
	fetcher  *mockFetcher
	embedder *keywordEmbedder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		store:    docrepo.NewMemoryStore(),
		index:    vectormem.New(),
		locks:    lock.NewMemory(),
		fetcher:  &mockFetcher{},
		embedder: newKeywordEmbedder("A", "B", "C"),
	}
	ctx := context.Background()
	doc, err := domdoc.New(docID, "abc.pdf", "file:///blobs/abc.pdf", "abc", time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.store.Create(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := f.index.Create(ctx, "abc", 3); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) service(ex Extractor) *Service {
	return New(f.store, f.fetcher, ex, f.embedder, f.index, f.locks)
}

func TestIngest_EmbedsEveryPageAndMarksProcessed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service(pagesOf("A", "B", "C")).Ingest(ctx, docID)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Pages != 3 || res.Namespace != "abc" || res.DocumentID != docID {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.RunID) != 26 {
		t.Errorf("run id %q is not a ULID", res.RunID)
	}

	count, _ := f.index.Count(ctx, "abc")
	if count != 3 {
		t.Errorf("index holds %d pages, want 3", count)
	}
	doc, _ := f.store.Get(ctx, docID)
	if !doc.Processed() {
		t.Error("document not marked processed")
	}
}

func TestIngest_SecondRunAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	svc := f.service(pagesOf("A", "B", "C"))
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, docID); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	calls := f.embedder.calls()
	before, err := f.index.Count(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}

	// a longer extraction would add pages if the guard let the run through
	_, err = f.service(pagesOf("A", "B", "C", "A", "B")).Ingest(ctx, docID)
	if !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if f.embedder.calls() != calls {
		t.Error("second run must not embed")
	}
	after, err := f.index.Count(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if before != 3 || after != before {
		t.Errorf("vector count changed: before=%d after=%d", before, after)
	}
}

func TestIngest_UnknownDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.service(pagesOf("A")).Ingest(context.Background(), "22222222-2222-2222-2222-222222222222")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.fetcher.calls.Load() != 0 || f.embedder.calls() != 0 {
		t.Error("unknown document must not fetch or embed")
	}
}

func TestIngest_ConcurrentRunsSingleWinner(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.fetcher.readFn = func(ctx context.Context, _ string) ([]byte, error) {
		<-release
		return []byte("%PDF-1.4"), nil
	}
	svc := f.service(pagesOf("A", "B"))

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		rejected  atomic.Int32
	)
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), docID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrIngestInProgress), errors.Is(err, domain.ErrAlreadyProcessed):
				rejected.Add(1)
			default:
				errs <- err
			}
		}()
	}
	// let the losers hit the lock before the winner proceeds
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if successes.Load() != 1 || rejected.Load() != 3 {
		t.Errorf("successes=%d rejected=%d, want 1 and 3", successes.Load(), rejected.Load())
	}
	if f.embedder.calls() != 2 {
		t.Errorf("embed calls = %d, want 2", f.embedder.calls())
	}
}

func TestIngest_EmbedFailureLeavesUnprocessed(t *testing.T) {
	f := newFixture(t)
	f.embedder.embedFn = func(_ context.Context, text string) (domain.EmbeddingResult, error) {
		if text == "B" {
			return domain.EmbeddingResult{}, domain.NewUpstreamError("embedding", "embed", errors.New("boom"))
		}
		return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
	}
	ctx := context.Background()

	_, err := f.service(pagesOf("A", "B", "C")).Ingest(ctx, docID)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	doc, _ := f.store.Get(ctx, docID)
	if doc.Processed() {
		t.Error("failed run must leave document unprocessed")
	}
	if count, _ := f.index.Count(ctx, "abc"); count != 0 {
		t.Errorf("index holds %d pages after failed embed, want 0", count)
	}

	// the lock is released, so a retry succeeds
	f.embedder.embedFn = nil
	if _, err := f.service(pagesOf("A", "B", "C")).Ingest(ctx, docID); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestIngest_UpsertFailureLeavesUnprocessed(t *testing.T) {
	f := newFixture(t)
	pages := &mockPages{upsertFn: func(context.Context, string, []dompage.Record) error {
		return domain.NewUpstreamError("vector_index", "upsert", errors.New("down"))
	}}
	svc := New(f.store, f.fetcher, pagesOf("A"), f.embedder, pages, f.locks)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, docID); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	doc, _ := f.store.Get(ctx, docID)
	if doc.Processed() {
		t.Error("failed upsert must leave document unprocessed")
	}
}

func TestIngest_FetchFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.readFn = func(context.Context, string) ([]byte, error) {
		return nil, domain.NewUpstreamError("blob_store", "get", errors.New("no route"))
	}

	_, err := f.service(pagesOf("A")).Ingest(context.Background(), docID)
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if f.embedder.calls() != 0 {
		t.Error("fetch failure must not embed")
	}
}

func TestIngest_ParseFailure(t *testing.T) {
	f := newFixture(t)
	ex := &mockExtractor{extractFn: func(context.Context, []byte) ([]dompage.Record, error) {
		return nil, errors.New("xref table broken")
	}}

	_, err := f.service(ex).Ingest(context.Background(), docID)
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestIngest_NoPages(t *testing.T) {
	f := newFixture(t)

	_, err := f.service(pagesOf()).Ingest(context.Background(), docID)
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestIngest_BlankPageStillIndexed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service(pagesOf("A", "", "C")).Ingest(ctx, docID)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Pages != 3 {
		t.Errorf("pages = %d, want 3", res.Pages)
	}
	for _, in := range f.embedder.inputs {
		if in == "" {
			t.Error("empty string sent to embedder")
		}
	}
}

func TestIngest_PreservesPageOrder(t *testing.T) {
	f := newFixture(t)
	pages := &mockPages{}
	texts := []string{"A1", "B2", "C3", "A4", "B5", "C6", "A7"}
	svc := New(f.store, f.fetcher, pagesOf(texts...), f.embedder, pages, f.locks).WithConcurrency(3)

	if _, err := svc.Ingest(context.Background(), docID); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(pages.batches) != 1 {
		t.Fatalf("upsert calls = %d, want one batch", len(pages.batches))
	}
	for i, rec := range pages.batches[0] {
		if rec.Number != i+1 || rec.Text != texts[i] || len(rec.Embedding) != 3 {
			t.Errorf("record %d = %+v", i, rec)
		}
	}
}

func TestIngest_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.fetcher.readFn = func(context.Context, string) ([]byte, error) {
		cancel()
		return nil, context.Canceled
	}

	_, err := f.service(pagesOf("A")).Ingest(ctx, docID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrFetch) {
		t.Error("cancellation must not be reported as a fetch failure")
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{domain.ErrNotFound, "not_found"},
		{domain.ErrAlreadyProcessed, "already_processed"},
		{domain.ErrIngestInProgress, "in_progress"},
		{domain.ErrFetch, "fetch_failed"},
		{domain.ErrParse, "parse_failed"},
		{domain.NewUpstreamError("embedding", "embed", errors.New("x")), "upstream_error"},
		{context.Canceled, "canceled"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		if got := outcomeOf(tt.err); got != tt.want {
			t.Errorf("outcomeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
