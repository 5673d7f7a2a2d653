package document

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	"github.com/edwardbudaza/pdfchat/internal/repository/blob"
	docrepo "github.com/edwardbudaza/pdfchat/internal/repository/document"
	"github.com/edwardbudaza/pdfchat/internal/repository/lock"
	"github.com/edwardbudaza/pdfchat/internal/repository/vectormem"
	nsuc "github.com/edwardbudaza/pdfchat/internal/usecase/namespace"
)

var pdf = []byte("%PDF-1.4\n%test\n")

type fixture struct {
	svc   *Service
	store *docrepo.MemoryStore
	index *vectormem.Index
	locks *lock.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	blobs, err := blob.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := docrepo.NewMemoryStore()
	index := vectormem.New()
	locks := lock.NewMemory()
	return fixture{
		svc:   New(store, nsuc.New(index, 3), blobs, locks),
		store: store,
		index: index,
		locks: locks,
	}
}

func TestUpload_CreatesDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, "My Report.pdf", pdf)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Namespace() != "my-report" || doc.DisplayName() != "My Report.pdf" || doc.Processed() {
		t.Errorf("unexpected document: %+v", doc)
	}
	if exists, _ := f.index.Exists(ctx, "my-report"); !exists {
		t.Error("namespace not created")
	}

	got, err := f.svc.Get(ctx, doc.ID())
	if err != nil || got.SourceLocation() != doc.SourceLocation() {
		t.Fatalf("Get: %+v %v", got, err)
	}
	docs, err := f.svc.List(ctx)
	if err != nil || len(docs) != 1 {
		t.Fatalf("List: %d %v", len(docs), err)
	}
}

func TestUpload_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"empty name", "  ", pdf},
		{"empty file", "a.pdf", nil},
		{"not a pdf", "a.pdf", []byte("PK\x03\x04 zip")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(context.Background(), tt.file, tt.data)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestUpload_LongNameRejectedBeforeSideEffects(t *testing.T) {
	var allocs, puts int
	ns := &mockNamespaces{allocateFn: func(context.Context, string) (string, error) {
		allocs++
		return "ns", nil
	}}
	blobs := &mockBlobs{putFn: func(context.Context, string, string, io.Reader, int64) (string, error) {
		puts++
		return "file:///blobs/x", nil
	}}
	svc := New(&mockStore{}, ns, blobs, lock.NewMemory())

	name := strings.Repeat("a", domdoc.MaxDisplayNameLength+45) + ".pdf"
	_, err := svc.Upload(context.Background(), name, pdf)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if allocs != 0 || puts != 0 || len(ns.released) != 0 {
		t.Errorf("expected no side effects, got allocs=%d puts=%d releases=%d", allocs, puts, len(ns.released))
	}
}

func TestUpload_NamespaceConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Upload(ctx, "My Report.pdf", pdf); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Upload(ctx, "My Report!!", pdf)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if docs, _ := f.svc.List(ctx); len(docs) != 1 {
		t.Errorf("expected 1 document, got %d", len(docs))
	}
}

func TestUpload_BlobFailureReleasesNamespace(t *testing.T) {
	ns := &mockNamespaces{}
	blobs := &mockBlobs{putFn: func(context.Context, string, string, io.Reader, int64) (string, error) {
		return "", domain.NewUpstreamError("blob_store", "put", errors.New("denied"))
	}}
	store := &mockStore{createFn: func(context.Context, domdoc.Document) error {
		t.Fatal("store must not be called")
		return nil
	}}
	svc := New(store, ns, blobs, lock.NewMemory())

	_, err := svc.Upload(context.Background(), "a.pdf", pdf)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if len(ns.released) != 1 || ns.released[0] != "ns" {
		t.Errorf("namespace not released: %v", ns.released)
	}
	if len(blobs.deleted) != 0 {
		t.Errorf("nothing to delete, got %v", blobs.deleted)
	}
}

func TestUpload_StoreConflictRollsBackEverything(t *testing.T) {
	ns := &mockNamespaces{releaseErr: errors.New("index down")}
	blobs := &mockBlobs{}
	store := &mockStore{createFn: func(context.Context, domdoc.Document) error {
		return domain.ErrConflict
	}}
	svc := New(store, ns, blobs, lock.NewMemory())
	svc.newID = func() string { return "id-1" }

	_, err := svc.Upload(context.Background(), "a.pdf", pdf)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(blobs.deleted) != 1 || blobs.deleted[0] != "file:///blobs/id-1/a.pdf" {
		t.Errorf("blob not deleted: %v", blobs.deleted)
	}
	if len(ns.released) != 1 {
		t.Errorf("namespace not released: %v", ns.released)
	}
}

func TestDelete_FreesNameForReupload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, "Report.pdf", pdf)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Delete(ctx, doc.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, doc.ID()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if exists, _ := f.index.Exists(ctx, "report"); exists {
		t.Error("namespace should be dropped")
	}
	if _, err := f.svc.Upload(ctx, "Report.pdf", pdf); err != nil {
		t.Fatalf("re-upload: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_DuringIngest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Upload(ctx, "busy.pdf", pdf)
	if err != nil {
		t.Fatal(err)
	}
	release, err := f.locks.Acquire(ctx, doc.ID())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = release(ctx) }()

	if err := f.svc.Delete(ctx, doc.ID()); !errors.Is(err, domain.ErrIngestInProgress) {
		t.Fatalf("expected ErrIngestInProgress, got %v", err)
	}
	if _, err := f.svc.Get(ctx, doc.ID()); err != nil {
		t.Errorf("document must survive: %v", err)
	}
}

func TestList_StoreError(t *testing.T) {
	store := &mockStore{listFn: func(context.Context) ([]domdoc.Document, error) {
		return nil, domain.NewUpstreamError("document_store", "list", errors.New("down"))
	}}
	svc := New(store, &mockNamespaces{}, &mockBlobs{}, lock.NewMemory())

	if _, err := svc.List(context.Background()); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestUpload_Timestamps(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := New(&mockStore{}, &mockNamespaces{}, &mockBlobs{}, lock.NewMemory())
	svc.now = func() time.Time { return now }

	doc, err := svc.Upload(context.Background(), "a.pdf", pdf)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.CreatedAt().Equal(now) || !doc.UpdatedAt().Equal(now) {
		t.Errorf("timestamps: %v %v", doc.CreatedAt(), doc.UpdatedAt())
	}
}
