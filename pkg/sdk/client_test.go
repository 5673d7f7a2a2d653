package pdfchat

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RequiresEmbedder(t *testing.T) {
	_, err := New(context.Background(), WithBlobDir(t.TempDir()))
	if err == nil || !strings.Contains(err.Error(), "WithEmbedder") {
		t.Fatalf("expected embedder error, got %v", err)
	}
}

func TestNew_RequiresBlobDir(t *testing.T) {
	_, err := New(context.Background(), WithEmbedder(letterEmbedder{}))
	if err == nil || !strings.Contains(err.Error(), "WithBlobDir") {
		t.Fatalf("expected blob dir error, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithRedis("localhost:6379", "secret"),
		WithPostgres("postgres://db"),
		WithHNSW(8, 100),
		WithConcurrency(2),
		WithTopK(3),
		WithVectorDimensions(768),
	} {
		o.apply(cfg)
	}

	if len(cfg.redisAddrs) != 1 || cfg.redisAddrs[0] != "localhost:6379" || cfg.redisPassword != "secret" {
		t.Errorf("redis options not applied: %+v", cfg)
	}
	if cfg.documentsDriver != "postgres" || cfg.documentsDSN != "postgres://db" {
		t.Errorf("documents options not applied: %q %q", cfg.documentsDriver, cfg.documentsDSN)
	}
	if cfg.hnswM != 8 || cfg.hnswEFConstruct != 100 {
		t.Errorf("hnsw options not applied: %d %d", cfg.hnswM, cfg.hnswEFConstruct)
	}
	if cfg.concurrency != 2 || cfg.topK != 3 || cfg.vectorDimensions != 768 {
		t.Errorf("pipeline options not applied: %+v", cfg)
	}

	WithSQLite("file:x.db").apply(cfg)
	if cfg.documentsDriver != "sqlite" {
		t.Errorf("documentsDriver = %q, want sqlite", cfg.documentsDriver)
	}
}

func TestClient_UploadProcessAsk(t *testing.T) {
	completer := &firstPassageCompleter{}
	c := newTestClient(t, WithCompleter(completer))
	ctx := context.Background()

	doc, err := c.Upload(ctx, "Letters.pdf", []byte("%PDF-A|B|C"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.IsProcessed || doc.Namespace == "" || doc.FileName != "Letters.pdf" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	res, err := c.Process(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Pages != 3 || res.RunID == "" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.EmbeddingTokens != 9 {
		t.Errorf("EmbeddingTokens = %d, want 9", res.EmbeddingTokens)
	}

	if _, err := c.Process(ctx, doc.ID); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("second Process: expected ErrAlreadyProcessed, got %v", err)
	}

	answer, err := c.Ask(ctx, doc.ID, "tell me about B")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "B" {
		t.Errorf("answer = %q, want B", answer)
	}
	if completer.temperature != 0 || completer.maxTokens != 500 {
		t.Errorf("completion settings = %v/%d", completer.temperature, completer.maxTokens)
	}

	got, err := c.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.IsProcessed {
		t.Error("document must be processed")
	}
}

func TestClient_ListAndDelete(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	doc, err := c.Upload(ctx, "a.pdf", []byte("%PDF-A"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := c.Upload(ctx, "a.pdf", []byte("%PDF-A")); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate upload: expected ErrConflict, got %v", err)
	}

	docs, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != doc.ID {
		t.Fatalf("unexpected list: %+v", docs)
	}

	if err := c.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := c.Upload(ctx, "a.pdf", []byte("%PDF-A")); err != nil {
		t.Fatalf("re-upload after delete: %v", err)
	}
}

func TestClient_UploadRejectsNonPDF(t *testing.T) {
	c := newTestClient(t)
	if _, err := c.Upload(context.Background(), "notes.txt", []byte("hello")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestClient_AskWithoutCompleter(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	doc, err := c.Upload(ctx, "a.pdf", []byte("%PDF-A"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := c.Ask(ctx, doc.ID, "A?"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestClient_ProcessEmbedderFailure(t *testing.T) {
	c := newTestClient(t, WithEmbedder(letterEmbedder{err: errors.New("quota")}))
	ctx := context.Background()

	doc, err := c.Upload(ctx, "a.pdf", []byte("%PDF-A|B"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := c.Process(ctx, doc.ID); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	got, err := c.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.IsProcessed {
		t.Error("failed run must leave the document unprocessed")
	}
}

func TestClient_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "pdfchat.db")
	c := newTestClient(t, WithSQLite(dsn))
	ctx := context.Background()

	doc, err := c.Upload(ctx, "a.pdf", []byte("%PDF-A"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := c.Process(ctx, doc.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, err := c.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.IsProcessed {
		t.Error("document must be processed")
	}
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t)
	h := c.Health(context.Background())
	if h.Status != "ok" {
		t.Errorf("Status = %q, want ok", h.Status)
	}
	if h.Checks["vector_index"] != "ok" || h.Checks["document_store"] != "ok" {
		t.Errorf("unexpected checks: %v", h.Checks)
	}
	if _, ok := h.Checks["embedding"]; ok {
		t.Error("SDK health must not probe the caller's embedder")
	}
}

func TestClient_Observability(t *testing.T) {
	reg := prometheus.NewRegistry()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := newTestClient(t, WithPrometheus(reg), WithLogger(logger))
	ctx := context.Background()

	if _, err := c.List(ctx); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := c.Get(ctx, "missing"); err == nil {
		t.Fatal("expected error")
	}

	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("list", "ok")); got != 1 {
		t.Errorf("list ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.obs.metrics.operations.WithLabelValues("get", "error")); got != 1 {
		t.Errorf("get error = %v, want 1", got)
	}
	if !strings.Contains(buf.String(), "operation failed") || !strings.Contains(buf.String(), "document_id=missing") {
		t.Errorf("expected failure log, got %q", buf.String())
	}

	// A second client on the same registry reuses the collectors.
	c2 := newTestClient(t, WithPrometheus(reg))
	if c2.obs.metrics.operations != c.obs.metrics.operations {
		t.Error("expected collectors to be reused")
	}
}
