package ingest

import (
	"context"
	"time"

	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
)

// Store reads documents and records the processed transition.
type Store interface {
	Get(ctx context.Context, id string) (domdoc.Document, error)
	MarkProcessed(ctx context.Context, id string, now time.Time) error
}

// Fetcher reads a stored document fully.
type Fetcher interface {
	ReadAll(ctx context.Context, location string) ([]byte, error)
}

// Extractor turns PDF bytes into page records numbered 1..N.
type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]dompage.Record, error)
}

// PageWriter writes page vectors into a namespace.
type PageWriter interface {
	UpsertBatch(ctx context.Context, ns string, records []dompage.Record) error
}
