package document

import (
	"context"
	"io"

	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
)

// Store persists document records.
type Store interface {
	Create(ctx context.Context, doc domdoc.Document) error
	Get(ctx context.Context, id string) (domdoc.Document, error)
	List(ctx context.Context) ([]domdoc.Document, error)
	Delete(ctx context.Context, id string) error
}

// Namespaces allocates and releases vector namespaces.
type Namespaces interface {
	Allocate(ctx context.Context, displayName string) (string, error)
	Release(ctx context.Context, ns string) error
}

// Blobs stores the raw PDF bytes.
type Blobs interface {
	Put(ctx context.Context, documentID, fileName string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, location string) error
}
