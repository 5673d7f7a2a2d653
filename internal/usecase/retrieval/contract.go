package retrieval

import (
	"context"

	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	dompage "github.com/edwardbudaza/pdfchat/internal/domain/page"
)

// DocumentGetter loads a document by id.
type DocumentGetter interface {
	Get(ctx context.Context, id string) (domdoc.Document, error)
}

// PageQuerier runs a top-k similarity query inside a namespace.
type PageQuerier interface {
	Query(ctx context.Context, ns string, vector []float32, k int) ([]dompage.Match, error)
}
