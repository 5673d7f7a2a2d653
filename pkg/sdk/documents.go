package pdfchat

import (
	"context"
	"fmt"
	"time"

	"github.com/edwardbudaza/pdfchat/internal/domain"
)

// Upload stores a PDF and allocates its vector namespace. The document is not yet searchable.
func (c *Client) Upload(ctx context.Context, fileName string, data []byte) (doc Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("upload", doc.ID, start, err) }()

	d, err := c.docSvc.Upload(ctx, fileName, data)
	if err != nil {
		return Document{}, fmt.Errorf("upload: %w", err)
	}
	return fromInternalDocument(d), nil
}

// List returns all documents, newest first.
func (c *Client) List(ctx context.Context) (docs []Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("list", "", start, err) }()

	list, err := c.docSvc.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs = make([]Document, len(list))
	for i, d := range list {
		docs[i] = fromInternalDocument(d)
	}
	return docs, nil
}

// Get returns one document.
func (c *Client) Get(ctx context.Context, id string) (doc Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get", id, start, err) }()

	d, err := c.docSvc.Get(ctx, id)
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return fromInternalDocument(d), nil
}

// Delete removes the document, its stored bytes and its namespace.
func (c *Client) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", id, start, err) }()

	if err := c.docSvc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Process extracts, embeds and indexes every page of the document.
// A document is processed at most once; a second call returns ErrAlreadyProcessed.
func (c *Client) Process(ctx context.Context, id string) (res ProcessResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("process", id, start, err) }()

	ctx, usage := domain.NewContextWithUsage(ctx)
	r, err := c.ingestSvc.Ingest(ctx, id)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("process: %w", err)
	}
	return ProcessResult{Pages: r.Pages, RunID: r.RunID, EmbeddingTokens: usage.EmbeddingTokens()}, nil
}

// Ask answers query from the document's most similar pages.
func (c *Client) Ask(ctx context.Context, id, query string) (answer string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", id, start, err) }()

	answer, err = c.retrievalSvc.Answer(ctx, id, query)
	if err != nil {
		return "", fmt.Errorf("ask: %w", err)
	}
	return answer, nil
}
