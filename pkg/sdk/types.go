package pdfchat

import (
	"time"

	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
)

// Document is an uploaded PDF and its ingestion state.
type Document struct {
	ID          string
	FileName    string
	Location    string
	Namespace   string
	IsProcessed bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func fromInternalDocument(d domdoc.Document) Document {
	return Document{
		ID:          d.ID(),
		FileName:    d.DisplayName(),
		Location:    d.SourceLocation(),
		Namespace:   d.Namespace(),
		IsProcessed: d.Processed(),
		CreatedAt:   d.CreatedAt(),
		UpdatedAt:   d.UpdatedAt(),
	}
}

// ProcessResult summarizes one ingestion run.
type ProcessResult struct {
	Pages           int
	RunID           string
	EmbeddingTokens int64
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // component → "ok"/"error"
}
