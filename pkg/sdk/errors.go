package pdfchat

import "github.com/edwardbudaza/pdfchat/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation       = domain.ErrValidation
	ErrNotFound         = domain.ErrNotFound
	ErrAlreadyProcessed = domain.ErrAlreadyProcessed
	ErrConflict         = domain.ErrConflict
	ErrIngestInProgress = domain.ErrIngestInProgress
	ErrFetch            = domain.ErrFetch
	ErrParse            = domain.ErrParse
	ErrUpstream         = domain.ErrUpstream
)
