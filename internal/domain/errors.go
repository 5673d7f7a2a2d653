package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed request.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals an unknown document id.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyProcessed signals that a document was already ingested.
	ErrAlreadyProcessed = errors.New("document already processed")
	// ErrNamespaceNotFound signals a vector namespace missing from the index.
	ErrNamespaceNotFound = errors.New("namespace not found")
	// ErrConflict signals a uniqueness collision (namespace, file name, location).
	ErrConflict = errors.New("conflict")
	// ErrIngestInProgress signals that another ingest run holds the document.
	ErrIngestInProgress = fmt.Errorf("ingest in progress: %w", ErrConflict)
	// ErrFetch signals that the document bytes could not be retrieved.
	ErrFetch = errors.New("fetch document failed")
	// ErrParse signals that the document bytes are not a readable PDF.
	ErrParse = errors.New("parse document failed")
	// ErrUpstream signals an embedding, index, completion or store failure.
	ErrUpstream = errors.New("upstream service error")
)

// UpstreamError describes a failed call to an external collaborator.
type UpstreamError struct {
	Service   string // embedding, completion, vector_index, document_store, blob_store
	Op        string
	Retryable bool
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

// Unwrap exposes both ErrUpstream and the underlying cause.
func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

// NewUpstreamError wraps err as a terminal upstream failure.
func NewUpstreamError(service, op string, err error) error {
	return &UpstreamError{Service: service, Op: op, Err: err}
}

// NewRetryableError wraps err as an upstream failure worth retrying.
func NewRetryableError(service, op string, err error) error {
	return &UpstreamError{Service: service, Op: op, Retryable: true, Err: err}
}

// IsRetryable reports whether err is an upstream failure marked retryable.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}

// ValidationError wraps a message as ErrValidation.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}
