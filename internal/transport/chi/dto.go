package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
)

// MaxQueryLength bounds the question text.
const MaxQueryLength = 4000

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeDocumentNotFound ErrorCode = "document_not_found"
	ErrorCodeAlreadyProcessed ErrorCode = "already_processed"
	ErrorCodeConflict         ErrorCode = "conflict"
	ErrorCodeIngestInProgress ErrorCode = "ingest_in_progress"
	ErrorCodeFetchFailed      ErrorCode = "fetch_failed"
	ErrorCodeParseFailed      ErrorCode = "parse_failed"
	ErrorCodeUpstreamError    ErrorCode = "upstream_error"
	ErrorCodeInternalError    ErrorCode = "internal_error"
	ErrorCodePayloadTooLarge  ErrorCode = "payload_too_large"
	ErrorCodeMethodNotAllowed ErrorCode = "method_not_allowed"
	ErrorCodeRouteNotFound    ErrorCode = "route_not_found"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DocumentSummary is the public view of a Document.
type DocumentSummary struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	FileURL     string    `json:"fileUrl"`
	VectorIndex string    `json:"vectorIndex"`
	IsProcessed bool      `json:"isProcessed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func documentToSummary(d domdoc.Document) DocumentSummary {
	return DocumentSummary{
		ID:          d.ID(),
		FileName:    d.DisplayName(),
		FileURL:     d.SourceLocation(),
		VectorIndex: d.Namespace(),
		IsProcessed: d.Processed(),
		CreatedAt:   d.CreatedAt(),
		UpdatedAt:   d.UpdatedAt(),
	}
}

// MessageResponse acknowledges a command.
type MessageResponse struct {
	Message string `json:"message"`
}

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Message  string          `json:"message"`
	Document DocumentSummary `json:"document"`
}

// ProcessRequest names the document to ingest. The body is either {"id": "..."} or ["..."].
type ProcessRequest struct {
	ID string `json:"id"`
}

// UnmarshalJSON accepts the object form and the single-element array form.
func (p *ProcessRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		if len(ids) != 1 {
			return fmt.Errorf("expected exactly one document id, got %d", len(ids))
		}
		p.ID = ids[0]
		return nil
	}

	type plain ProcessRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var v plain
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*p = ProcessRequest(v)
	return nil
}

// Validate checks the request before any pipeline step and canonicalizes the id.
func (p *ProcessRequest) Validate() error {
	id, err := canonicalID(p.ID)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// ProcessResponse is returned by POST /api/process.
type ProcessResponse struct {
	Message string `json:"message"`
	Pages   int    `json:"pages"`
	RunID   string `json:"runId"`
}

// QueryRequest asks a question about one document.
type QueryRequest struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// Validate checks the request before any pipeline step and canonicalizes the id.
func (q *QueryRequest) Validate() error {
	id, err := canonicalID(q.ID)
	if err != nil {
		return err
	}
	q.ID = id
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return domain.ValidationError("query is required")
	}
	if len([]rune(query)) > MaxQueryLength {
		return domain.ValidationError("query too long (max %d characters)", MaxQueryLength)
	}
	return nil
}

// AnswerResponse is returned by POST /api/query.
type AnswerResponse struct {
	Answer string `json:"answer"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// canonicalID parses any UUID form and returns the lowercase hyphenated one the stores key on.
func canonicalID(id string) (string, error) {
	if id == "" {
		return "", domain.ValidationError("id is required")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", domain.ValidationError("id %q is not a valid UUID", id)
	}
	return parsed.String(), nil
}
