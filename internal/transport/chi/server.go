package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
	"github.com/edwardbudaza/pdfchat/internal/logger"
	healthuc "github.com/edwardbudaza/pdfchat/internal/usecase/health"
	ingestuc "github.com/edwardbudaza/pdfchat/internal/usecase/ingest"
)

const (
	// DefaultMaxUploadBytes caps an uploaded PDF.
	DefaultMaxUploadBytes = 32 << 20

	maxJSONBodyBytes  = 1 << 20
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20
)

// DocumentService manages uploaded documents.
type DocumentService interface {
	Upload(ctx context.Context, displayName string, data []byte) (domdoc.Document, error)
	List(ctx context.Context) ([]domdoc.Document, error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, id string) error
}

// Ingester runs the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, documentID string) (ingestuc.Result, error)
}

// Answerer runs the answer pipeline.
type Answerer interface {
	Answer(ctx context.Context, documentID, query string) (string, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the HTTP API.
type Server struct {
	documents      DocumentService
	ingest         Ingester
	answers        Answerer
	health         HealthChecker
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler

	// upload maps namespace and file name collisions to 500
	uploadErrorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents DocumentService,
	ingest Ingester,
	answers Answerer,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		documents:      documents,
		ingest:         ingest,
		answers:        answers,
		health:         health,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	// order matters: ErrIngestInProgress wraps ErrConflict
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusBadRequest, ErrorCodeDocumentNotFound),
		sentinelHandler(domain.ErrAlreadyProcessed, http.StatusBadRequest, ErrorCodeAlreadyProcessed),
		sentinelHandler(domain.ErrIngestInProgress, http.StatusConflict, ErrorCodeIngestInProgress),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, ErrorCodeConflict),
		sentinelHandler(domain.ErrFetch, http.StatusInternalServerError, ErrorCodeFetchFailed),
		sentinelHandler(domain.ErrParse, http.StatusInternalServerError, ErrorCodeParseFailed),
		sentinelHandler(domain.ErrUpstream, http.StatusInternalServerError, ErrorCodeUpstreamError),
	}
	s.uploadErrorHandlers = append([]errorHandler{
		sentinelHandler(domain.ErrConflict, http.StatusInternalServerError, ErrorCodeConflict),
	}, s.errorHandlers...)
	return s
}

// WithMaxUploadBytes sets the upload size cap.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// ListDocuments handles GET /api/my-files.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]DocumentSummary, len(docs))
	for i, d := range docs {
		items[i] = documentToSummary(d)
	}
	writeJSON(w, http.StatusOK, items)
}

// GetDocument handles GET /api/my-files/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	doc, err := s.documents.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToSummary(doc))
}

// DeleteDocument handles DELETE /api/my-files/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	if err := s.documents.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Document deleted"})
}

// UploadDocument handles POST /api/upload (multipart field "file", optional field "name").
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, s.uploadLimitMessage())
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "No file uploaded")
		return
	}

	var file types.File
	file.InitFromMultipart(headers[0])
	if file.FileSize() > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, s.uploadLimitMessage())
		return
	}

	data, err := file.Bytes()
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Unreadable file: "+err.Error())
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = file.Filename()
	}

	doc, err := s.documents.Upload(r.Context(), name, data)
	if err != nil {
		s.handleErrorWith(w, r, err, s.uploadErrorHandlers)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		Message:  "File uploaded successfully",
		Document: documentToSummary(doc),
	})
}

// ProcessDocument handles POST /api/process.
func (s *Server) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.ingest.Ingest(ctx, req.ID)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProcessResponse{
		Message: "Document processed successfully",
		Pages:   res.Pages,
		RunID:   res.RunID,
	})
}

// QueryDocument handles POST /api/query.
func (s *Server) QueryDocument(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.answers.Answer(ctx, req.ID, req.Query)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{Answer: answer})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) uploadLimitMessage() string {
	return fmt.Sprintf("File exceeds the %d MB upload limit", s.maxUploadBytes>>20)
}

// documentIDParam binds the {id} path segment as a UUID; it writes the 400 itself on failure.
func documentIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "Invalid document id: "+err.Error())
		return "", false
	}
	return id.String(), true
}

// decodeJSON reads a bounded JSON body; it writes the 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if n := usage.EmbeddingTokens(); n > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.FormatInt(n, 10))
	}
	if n := usage.CompletionTokens(); n > 0 {
		w.Header().Set("X-Completion-Tokens", strconv.FormatInt(n, 10))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message. Validation messages are built from request
// input and pass through; everything else is reduced to its sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyProcessed,
		domain.ErrIngestInProgress,
		domain.ErrConflict,
		domain.ErrFetch,
		domain.ErrParse,
		domain.ErrUpstream,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	s.handleErrorWith(w, r, err, s.errorHandlers)
}

func (s *Server) handleErrorWith(w http.ResponseWriter, r *http.Request, err error, handlers []errorHandler) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range handlers {
		if h(w, err, msg) {
			return
		}
	}
	if !errors.Is(err, context.Canceled) {
		log.Error("internal error", zap.Error(err))
	}
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
