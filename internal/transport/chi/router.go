package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/edwardbudaza/pdfchat/internal/metrics"
)

// NewRouter mounts the API on a chi router with recovery, request ids, client ips,
// request logging and metrics.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeRouteNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/my-files", s.ListDocuments)
		r.Get("/my-files/{id}", s.GetDocument)
		r.Delete("/my-files/{id}", s.DeleteDocument)
		r.Post("/upload", s.UploadDocument)
		r.Post("/process", s.ProcessDocument)
		r.Post("/query", s.QueryDocument)
	})

	return r
}
