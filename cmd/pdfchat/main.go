package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/edwardbudaza/pdfchat/internal/config"
	"github.com/edwardbudaza/pdfchat/internal/extract"
	logpkg "github.com/edwardbudaza/pdfchat/internal/logger"
	"github.com/edwardbudaza/pdfchat/internal/metrics"
	chiTransport "github.com/edwardbudaza/pdfchat/internal/transport/chi"
	documentuc "github.com/edwardbudaza/pdfchat/internal/usecase/document"
	healthuc "github.com/edwardbudaza/pdfchat/internal/usecase/health"
	ingestuc "github.com/edwardbudaza/pdfchat/internal/usecase/ingest"
	namespaceuc "github.com/edwardbudaza/pdfchat/internal/usecase/namespace"
	"github.com/edwardbudaza/pdfchat/internal/usecase/resilience"
	retrievaluc "github.com/edwardbudaza/pdfchat/internal/usecase/retrieval"
	"github.com/edwardbudaza/pdfchat/internal/version"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic("failed to load .env: " + err.Error())
	}

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting pdfchat API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_index", cfg.VectorIndex.Driver),
		zap.String("documents", cfg.Documents.Driver),
		zap.String("blob", cfg.Blob.Provider),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	var closers closeStack
	defer closers.closeAll(logger)

	index, err := buildIndex(ctx, cfg.VectorIndex, cfg.Embedding.Dimensions,
		time.Duration(cfg.Ingest.LockTTLSec)*time.Second, logger)
	if err != nil {
		return err
	}
	closers.push("vector_index", index.close)

	documents, err := buildDocuments(ctx, cfg.Documents, logger)
	if err != nil {
		return err
	}
	closers.push("documents", documents.close)

	blobs, err := buildBlobs(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	closers.push("blob", blobs.close)

	retrier := resilience.New(resilience.Policy{
		MaxAttempts: cfg.Upstream.MaxAttempts,
		BaseDelay:   cfg.Upstream.BaseDelay(),
		MaxDelay:    cfg.Upstream.MaxDelay(),
		CallTimeout: cfg.Upstream.CallTimeout(),
	}, logger)

	embedder := buildEmbedder(cfg.Embedding, index, retrier, logger)
	completer := buildCompleter(cfg.Completion, retrier, logger)
	logger.Info("Providers configured",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("completion_model", cfg.Completion.Model),
		zap.Bool("embedding_cache", cfg.Embedding.Cache),
	)

	pages := resilience.NewIndex(index.pages, retrier)

	namespaceSvc := namespaceuc.New(index.registry, cfg.Embedding.Dimensions)
	documentSvc := documentuc.New(documents.store, namespaceSvc, blobs.store, index.locks)
	ingestSvc := ingestuc.New(
		documents.store,
		resilience.NewBlob(blobs.store, retrier),
		extract.NewPDFExtractor(),
		embedder,
		pages,
		index.locks,
	).WithConcurrency(cfg.Ingest.Concurrency)
	retrievalSvc := retrievaluc.New(documents.store, embedder, pages, completer, retrievaluc.Options{
		TopK:        cfg.Retrieval.TopK,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
	})
	healthSvc := healthuc.New(index.pinger, documents.store, embedder)

	server := chiTransport.NewServer(documentSvc, ingestSvc, retrievalSvc, healthSvc, logger).
		WithMaxUploadBytes(cfg.HTTP.MaxUploadBytes())

	return serve(cfg.HTTP, chiTransport.NewRouter(server), logger)
}

// serve runs the HTTP server until SIGINT/SIGTERM, then drains in-flight requests.
func serve(cfg config.HTTPConfig, handler http.Handler, logger *zap.Logger) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", addr),
			zap.Int("max_connections", cfg.MaxConnections),
		)
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
