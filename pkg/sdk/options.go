package pdfchat

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edwardbudaza/pdfchat/internal/usecase/ingest"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	redisAddrs    []string
	redisPassword string

	documentsDriver string // "memory", "sqlite" or "postgres"
	documentsDSN    string

	blobDir string

	embedder  Embedder
	completer Completer
	extractor ingest.Extractor // nil = PDF extractor

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int
	concurrency      int
	topK             int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis keeps page vectors, ingest locks and the embedding cache in Redis 8+.
// Without it the client uses an in-process index that is lost on Close.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.redisAddrs = []string{addr}
		c.redisPassword = password
	})
}

// WithSQLite stores document records in an embedded SQLite database.
func WithSQLite(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.documentsDriver = "sqlite"
		c.documentsDSN = dsn
	})
}

// WithPostgres stores document records in Postgres.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.documentsDriver = "postgres"
		c.documentsDSN = dsn
	})
}

// WithBlobDir sets where uploaded PDFs are written. Required.
func WithBlobDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.blobDir = dir
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets the text generation provider. Required for Ask.
func WithCompleter(cp Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cp
	})
}

// WithVectorDimensions sets the embedding width of new namespaces.
// Defaults to 1536 (text-embedding-ada-002).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction) on Redis.
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithConcurrency sets how many pages are embedded in parallel during Process.
// Default: 4.
func WithConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = n
	})
}

// WithTopK sets how many pages feed one answer. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
