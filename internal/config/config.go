package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the pdfchat API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Documents   DocumentsConfig   `yaml:"documents"`
	Blob        BlobConfig        `yaml:"blob"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Completion  CompletionConfig  `yaml:"completion"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxConnections  int `yaml:"max_connections"` // 0 = unlimited
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// VectorIndexConfig selects and configures the page vector index.
type VectorIndexConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// DocumentsConfig selects and configures the document record store.
type DocumentsConfig struct {
	Driver             string `yaml:"driver"` // postgres, sqlite, memory
	DSN                string `yaml:"dsn"`
	Migrate            bool   `yaml:"migrate"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
}

// BlobConfig selects and configures where uploaded PDFs are kept.
type BlobConfig struct {
	Provider string `yaml:"provider"` // s3, gcs, local
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"` // S3-compatible endpoint (MinIO, LocalStack)
	Dir      string `yaml:"dir"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"` // label for metrics and logs
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	Cache         bool   `yaml:"cache"` // needs vector_index.driver=redis
	CacheTTLHours int    `yaml:"cache_ttl_hours"`
}

// CompletionConfig holds text generation settings.
type CompletionConfig struct {
	APIKey      string  `yaml:"api_key"` // default: embedding.api_key
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	Concurrency int `yaml:"concurrency"`
	LockTTLSec  int `yaml:"lock_ttl_sec"`
}

// RetrievalConfig holds answer pipeline settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// UpstreamConfig bounds and retries calls to external services.
type UpstreamConfig struct {
	CallTimeoutSec int `yaml:"call_timeout_sec"`
	MaxAttempts    int `yaml:"max_attempts"`
	BaseDelayMS    int `yaml:"base_delay_ms"`
	MaxDelayMS     int `yaml:"max_delay_ms"`
}

// Load reads configuration from a YAML file by environment name (local, docker, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in data, then decodes, defaults and validates it.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// LoadDotEnv loads variables from .env files into the process environment.
// Variables already set win; missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 32
	}
	if c.VectorIndex.Driver == "" {
		c.VectorIndex.Driver = "redis"
	}
	if c.VectorIndex.ReadinessTimeout <= 0 {
		c.VectorIndex.ReadinessTimeout = 10
	}
	if c.VectorIndex.KeyPrefix == "" {
		c.VectorIndex.KeyPrefix = "pdfchat:"
	}
	if c.VectorIndex.HNSWM <= 0 {
		c.VectorIndex.HNSWM = 16
	}
	if c.VectorIndex.HNSWEFConstruct <= 0 {
		c.VectorIndex.HNSWEFConstruct = 200
	}
	if c.Documents.Driver == "" {
		c.Documents.Driver = "sqlite"
	}
	if c.Documents.Driver == "sqlite" && c.Documents.DSN == "" {
		c.Documents.DSN = "file:pdfchat.db?_pragma=busy_timeout(5000)"
	}
	if c.Blob.Provider == "" {
		c.Blob.Provider = "local"
	}
	if c.Blob.Provider == "local" && c.Blob.Dir == "" {
		c.Blob.Dir = "data/blobs"
	}
	if c.Blob.Prefix == "" {
		c.Blob.Prefix = "documents"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-ada-002"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 24 * 7
	}
	if c.Completion.APIKey == "" {
		c.Completion.APIKey = c.Embedding.APIKey
	}
	if c.Completion.BaseURL == "" {
		c.Completion.BaseURL = c.Embedding.BaseURL
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-3.5-turbo"
	}
	if c.Completion.MaxTokens <= 0 {
		c.Completion.MaxTokens = 500
	}
	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = 4
	}
	if c.Ingest.LockTTLSec <= 0 {
		c.Ingest.LockTTLSec = 600
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Upstream.CallTimeoutSec <= 0 {
		c.Upstream.CallTimeoutSec = 30
	}
	if c.Upstream.MaxAttempts <= 0 {
		c.Upstream.MaxAttempts = 3
	}
	if c.Upstream.BaseDelayMS <= 0 {
		c.Upstream.BaseDelayMS = 200
	}
	if c.Upstream.MaxDelayMS <= 0 {
		c.Upstream.MaxDelayMS = 5000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.MaxConnections < 0 {
		return fmt.Errorf("http.max_connections must not be negative, got %d", c.HTTP.MaxConnections)
	}

	switch c.VectorIndex.Driver {
	case "redis":
		if len(c.VectorIndex.Addrs) == 0 {
			return fmt.Errorf("vector_index.addrs is required for driver redis")
		}
	case "memory":
		if c.Embedding.Cache {
			return fmt.Errorf("embedding.cache requires vector_index.driver redis")
		}
	default:
		return fmt.Errorf("vector_index.driver must be \"redis\" or \"memory\", got %q", c.VectorIndex.Driver)
	}

	switch c.Documents.Driver {
	case "postgres", "sqlite":
		if strings.TrimSpace(c.Documents.DSN) == "" {
			return fmt.Errorf("documents.dsn is required for driver %s", c.Documents.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("documents.driver must be \"postgres\", \"sqlite\" or \"memory\", got %q", c.Documents.Driver)
	}

	switch c.Blob.Provider {
	case "s3", "gcs":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("blob.bucket is required for provider %s", c.Blob.Provider)
		}
	case "local":
		if c.Blob.Dir == "" {
			return fmt.Errorf("blob.dir is required for provider local")
		}
	default:
		return fmt.Errorf("blob.provider must be \"s3\", \"gcs\" or \"local\", got %q", c.Blob.Provider)
	}

	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		return fmt.Errorf("completion.temperature must be between 0 and 2, got %v", c.Completion.Temperature)
	}
	if c.Retrieval.TopK > 100 {
		return fmt.Errorf("retrieval.top_k must be at most 100, got %d", c.Retrieval.TopK)
	}
	if c.Upstream.BaseDelayMS > c.Upstream.MaxDelayMS {
		return fmt.Errorf("upstream.base_delay_ms (%d) exceeds upstream.max_delay_ms (%d)",
			c.Upstream.BaseDelayMS, c.Upstream.MaxDelayMS)
	}
	return nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (c HTTPConfig) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }

// CallTimeout returns the per-call deadline.
func (c UpstreamConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

// BaseDelay returns the first retry delay.
func (c UpstreamConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the retry delay cap.
func (c UpstreamConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
