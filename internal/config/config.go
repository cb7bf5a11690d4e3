// Package config loads and validates docfed configuration.
//
// Precedence, lowest to highest:
//  1. Built-in defaults
//  2. Config file (docfed.yaml in the data directory, or explicit path)
//  3. Environment variables (DOCFED_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the config file looked up in the data directory.
const ConfigFileName = "docfed.yaml"

// Config represents the complete docfed configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Quality    QualityConfig    `yaml:"quality" json:"quality"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Query      QueryConfig      `yaml:"query" json:"query"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File is the log file path. Empty means stderr only.
	File string `yaml:"file" json:"file"`
}

// IngestConfig configures the fan-out writer and batch ingester.
type IngestConfig struct {
	// DurableBackends lists the backends whose writes must succeed for a
	// document to be accepted. The checksum record is always written last
	// and is required regardless of this list.
	DurableBackends []string `yaml:"durable_backends" json:"durable_backends"`

	// MaxConcurrency bounds parallel document processing during batch ingest.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`

	// MaxFileSizeMB rejects documents larger than this before processing.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`

	// Retry settings for transient backend failures.
	RetryMaxAttempts  int           `yaml:"retry_max_attempts" json:"retry_max_attempts"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay" json:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay" json:"retry_max_delay"`
}

// ChunkingConfig configures the document splitter.
type ChunkingConfig struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// ChunkOverlap is the number of trailing characters repeated at the
	// start of the next chunk to preserve context across boundaries.
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// QualityConfig holds the additive quality-score weights.
// The shape of the heuristic is fixed; the weights are data.
type QualityConfig struct {
	Base          int `yaml:"base" json:"base"`
	Headings      int `yaml:"headings" json:"headings"`
	CodeBlocks    int `yaml:"code_blocks" json:"code_blocks"`
	Links         int `yaml:"links" json:"links"`
	Tables        int `yaml:"tables" json:"tables"`
	Lists         int `yaml:"lists" json:"lists"`
	LongDocument  int `yaml:"long_document" json:"long_document"`
	ShortDocument int `yaml:"short_document" json:"short_document"`
	Frontmatter   int `yaml:"frontmatter" json:"frontmatter"`
	// LongWordCount and ShortWordCount are the word-count thresholds for
	// the length bonuses.
	LongWordCount  int `yaml:"long_word_count" json:"long_word_count"`
	ShortWordCount int `yaml:"short_word_count" json:"short_word_count"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama" or "static".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// QueryConfig configures routing, execution, fusion, and caching.
type QueryConfig struct {
	// BackendTimeout bounds each backend call during federated execution.
	BackendTimeout time.Duration `yaml:"backend_timeout" json:"backend_timeout"`
	// MaxResults is the fused result list size.
	MaxResults int `yaml:"max_results" json:"max_results"`
	// CacheTTL is how long fused responses stay valid.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	// CacheSize is the maximum number of cached responses.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	// Debounce is how long to wait after the last change before re-ingesting.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Addr is the listen address for /metrics (e.g., ":9090").
	// Empty disables the exposition endpoint; metrics are still collected.
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Ingest: IngestConfig{
			DurableBackends:   []string{"relational"},
			MaxConcurrency:    4,
			MaxFileSizeMB:     10,
			RetryMaxAttempts:  3,
			RetryInitialDelay: 100 * time.Millisecond,
			RetryMaxDelay:     5 * time.Second,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Quality: QualityConfig{
			Base:           50,
			Headings:       10,
			CodeBlocks:     10,
			Links:          5,
			Tables:         5,
			Lists:          5,
			LongDocument:   10,
			ShortDocument:  5,
			Frontmatter:    5,
			LongWordCount:  500,
			ShortWordCount: 200,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "nomic-embed-text",
			Dimensions: 256,
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
		},
		Query: QueryConfig{
			BackendTimeout: 30 * time.Second,
			MaxResults:     10,
			CacheTTL:       time.Hour,
			CacheSize:      1024,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// defaultDataDir returns ~/.docfed, falling back to the temp directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docfed")
	}
	return filepath.Join(home, ".docfed")
}

// Load builds the effective configuration.
// path may be a config file or empty to use the default location.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, ConfigFileName)
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile merges the YAML file at path over the current values.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies DOCFED_* environment variables on top of the
// file-derived configuration. Env vars have highest precedence.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCFED_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DOCFED_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCFED_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCFED_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("DOCFED_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Query.BackendTimeout = d
		}
	}
	if v := os.Getenv("DOCFED_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Query.CacheTTL = d
		}
	}
	if v := os.Getenv("DOCFED_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Query.MaxResults = n
		}
	}
	if v := os.Getenv("DOCFED_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// knownBackends are the backend names valid in durable_backends.
var knownBackends = map[string]bool{
	"vector":     true,
	"graph":      true,
	"relational": true,
	"fulltext":   true,
	"cache":      true,
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Query.BackendTimeout <= 0 {
		return fmt.Errorf("query.backend_timeout must be positive, got %s", c.Query.BackendTimeout)
	}
	if c.Query.MaxResults <= 0 {
		return fmt.Errorf("query.max_results must be positive, got %d", c.Query.MaxResults)
	}
	if c.Query.CacheSize <= 0 {
		return fmt.Errorf("query.cache_size must be positive, got %d", c.Query.CacheSize)
	}
	if c.Ingest.MaxConcurrency <= 0 {
		return fmt.Errorf("ingest.max_concurrency must be positive, got %d", c.Ingest.MaxConcurrency)
	}
	if len(c.Ingest.DurableBackends) == 0 {
		return fmt.Errorf("ingest.durable_backends must name at least one backend")
	}
	for _, b := range c.Ingest.DurableBackends {
		if !knownBackends[b] {
			return fmt.Errorf("ingest.durable_backends: unknown backend %q", b)
		}
	}
	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be \"ollama\" or \"static\", got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	return nil
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
