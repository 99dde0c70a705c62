// Package config loads and validates the service configuration from a
// YAML file, with environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dopemux/codesearch/pkg/types"
)

// Config is the full service configuration.
type Config struct {
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	ContextGen ContextGenConfig `yaml:"context_generation"`
	Index      IndexConfig      `yaml:"index"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WorkspaceConfig identifies the code tree to index.
type WorkspaceConfig struct {
	Path            string   `yaml:"path"`
	ID              string   `yaml:"id"`
	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	Workers         int      `yaml:"workers"`
}

// EmbeddingConfig selects and prices the embedding provider.
type EmbeddingConfig struct {
	Provider       string  `yaml:"provider"` // openai, ollama, local
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"` // falls back to OPENAI_API_KEY
	BaseURL        string  `yaml:"base_url"`
	CacheSize      int     `yaml:"cache_size"`
	USDPer1KTokens float64 `yaml:"usd_per_1k_tokens"`
}

// ContextGenConfig controls LLM context snippet generation.
type ContextGenConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Model          string  `yaml:"model"`
	USDPer1KTokens float64 `yaml:"usd_per_1k_tokens"`
}

// IndexConfig tunes the vector collection.
type IndexConfig struct {
	CollectionName  string `yaml:"collection_name"`
	Dimension       int    `yaml:"dimension"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEfConstruct int    `yaml:"hnsw_ef_construct"`
	PersistPath     string `yaml:"persist_path"` // empty keeps the index in memory
}

// SearchConfig tunes retrieval defaults.
type SearchConfig struct {
	DenseWeight  float64       `yaml:"dense_weight"`
	SparseWeight float64       `yaml:"sparse_weight"`
	RRFK         float64       `yaml:"rrf_k"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with every field usable out of the box
// except the workspace path.
func Default() Config {
	return Config{
		Workspace: WorkspaceConfig{
			IncludePatterns: []string{"*.go", "*.py", "*.js", "*.jsx", "*.ts", "*.tsx"},
			ExcludePatterns: []string{"*_test.go", "*.min.js"},
			Workers:         runtime.NumCPU(),
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			CacheSize: 10000,
		},
		Index: IndexConfig{
			CollectionName:  "codesearch",
			Dimension:       384,
			HNSWM:           16,
			HNSWEfConstruct: 200,
		},
		Search: SearchConfig{
			DenseWeight:  0.7,
			SparseWeight: 0.3,
			RRFK:         60,
			CacheTTL:     time.Hour,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path, layers it over the defaults, applies
// environment fallbacks, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: read config: %v", types.ErrConfig, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse config: %v", types.ErrConfig, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Embedding.BaseURL == "" && c.Embedding.Provider == "ollama" {
		c.Embedding.BaseURL = os.Getenv("OLLAMA_HOST")
	}
}

// Validate rejects configurations that would fail mid-run. Everything
// checkable up front is checked here.
func (c *Config) Validate() error {
	if c.Workspace.Path == "" {
		return fmt.Errorf("%w: workspace.path is required", types.ErrConfig)
	}
	if len(c.Workspace.IncludePatterns) == 0 {
		return fmt.Errorf("%w: workspace.include_patterns must not be empty", types.ErrConfig)
	}
	if c.Workspace.ID == "" {
		return fmt.Errorf("%w: workspace.id is required", types.ErrConfig)
	}
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("%w: embedding.api_key is required for the openai provider", types.ErrConfig)
		}
	case "ollama", "local":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", types.ErrConfig, c.Embedding.Provider)
	}
	if c.Index.Dimension <= 0 {
		return fmt.Errorf("%w: index.dimension must be positive", types.ErrConfig)
	}
	if c.Search.DenseWeight < 0 || c.Search.SparseWeight < 0 {
		return fmt.Errorf("%w: search weights must be non-negative", types.ErrConfig)
	}
	return nil
}

// IndexingConfig converts the workspace section into the pipeline's
// configuration type.
func (c *Config) IndexingConfig() types.IndexingConfig {
	return types.IndexingConfig{
		WorkspacePath:   c.Workspace.Path,
		WorkspaceID:     c.Workspace.ID,
		IncludePatterns: c.Workspace.IncludePatterns,
		ExcludePatterns: c.Workspace.ExcludePatterns,
	}
}
