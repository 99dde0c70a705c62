package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string // OpenAI-compatible endpoint or Ollama server URL
	Model     string
	CacheSize int
	Pricing   Pricing
}

// New creates an embedder with explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Pricing, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder from environment variables.
// Priority:
//  1. CODESEARCH_EMBEDDING_PROVIDER (openai, ollama, local)
//  2. OPENAI_API_KEY present
//  3. OLLAMA_HOST present
//  4. local fallback
func NewFromEnv() (Embedder, error) {
	cache := NewCache(10000)

	if provider := os.Getenv("CODESEARCH_EMBEDDING_PROVIDER"); provider != "" {
		switch strings.ToLower(provider) {
		case ProviderOpenAI:
			return NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"), os.Getenv("CODESEARCH_EMBEDDING_MODEL"), Pricing{}, cache)
		case ProviderOllama:
			return NewOllamaProvider(os.Getenv("OLLAMA_HOST"), os.Getenv("CODESEARCH_EMBEDDING_MODEL"), cache)
		case ProviderLocal:
			return NewLocalProvider(cache)
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAIProvider(key, os.Getenv("OPENAI_BASE_URL"), os.Getenv("CODESEARCH_EMBEDDING_MODEL"), Pricing{}, cache)
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		return NewOllamaProvider(host, os.Getenv("CODESEARCH_EMBEDDING_MODEL"), cache)
	}

	return NewLocalProvider(cache)
}

// DetectProvider reports which provider NewFromEnv would choose.
func DetectProvider() string {
	if provider := os.Getenv("CODESEARCH_EMBEDDING_PROVIDER"); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	if os.Getenv("OLLAMA_HOST") != "" {
		return ProviderOllama
	}
	return ProviderLocal
}
