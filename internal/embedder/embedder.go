// Package embedder generates vector embeddings for code chunks and
// queries. Providers share an LRU content cache and exponential-backoff
// retry; remote providers are driven through langchaingo clients.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dopemux/codesearch/pkg/types"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedder generates embeddings for batches of texts. Responses are
// returned in input order and carry token and cost accounting.
type Embedder interface {
	// EmbedBatch embeds the texts in one provider round trip where the
	// backend supports it.
	EmbedBatch(ctx context.Context, texts []string) ([]types.EmbeddingResponse, error)

	// Dimension returns the embedding dimension for this provider.
	Dimension() int

	// Provider returns the provider name.
	Provider() string

	// Model returns the model name.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Pricing converts estimated token counts into dollar cost.
type Pricing struct {
	USDPer1KTokens float64
}

// Cost returns the dollar cost of embedding the given token count.
func (p Pricing) Cost(tokens int) float64 {
	return float64(tokens) / 1000.0 * p.USDPer1KTokens
}

// Cache is an in-memory LRU of embeddings keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, types.EmbeddingResponse]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, types.EmbeddingResponse](maxLen)
	if err != nil {
		cache, _ = lru.New[string, types.EmbeddingResponse](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached embedding. The vector is copied so
// caller mutations never reach the cached value.
func (c *Cache) Get(hash string) (types.EmbeddingResponse, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return types.EmbeddingResponse{}, false
	}
	vec := make([]float32, len(emb.Embedding))
	copy(vec, emb.Embedding)
	emb.Embedding = vec
	// A cache hit costs nothing.
	emb.CostUSD = 0
	return emb, true
}

// Set stores an embedding; LRU eviction is automatic.
func (c *Cache) Set(hash string, emb types.EmbeddingResponse) {
	c.cache.Add(hash, emb)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes the SHA-256 content hash used as cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateBatch rejects empty batches and empty texts.
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
