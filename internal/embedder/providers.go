package embedder

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dopemux/codesearch/pkg/types"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"

	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	MaxBatchSize = 256
)

// langchainClient is the subset of langchaingo's embedder used here.
type langchainClient interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// remoteProvider wraps a langchaingo embedding client with caching,
// retry, and cost accounting.
type remoteProvider struct {
	client    langchainClient
	provider  string
	model     string
	dimension int
	pricing   Pricing
	cache     *Cache
	retry     RetryConfig
}

// NewOpenAIProvider creates an embedder backed by the OpenAI embeddings
// API (or any compatible endpoint when baseURL is set).
func NewOpenAIProvider(apiKey, baseURL, model string, pricing Pricing, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	client, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}

	return &remoteProvider{
		client:    client,
		provider:  ProviderOpenAI,
		model:     model,
		dimension: OpenAIDimension,
		pricing:   pricing,
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}, nil
}

// NewOllamaProvider creates an embedder backed by a local Ollama server.
func NewOllamaProvider(serverURL, model string, cache *Cache) (Embedder, error) {
	if model == "" {
		model = DefaultOllamaModel
	}

	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	client, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}

	return &remoteProvider{
		client:    client,
		provider:  ProviderOllama,
		model:     model,
		dimension: OllamaDimension,
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}, nil
}

func (r *remoteProvider) EmbedBatch(ctx context.Context, texts []string) ([]types.EmbeddingResponse, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	results := make([]types.EmbeddingResponse, len(texts))

	// Resolve cache hits first; only misses travel to the API.
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		hash := ComputeHash(text)
		if r.cache != nil {
			if emb, ok := r.cache.Get(hash); ok {
				results[i] = emb
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		vectors, err := retryWithBackoff(ctx, r.retry, func() ([][]float32, error) {
			return r.client.EmbedDocuments(ctx, missTexts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, r.retry.MaxRetries, err)
		}
		if len(vectors) != len(missTexts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(vectors), len(missTexts))
		}

		for j, vec := range vectors {
			tokens := types.EstimateTokenCount(missTexts[j])
			emb := types.EmbeddingResponse{
				Embedding: vec,
				Model:     r.model,
				Tokens:    tokens,
				CostUSD:   r.pricing.Cost(tokens),
			}
			results[missIdx[j]] = emb
			if r.cache != nil {
				r.cache.Set(ComputeHash(missTexts[j]), emb)
			}
		}
	}

	return results, nil
}

func (r *remoteProvider) Dimension() int {
	return r.dimension
}

func (r *remoteProvider) Provider() string {
	return r.provider
}

func (r *remoteProvider) Model() string {
	return r.model
}

func (r *remoteProvider) Close() error {
	return nil
}

// LocalProvider produces deterministic hash-derived vectors with no
// network dependency. Useful for tests and offline runs; the vectors
// carry no semantic signal.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a deterministic offline embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "local-embeddings",
		cache: cache,
	}, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([]types.EmbeddingResponse, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	results := make([]types.EmbeddingResponse, len(texts))
	for i, text := range texts {
		hash := ComputeHash(text)
		if l.cache != nil {
			if emb, ok := l.cache.Get(hash); ok {
				results[i] = emb
				continue
			}
		}

		emb := types.EmbeddingResponse{
			Embedding: hashVector(text),
			Model:     l.model,
			Tokens:    types.EstimateTokenCount(text),
		}
		if l.cache != nil {
			l.cache.Set(hash, emb)
		}
		results[i] = emb
	}

	return results, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashVector derives a unit-length vector from repeated hashing of the
// text, so equal texts always embed identically.
func hashVector(text string) []float32 {
	vector := make([]float32, LocalDimension)
	seed := []byte(text)
	i := 0
	for i < LocalDimension {
		sum := sha256.Sum256(seed)
		for _, b := range sum {
			if i >= LocalDimension {
				break
			}
			vector[i] = float32(b)/127.5 - 1.0
			i++
		}
		seed = sum[:]
	}
	return NormalizeVector(vector)
}

// NormalizeVector scales a vector to unit length for cosine similarity.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
