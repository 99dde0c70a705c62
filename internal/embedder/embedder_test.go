package embedder

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	first, err := emb.EmbedBatch(context.Background(), []string{"func main() {}"})
	require.NoError(t, err)
	second, err := emb.EmbedBatch(context.Background(), []string{"func main() {}"})
	require.NoError(t, err)

	assert.Equal(t, first[0].Embedding, second[0].Embedding)
	assert.Len(t, first[0].Embedding, LocalDimension)
}

func TestLocalProviderDistinguishesTexts(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	responses, err := emb.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.NotEqual(t, responses[0].Embedding, responses[1].Embedding)
}

func TestLocalProviderUnitLength(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	responses, err := emb.EmbedBatch(context.Background(), []string{"some code"})
	require.NoError(t, err)

	var sum float64
	for _, v := range responses[0].Embedding {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbedBatchRejectsBadInput(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = emb.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = emb.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(10)
	emb, err := NewLocalProvider(cache)
	require.NoError(t, err)

	_, err = emb.EmbedBatch(context.Background(), []string{"cached text"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Size())

	hit, ok := cache.Get(ComputeHash("cached text"))
	require.True(t, ok)
	assert.Len(t, hit.Embedding, LocalDimension)
	assert.Zero(t, hit.CostUSD)

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := NewCache(10)
	emb, err := NewLocalProvider(cache)
	require.NoError(t, err)

	_, err = emb.EmbedBatch(context.Background(), []string{"text"})
	require.NoError(t, err)

	first, ok := cache.Get(ComputeHash("text"))
	require.True(t, ok)
	first.Embedding[0] = 42

	second, _ := cache.Get(ComputeHash("text"))
	assert.NotEqual(t, float32(42), second.Embedding[0])
}

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	calls    int
}

func (f *flakyClient) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient error")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestRemoteProviderRetriesTransientFailures(t *testing.T) {
	client := &flakyClient{failures: 2}
	provider := &remoteProvider{
		client:    client,
		provider:  ProviderOpenAI,
		model:     "test-model",
		dimension: 3,
		pricing:   Pricing{USDPer1KTokens: 0.1},
		retry:     fastRetry(),
	}

	responses, err := provider.EmbedBatch(context.Background(), []string{"abcdefgh"})
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)

	require.Len(t, responses, 1)
	assert.Equal(t, []float32{1, 0, 0}, responses[0].Embedding)
	assert.Equal(t, "test-model", responses[0].Model)
	assert.Equal(t, 2, responses[0].Tokens)
	assert.InDelta(t, 0.0002, responses[0].CostUSD, 1e-9)
}

func TestRemoteProviderGivesUpAfterMaxRetries(t *testing.T) {
	provider := &remoteProvider{
		client: &flakyClient{failures: 10},
		retry:  fastRetry(),
	}

	_, err := provider.EmbedBatch(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestRemoteProviderUsesCache(t *testing.T) {
	client := &flakyClient{}
	provider := &remoteProvider{
		client: client,
		model:  "m",
		cache:  NewCache(10),
		retry:  fastRetry(),
	}

	_, err := provider.EmbedBatch(context.Background(), []string{"repeat"})
	require.NoError(t, err)
	_, err = provider.EmbedBatch(context.Background(), []string{"repeat"})
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
}

func TestPricingCost(t *testing.T) {
	p := Pricing{USDPer1KTokens: 0.02}
	assert.InDelta(t, 0.02, p.Cost(1000), 1e-9)
	assert.InDelta(t, 0.0, Pricing{}.Cost(1000), 1e-9)
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "nope"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestFactoryLocalProvider(t *testing.T) {
	emb, err := New(Config{Provider: ProviderLocal, CacheSize: 16})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())
	assert.Equal(t, LocalDimension, emb.Dimension())
	assert.NoError(t, emb.Close())
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := NormalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
