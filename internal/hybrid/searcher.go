package hybrid

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dopemux/codesearch/internal/dense"
	"github.com/dopemux/codesearch/internal/sparse"
	"github.com/dopemux/codesearch/pkg/types"
)

// Default weighting between the two retrieval sources. Dense retrieval
// carries most of the signal for natural-language queries; sparse keeps
// exact-identifier matches from drowning.
const (
	defaultDenseWeight  = 0.7
	defaultSparseWeight = 0.3
)

// QueryEmbedder turns query text into vectors. Satisfied by the embedder
// package's providers.
type QueryEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]types.EmbeddingResponse, error)
}

// Query contains parameters for one hybrid search.
type Query struct {
	Text    string
	Vectors *dense.QueryVectors // precomputed; Text is embedded when nil
	TopK    int
	Profile types.SearchProfile
	Filter  map[string]string // equality filter on payload fields

	DenseWeight  float64
	SparseWeight float64
	RRFK         float64

	UseCache bool
	CacheTTL time.Duration
}

// Response holds fused results plus retrieval metadata.
type Response struct {
	Results       []types.SearchResult
	TotalResults  int
	Duration      time.Duration
	CacheHit      bool
	DenseResults  int
	SparseResults int
}

// cacheEntry is a cached response with its expiration time.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher runs dense and sparse retrieval concurrently and fuses the two
// ranked lists with weighted RRF.
type Searcher struct {
	dense    *dense.Index
	sparse   *sparse.Index
	embedder QueryEmbedder

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// NewSearcher creates a hybrid searcher over the two indexes.
func NewSearcher(dn *dense.Index, sp *sparse.Index, emb QueryEmbedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](1000)
	if err != nil {
		// Unreachable with a positive size.
		panic(fmt.Sprintf("create query cache: %v", err))
	}
	return &Searcher{
		dense:    dn,
		sparse:   sp,
		embedder: emb,
		cache:    cache,
	}
}

// Search executes the hybrid query. Sparse retrieval never fails; dense
// backend errors propagate. A query matching nothing returns an empty
// result list, not an error.
func (s *Searcher) Search(ctx context.Context, q Query) (*Response, error) {
	start := time.Now()

	if err := s.normalize(&q); err != nil {
		return nil, err
	}

	if q.UseCache {
		if cached := s.checkCache(q); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	denseRes, sparseRes, err := s.retrieve(ctx, q)
	if err != nil {
		return nil, err
	}

	resp := s.fuse(q, denseRes, sparseRes)
	resp.Duration = time.Since(start)

	if q.UseCache && len(resp.Results) > 0 {
		s.storeInCache(q, resp)
	}

	return resp, nil
}

// InvalidateCache drops all cached responses. Called after re-indexing.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func (s *Searcher) normalize(q *Query) error {
	if q.Text == "" && q.Vectors == nil {
		return fmt.Errorf("%w: query text is empty", types.ErrMalformedInput)
	}
	if q.Profile.Name == "" {
		q.Profile = types.ProfileImplementation()
	}
	if q.TopK <= 0 {
		q.TopK = 10
	}
	if q.DenseWeight == 0 && q.SparseWeight == 0 {
		q.DenseWeight = defaultDenseWeight
		q.SparseWeight = defaultSparseWeight
	}
	if q.RRFK <= 0 {
		q.RRFK = DefaultRRFK
	}
	if q.CacheTTL <= 0 {
		q.CacheTTL = time.Hour
	}
	return nil
}

// retrievalResult carries one side's output across the channel.
type retrievalResult struct {
	denseHits  []types.SearchResult
	sparseHits []sparse.Scored
	err        error
}

// retrieve runs both retrieval legs concurrently.
func (s *Searcher) retrieve(ctx context.Context, q Query) ([]types.SearchResult, []sparse.Scored, error) {
	denseChan := make(chan retrievalResult, 1)
	sparseChan := make(chan retrievalResult, 1)

	go func() {
		var res retrievalResult
		res.denseHits, res.err = s.runDense(ctx, q)
		select {
		case denseChan <- res:
		case <-ctx.Done():
		}
	}()

	go func() {
		var res retrievalResult
		res.sparseHits = s.sparse.Search(q.Text, q.Profile.TopK)
		select {
		case sparseChan <- res:
		case <-ctx.Done():
		}
	}()

	var denseRes, sparseRes retrievalResult
	var denseDone, sparseDone bool
	for !denseDone || !sparseDone {
		select {
		case denseRes = <-denseChan:
			denseDone = true
		case sparseRes = <-sparseChan:
			sparseDone = true
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	if denseRes.err != nil {
		return nil, nil, denseRes.err
	}
	return denseRes.denseHits, sparseRes.sparseHits, nil
}

// runDense embeds the query when needed and searches the vector index.
func (s *Searcher) runDense(ctx context.Context, q Query) ([]types.SearchResult, error) {
	vectors := q.Vectors
	if vectors == nil {
		if s.embedder == nil {
			return nil, fmt.Errorf("%w: no query embedder configured", types.ErrConfig)
		}
		responses, err := s.embedder.EmbedBatch(ctx, []string{q.Text})
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		// One embedding serves all three vector fields; they share an
		// embedding space.
		v := responses[0].Embedding
		vectors = &dense.QueryVectors{Content: v, Title: v, Breadcrumb: v}
	}
	return s.dense.Search(ctx, *vectors, q.Profile, q.Filter)
}

// fuse merges the two ranked lists with weighted RRF and materializes
// payloads. When both sides return a document the dense payload wins; it
// carries the full metadata straight from the vector store.
func (s *Searcher) fuse(q Query, denseHits []types.SearchResult, sparseHits []sparse.Scored) *Response {
	denseRanked := make([]Ranked, len(denseHits))
	densePayloads := make(map[string]types.Document, len(denseHits))
	for i, r := range denseHits {
		denseRanked[i] = Ranked{ID: r.ID, Score: r.Score}
		densePayloads[r.ID] = r.Document
	}

	sparseRanked := make([]Ranked, len(sparseHits))
	sparseSeen := make(map[string]bool, len(sparseHits))
	for i, r := range sparseHits {
		sparseRanked[i] = Ranked{ID: r.ID, Score: r.Score}
		sparseSeen[r.ID] = true
	}

	fused := FuseWeighted(
		[][]Ranked{denseRanked, sparseRanked},
		[]float64{q.DenseWeight, q.SparseWeight},
		q.RRFK,
	)

	results := make([]types.SearchResult, 0, len(fused))
	for _, f := range fused {
		doc, fromDense := densePayloads[f.ID]
		source := types.SourceDense
		if !fromDense {
			d, ok := s.sparse.Document(f.ID)
			if !ok {
				continue
			}
			doc = d
			source = types.SourceSparse
		} else if sparseSeen[f.ID] {
			source = types.SourceBoth
		}
		results = append(results, types.SearchResult{
			ID:       f.ID,
			Score:    f.Score,
			Source:   source,
			Document: doc,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > q.TopK {
		results = results[:q.TopK]
	}

	return &Response{
		Results:       results,
		TotalResults:  len(results),
		DenseResults:  len(denseHits),
		SparseResults: len(sparseHits),
	}
}

// checkCache returns a copy of a fresh cached response, or nil.
func (s *Searcher) checkCache(q Query) *Response {
	hash := computeQueryHash(q)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	resp := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return resp
}

func (s *Searcher) storeInCache(q Query, resp *Response) {
	entry := &cacheEntry{
		response:  copyResponse(resp),
		expiresAt: time.Now().Add(q.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(q), entry)
	s.cacheMu.Unlock()
}

// copyResponse deep-copies a response so cached entries are never shared
// mutable state.
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	copy(dst.Results, src.Results)
	for i := range dst.Results {
		if m := src.Results[i].Document.Metadata; m != nil {
			mc := make(map[string]string, len(m))
			for k, v := range m {
				mc[k] = v
			}
			dst.Results[i].Document.Metadata = mc
		}
	}
	return &dst
}

// computeQueryHash builds a deterministic cache key from everything that
// can change the result set.
func computeQueryHash(q Query) [32]byte {
	var b strings.Builder
	b.WriteString(q.Text)
	fmt.Fprintf(&b, "|%s|%d|%.3f|%.3f|%.1f",
		q.Profile.Name, q.TopK, q.DenseWeight, q.SparseWeight, q.RRFK)

	if len(q.Filter) > 0 {
		keys := make([]string, 0, len(q.Filter))
		for k := range q.Filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "|%s=%s", k, q.Filter[k])
		}
	}

	return sha256.Sum256([]byte(b.String()))
}
