package hybrid

import (
	"context"
	"testing"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dopemux/codesearch/internal/dense"
	"github.com/dopemux/codesearch/internal/embedder"
	"github.com/dopemux/codesearch/internal/sparse"
	"github.com/dopemux/codesearch/pkg/types"
)

type fixture struct {
	searcher *Searcher
	dense    *dense.Index
	sparse   *sparse.Index
	emb      embedder.Embedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dn := dense.NewIndex(chromem.NewDB(), dense.DefaultCollectionConfig("test", embedder.LocalDimension))
	require.NoError(t, dn.CreateCollection(context.Background()))

	sp := sparse.NewIndex()
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	return &fixture{
		searcher: NewSearcher(dn, sp, emb),
		dense:    dn,
		sparse:   sp,
		emb:      emb,
	}
}

// indexDoc loads one document into both indexes the way the pipeline
// does: content, title, and breadcrumb embedded separately.
func (f *fixture) indexDoc(t *testing.T, doc types.Document) {
	t.Helper()
	ctx := context.Background()

	responses, err := f.emb.EmbedBatch(ctx, []string{
		doc.ContextSnippet + "\n\n" + doc.RawCode,
		doc.FunctionName + " " + doc.FilePath,
		doc.WorkspaceID + "/" + doc.FilePath + "/" + doc.FunctionName,
	})
	require.NoError(t, err)

	_, err = f.dense.InsertPoint(ctx, dense.Point{
		ID:               doc.ID,
		ContentVector:    responses[0].Embedding,
		TitleVector:      responses[1].Embedding,
		BreadcrumbVector: responses[2].Embedding,
		Document:         doc,
	})
	require.NoError(t, err)
}

func sampleDocs() []types.Document {
	return []types.Document{
		{
			ID:           "doc-sum",
			FilePath:     "math/sum.go",
			FunctionName: "calculateSum",
			Language:     "go",
			RawCode:      "func calculateSum(a, b int) int { return a + b }",
			WorkspaceID:  "ws",
		},
		{
			ID:           "doc-report",
			FilePath:     "report/print.go",
			FunctionName: "printReport",
			Language:     "go",
			RawCode:      "func printReport(w io.Writer) error { return nil }",
			WorkspaceID:  "ws",
		},
	}
}

func TestHybridSearchFindsKeywordMatch(t *testing.T) {
	f := newFixture(t)
	docs := sampleDocs()
	for _, doc := range docs {
		f.indexDoc(t, doc)
	}
	f.sparse.Build(docs)

	resp, err := f.searcher.Search(context.Background(), Query{Text: "calculateSum", TopK: 5})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "doc-sum", resp.Results[0].ID)
	assert.Equal(t, "calculateSum", resp.Results[0].Document.FunctionName)
}

func TestHybridSearchEmptyQueryFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.searcher.Search(context.Background(), Query{})
	assert.ErrorIs(t, err, types.ErrMalformedInput)
}

func TestHybridSearchDegradesWithoutSparseHits(t *testing.T) {
	f := newFixture(t)
	docs := sampleDocs()
	for _, doc := range docs {
		f.indexDoc(t, doc)
	}
	// Sparse index never built: keyword retrieval returns nothing.

	resp, err := f.searcher.Search(context.Background(), Query{Text: "calculateSum", TopK: 5})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Results)
	assert.Zero(t, resp.SparseResults)
	for _, r := range resp.Results {
		assert.Equal(t, types.SourceDense, r.Source)
	}
}

func TestHybridSearchDegradesWithoutDenseHits(t *testing.T) {
	f := newFixture(t)
	docs := sampleDocs()
	f.sparse.Build(docs)
	// Dense index left empty.

	resp, err := f.searcher.Search(context.Background(), Query{Text: "calculateSum", TopK: 5})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Zero(t, resp.DenseResults)
	assert.Equal(t, "doc-sum", resp.Results[0].ID)
	assert.Equal(t, types.SourceSparse, resp.Results[0].Source)
	// Payload came from the sparse catalog.
	assert.Equal(t, "math/sum.go", resp.Results[0].Document.FilePath)
}

func TestHybridSearchMarksBothSources(t *testing.T) {
	f := newFixture(t)
	docs := sampleDocs()
	for _, doc := range docs {
		f.indexDoc(t, doc)
	}
	f.sparse.Build(docs)

	resp, err := f.searcher.Search(context.Background(), Query{Text: "calculateSum", TopK: 5})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, types.SourceBoth, resp.Results[0].Source)
}

func TestHybridSearchNoMatchesIsNotAnError(t *testing.T) {
	f := newFixture(t)

	resp, err := f.searcher.Search(context.Background(), Query{Text: "anything at all", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.TotalResults)
}

func TestHybridSearchRespectsTopK(t *testing.T) {
	f := newFixture(t)
	docs := []types.Document{
		{ID: "1", RawCode: "parse token stream", WorkspaceID: "ws", FilePath: "a.go"},
		{ID: "2", RawCode: "parse token buffer", WorkspaceID: "ws", FilePath: "b.go"},
		{ID: "3", RawCode: "parse token queue", WorkspaceID: "ws", FilePath: "c.go"},
	}
	f.sparse.Build(docs)

	resp, err := f.searcher.Search(context.Background(), Query{Text: "parse token", TopK: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestHybridSearchCaching(t *testing.T) {
	f := newFixture(t)
	docs := sampleDocs()
	for _, doc := range docs {
		f.indexDoc(t, doc)
	}
	f.sparse.Build(docs)

	q := Query{Text: "calculateSum", TopK: 5, UseCache: true, CacheTTL: time.Minute}

	first, err := f.searcher.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := f.searcher.Search(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.TotalResults, second.TotalResults)

	f.searcher.InvalidateCache()

	third, err := f.searcher.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
}

func TestExtremeWeightsChangeRanking(t *testing.T) {
	f := newFixture(t)

	// Dense and sparse deliberately disagree on the best document.
	docs := sampleDocs()
	f.indexDoc(t, docs[1])
	f.sparse.Build(docs[:1])

	ctx := context.Background()
	denseHeavy, err := f.searcher.Search(ctx, Query{Text: "calculateSum", TopK: 5, DenseWeight: 0.9, SparseWeight: 0.1})
	require.NoError(t, err)
	sparseHeavy, err := f.searcher.Search(ctx, Query{Text: "calculateSum", TopK: 5, DenseWeight: 0.1, SparseWeight: 0.9})
	require.NoError(t, err)

	require.NotEmpty(t, denseHeavy.Results)
	require.NotEmpty(t, sparseHeavy.Results)
	assert.Equal(t, "doc-report", denseHeavy.Results[0].ID)
	assert.Equal(t, "doc-sum", sparseHeavy.Results[0].ID)
}
