package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dopemux/codesearch/internal/dense"
	"github.com/dopemux/codesearch/internal/embedder"
	"github.com/dopemux/codesearch/internal/hybrid"
	"github.com/dopemux/codesearch/internal/sparse"
	"github.com/dopemux/codesearch/pkg/types"
)

type testEnv struct {
	pipeline *Pipeline
	dense    *dense.Index
	sparse   *sparse.Index
	searcher *hybrid.Searcher
}

func newTestEnv(t *testing.T, root string, include []string) *testEnv {
	t.Helper()

	dn := dense.NewIndex(chromem.NewDB(), dense.DefaultCollectionConfig("test", embedder.LocalDimension))
	require.NoError(t, dn.CreateCollection(context.Background()))

	sp := sparse.NewIndex()
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	pipe, err := New(types.IndexingConfig{
		WorkspacePath:   root,
		WorkspaceID:     "test-ws",
		IncludePatterns: include,
	}, Options{
		Embedder: emb,
		Dense:    dn,
		Sparse:   sp,
		Workers:  2,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	return &testEnv{
		pipeline: pipe,
		dense:    dn,
		sparse:   sp,
		searcher: hybrid.NewSearcher(dn, sp, emb),
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexWorkspaceEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "test.py", "def foo(): pass\n")

	env := newTestEnv(t, root, []string{"*.py"})
	ctx := context.Background()

	progress, err := env.pipeline.IndexWorkspace(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.TotalFiles)
	assert.Equal(t, 1, progress.ProcessedFiles)
	assert.Zero(t, progress.Errors)
	assert.GreaterOrEqual(t, progress.IndexedChunks, 1)
	assert.InDelta(t, 100.0, progress.PercentageComplete(), 1e-9)

	resp, err := env.searcher.Search(ctx, hybrid.Query{Text: "foo", TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "foo", resp.Results[0].Document.FunctionName)
	assert.Equal(t, "test.py", resp.Results[0].Document.FilePath)
	assert.Equal(t, "test-ws", resp.Results[0].Document.WorkspaceID)
}

func TestIndexWorkspaceToleratesBadFiles(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.py", "b.py", "c.py", "d.py"} {
		writeFile(t, root, name, "def handler(): pass\n")
	}
	// A dangling symlink passes discovery but fails on read.
	require.NoError(t, os.Symlink(filepath.Join(root, "missing-target.py"), filepath.Join(root, "e.py")))

	env := newTestEnv(t, root, []string{"*.py"})

	progress, err := env.pipeline.IndexWorkspace(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, progress.TotalFiles)
	assert.Equal(t, 5, progress.ProcessedFiles)
	assert.GreaterOrEqual(t, progress.Errors, 1)
	assert.GreaterOrEqual(t, progress.IndexedChunks, 4)
}

func TestIndexWorkspaceEmptyMatchIsSuccess(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "readme.md", "# nothing indexable\n")

	env := newTestEnv(t, root, []string{"*.xyz"})

	progress, err := env.pipeline.IndexWorkspace(context.Background())
	require.NoError(t, err)

	assert.Zero(t, progress.TotalFiles)
	assert.Zero(t, progress.ProcessedFiles)
	assert.Zero(t, progress.IndexedChunks)
	assert.InDelta(t, 100.0, progress.PercentageComplete(), 1e-9)
}

func TestIndexWorkspaceSkipsExcludedAndHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.py", "def keep(): pass\n")
	writeFile(t, root, "skip_test.py", "def skipped(): pass\n")
	writeFile(t, root, ".hidden/inside.py", "def hidden(): pass\n")
	writeFile(t, root, "node_modules/dep.py", "def dep(): pass\n")

	env := newTestEnv(t, root, []string{"*.py"})
	env.pipeline.cfg.ExcludePatterns = []string{"*_test.py"}

	progress, err := env.pipeline.IndexWorkspace(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, progress.TotalFiles)
	docs := env.pipeline.Documents()
	require.NotEmpty(t, docs)
	for _, doc := range docs {
		assert.Equal(t, "keep.py", doc.FilePath)
	}
}

func TestIndexWorkspaceSkipsBinaryFiles(t *testing.T) {
	root := t.TempDir()
	binary := append([]byte("def x(): pass"), 0x00, 0x01, 0x02)
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.py"), binary, 0o644))

	env := newTestEnv(t, root, []string{"*.py"})

	progress, err := env.pipeline.IndexWorkspace(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, progress.ProcessedFiles)
	assert.Zero(t, progress.Errors)
	assert.Zero(t, progress.IndexedChunks)
}

func TestReindexingIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "stable.py", "def stable(): pass\n")

	env := newTestEnv(t, root, []string{"*.py"})
	ctx := context.Background()

	_, err := env.pipeline.IndexWorkspace(ctx)
	require.NoError(t, err)
	countAfterFirst := env.dense.Info().VectorsCount

	_, err = env.pipeline.IndexWorkspace(ctx)
	require.NoError(t, err)

	assert.Equal(t, countAfterFirst, env.dense.Info().VectorsCount)
	assert.Equal(t, countAfterFirst, env.sparse.Len())
}

func TestIndexSingleFileUpdatesIndexes(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "live.py", "def before(): pass\n")

	env := newTestEnv(t, root, []string{"*.py"})
	ctx := context.Background()

	_, err := env.pipeline.IndexWorkspace(ctx)
	require.NoError(t, err)

	// Rewrite the file and re-index just that path.
	require.NoError(t, os.WriteFile(path, []byte("def after(): pass\n"), 0o644))
	chunks, err := env.pipeline.IndexSingleFile(ctx, path)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, chunks, 1)

	resp, err := env.searcher.Search(ctx, hybrid.Query{Text: "after", TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "after", resp.Results[0].Document.FunctionName)

	// The old symbol is gone from the sparse index.
	assert.Empty(t, env.sparse.Search("before", 5))
}

func TestIndexSingleFileRemovesDeletedFile(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "gone.py", "def vanishing(): pass\n")

	env := newTestEnv(t, root, []string{"*.py"})
	ctx := context.Background()

	_, err := env.pipeline.IndexWorkspace(ctx)
	require.NoError(t, err)
	require.Positive(t, env.dense.Info().VectorsCount)

	require.NoError(t, os.Remove(path))
	chunks, err := env.pipeline.IndexSingleFile(ctx, path)
	require.NoError(t, err)

	assert.Zero(t, chunks)
	assert.Zero(t, env.dense.Info().VectorsCount)
	assert.Zero(t, env.sparse.Len())
}

func TestCostsAccumulate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "cost.py", "def pricey(): pass\n")

	env := newTestEnv(t, root, []string{"*.py"})

	_, err := env.pipeline.IndexWorkspace(context.Background())
	require.NoError(t, err)

	costs := env.pipeline.Costs()
	// The local embedder and static generator are free.
	assert.Zero(t, costs.TotalCostUSD)
	assert.Zero(t, costs.ContextGeneration.CostUSD)
	assert.Zero(t, costs.Embeddings.CostUSD)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = New(types.IndexingConfig{}, Options{Embedder: emb})
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = New(types.IndexingConfig{
		WorkspacePath:   "/tmp",
		WorkspaceID:     "ws",
		IncludePatterns: []string{"*.go"},
	}, Options{})
	assert.ErrorIs(t, err, types.ErrConfig)
}
