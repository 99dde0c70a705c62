// Package pipeline orchestrates workspace indexing: discover files,
// chunk them, generate context snippets, embed, and load both the dense
// and sparse indexes. One bad file never aborts a run; backend failures
// do.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dopemux/codesearch/internal/chunker"
	"github.com/dopemux/codesearch/internal/contextgen"
	"github.com/dopemux/codesearch/internal/dense"
	"github.com/dopemux/codesearch/internal/embedder"
	"github.com/dopemux/codesearch/internal/sparse"
	"github.com/dopemux/codesearch/pkg/types"
)

// pointNamespace seeds deterministic point ids so re-indexing an
// unchanged chunk overwrites its previous entry.
var pointNamespace = uuid.MustParse("b0c7a8e2-4f1d-4a3b-9c5e-7d2f6a8b1c3d")

// Options wires the pipeline's collaborators.
type Options struct {
	Chunker    *chunker.Chunker
	ContextGen contextgen.Generator
	Embedder   embedder.Embedder
	Dense      *dense.Index
	Sparse     *sparse.Index
	Workers    int // defaults to runtime.NumCPU()
	Logger     zerolog.Logger
}

// CostSummary reports accumulated indexing spend.
type CostSummary struct {
	ContextGeneration CostLine `json:"context_generation"`
	Embeddings        CostLine `json:"embeddings"`
	TotalCostUSD      float64  `json:"total_cost_usd"`
}

// CostLine is one cost category.
type CostLine struct {
	CostUSD float64 `json:"cost_usd"`
}

// Pipeline coordinates a full indexing run over one workspace.
type Pipeline struct {
	cfg        types.IndexingConfig
	chunker    *chunker.Chunker
	contextgen contextgen.Generator
	embedder   embedder.Embedder
	dense      *dense.Index
	sparse     *sparse.Index
	workers    int
	log        zerolog.Logger

	progress *types.IndexingProgress

	// catalog holds every indexed document keyed by relative file path;
	// the sparse index is rebuilt wholesale from it after each run.
	mu      sync.Mutex
	catalog map[string][]types.Document
}

// New validates the configuration eagerly and returns a ready pipeline.
func New(cfg types.IndexingConfig, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Chunker == nil {
		opts.Chunker = chunker.New()
	}
	if opts.ContextGen == nil {
		opts.ContextGen = contextgen.NewStatic()
	}
	if opts.Embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", types.ErrConfig)
	}
	if opts.Dense == nil || opts.Sparse == nil {
		return nil, fmt.Errorf("%w: both indexes are required", types.ErrConfig)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	return &Pipeline{
		cfg:        cfg,
		chunker:    opts.Chunker,
		contextgen: opts.ContextGen,
		embedder:   opts.Embedder,
		dense:      opts.Dense,
		sparse:     opts.Sparse,
		workers:    opts.Workers,
		log:        opts.Logger,
		progress:   types.NewIndexingProgress(),
		catalog:    make(map[string][]types.Document),
	}, nil
}

// IndexWorkspace runs the full pipeline over the configured workspace.
// Per-file failures are counted and logged but do not stop the run;
// backend failures propagate. A workspace matching no files completes
// successfully with zeroed counters.
func (p *Pipeline) IndexWorkspace(ctx context.Context) (types.IndexingProgress, error) {
	files, err := p.discoverFiles()
	if err != nil {
		return p.progress.Snapshot(), fmt.Errorf("discover files: %w", err)
	}

	p.progress.SetTotalFiles(len(files))
	p.log.Info().
		Str("workspace", p.cfg.WorkspaceID).
		Int("files", len(files)).
		Msg("indexing workspace")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, file := range files {
		g.Go(func() error {
			docs, err := p.processFile(gctx, file)
			if err != nil {
				if errors.Is(err, types.ErrBackendUnavailable) || gctx.Err() != nil {
					return err
				}
				p.log.Warn().Err(err).Str("file", file).Msg("skipping file")
				p.progress.FileProcessed(0, 0, true)
				return nil
			}
			p.progress.FileProcessed(len(docs), len(docs), false)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return p.progress.Snapshot(), err
	}

	p.rebuildSparse()

	snap := p.progress.Snapshot()
	p.log.Info().
		Int("processed", snap.ProcessedFiles).
		Int("chunks", snap.IndexedChunks).
		Int("errors", snap.Errors).
		Float64("cost_usd", snap.TotalCostUSD).
		Msg("workspace indexed")
	return snap, nil
}

// IndexSingleFile re-indexes one file: stale entries for the path are
// removed first, so edits and deletions converge. Returns the number of
// chunks indexed.
func (p *Pipeline) IndexSingleFile(ctx context.Context, path string) (int, error) {
	rel, err := p.relPath(path)
	if err != nil {
		return 0, err
	}

	if err := p.dense.DeleteByFile(ctx, p.cfg.WorkspaceID, rel); err != nil {
		return 0, err
	}
	p.mu.Lock()
	delete(p.catalog, rel)
	p.mu.Unlock()

	if _, statErr := os.Stat(path); statErr != nil {
		// File removed: deletion above already cleaned up.
		p.rebuildSparse()
		return 0, nil
	}

	docs, err := p.processFile(ctx, path)
	if err != nil {
		return 0, err
	}
	p.rebuildSparse()
	return len(docs), nil
}

// Progress returns a snapshot of the current counters.
func (p *Pipeline) Progress() types.IndexingProgress {
	return p.progress.Snapshot()
}

// Costs summarizes accumulated spend across the pipeline's lifetime.
func (p *Pipeline) Costs() CostSummary {
	snap := p.progress.Snapshot()
	return CostSummary{
		ContextGeneration: CostLine{CostUSD: snap.ContextCostUSD},
		Embeddings:        CostLine{CostUSD: snap.EmbeddingCostUSD},
		TotalCostUSD:      snap.TotalCostUSD,
	}
}

// Documents returns every indexed document, ordered by file path. Used
// for introspection and tests.
func (p *Pipeline) Documents() []types.Document {
	p.mu.Lock()
	defer p.mu.Unlock()

	paths := make([]string, 0, len(p.catalog))
	for path := range p.catalog {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var docs []types.Document
	for _, path := range paths {
		docs = append(docs, p.catalog[path]...)
	}
	return docs
}

// discoverFiles walks the workspace and returns absolute paths matching
// the include patterns and not the exclude patterns. Hidden directories,
// vendor, and node_modules are never descended into.
func (p *Pipeline) discoverFiles() ([]string, error) {
	var files []string

	root := p.cfg.WorkspacePath
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if matchesAny(p.cfg.ExcludePatterns, name, rel) {
			return nil
		}
		if matchesAny(p.cfg.IncludePatterns, name, rel) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// matchesAny tests glob patterns against both the base name and the
// workspace-relative path.
func matchesAny(patterns []string, base, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// processFile chunks one file, generates contexts, embeds, and inserts
// into the dense index. Binary files are skipped silently with zero
// documents.
func (p *Pipeline) processFile(ctx context.Context, path string) ([]types.Document, error) {
	rel, err := p.relPath(path)
	if err != nil {
		return nil, err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	if isBinary(src) {
		return nil, nil
	}

	chunks := p.chunker.Chunk(path, src)
	if len(chunks) == 0 {
		return nil, nil
	}

	contexts, err := p.contextgen.GenerateBatch(ctx, chunks, rel)
	if err != nil {
		// Context generation is an enrichment; degrade to static
		// snippets rather than losing the file.
		p.log.Warn().Err(err).Str("file", rel).Msg("context generation failed, using static snippets")
		contexts, _ = contextgen.NewStatic().GenerateBatch(ctx, chunks, rel)
	}

	contextCost := 0.0
	for _, c := range contexts {
		contextCost += c.CostUSD
	}

	docs := make([]types.Document, len(chunks))
	texts := make([]string, 0, len(chunks)*3)
	for i, chunk := range chunks {
		docs[i] = types.Document{
			ID:             p.pointID(rel, chunk),
			FilePath:       rel,
			FunctionName:   chunk.SymbolName,
			Language:       chunk.Language,
			StartLine:      chunk.StartLine,
			EndLine:        chunk.EndLine,
			RawCode:        chunk.Content,
			ContextSnippet: contexts[i].Context,
			WorkspaceID:    p.cfg.WorkspaceID,
		}
		texts = append(texts,
			contentText(contexts[i].Context, chunk.Content),
			titleText(chunk, rel),
			breadcrumbText(p.cfg.WorkspaceID, rel, chunk),
		)
	}

	vectors, embedCost, err := p.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	points := make([]dense.Point, len(docs))
	for i := range docs {
		points[i] = dense.Point{
			ID:               docs[i].ID,
			ContentVector:    vectors[i*3],
			TitleVector:      vectors[i*3+1],
			BreadcrumbVector: vectors[i*3+2],
			Document:         docs[i],
		}
	}

	if _, err := p.dense.InsertPointsBatch(ctx, points); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.catalog[rel] = docs
	p.mu.Unlock()

	p.progress.AddCost(contextCost, embedCost)
	return docs, nil
}

// embedAll embeds texts in provider-sized batches and returns vectors in
// input order plus the total cost.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, float64, error) {
	vectors := make([][]float32, 0, len(texts))
	cost := 0.0

	for start := 0; start < len(texts); start += embedder.MaxBatchSize {
		end := start + embedder.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		responses, err := p.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, 0, fmt.Errorf("embed batch: %w", err)
		}
		for _, r := range responses {
			vectors = append(vectors, r.Embedding)
			cost += r.CostUSD
		}
	}

	return vectors, cost, nil
}

// rebuildSparse regenerates the BM25 index from the catalog. The catalog
// mutex gives rebuilds single-writer discipline.
func (p *Pipeline) rebuildSparse() {
	p.mu.Lock()
	defer p.mu.Unlock()

	var docs []types.Document
	for _, fileDocs := range p.catalog {
		docs = append(docs, fileDocs...)
	}
	p.sparse.Build(docs)
}

func (p *Pipeline) relPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path), nil
	}
	rel, err := filepath.Rel(p.cfg.WorkspacePath, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s is outside the workspace", types.ErrMalformedInput, path)
	}
	return filepath.ToSlash(rel), nil
}

// pointID derives a stable id from the chunk's identity, so re-indexing
// overwrites rather than duplicates.
func (p *Pipeline) pointID(rel string, chunk types.CodeChunk) string {
	key := fmt.Sprintf("%s|%s|%s|%d", p.cfg.WorkspaceID, rel, chunk.SymbolName, chunk.StartLine)
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}

// contentText is what the content vector embeds: the generated context
// followed by the raw code.
func contentText(contextSnippet, code string) string {
	if contextSnippet == "" {
		return code
	}
	return contextSnippet + "\n\n" + code
}

// titleText names the chunk for the title vector.
func titleText(chunk types.CodeChunk, rel string) string {
	base := filepath.Base(rel)
	if chunk.SymbolName != "" {
		return chunk.SymbolName + " " + base
	}
	return base
}

// breadcrumbText encodes the chunk's location for the breadcrumb vector.
func breadcrumbText(workspaceID, rel string, chunk types.CodeChunk) string {
	parts := []string{workspaceID, rel}
	if chunk.SymbolName != "" {
		parts = append(parts, chunk.SymbolName)
	}
	return strings.Join(parts, "/")
}

// isBinary reports whether content looks like a binary file.
func isBinary(src []byte) bool {
	probe := src
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
