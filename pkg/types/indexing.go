package types

import (
	"fmt"
	"sync"
	"time"
)

// IndexingConfig is the immutable configuration for one indexing
// invocation.
type IndexingConfig struct {
	WorkspacePath   string
	IncludePatterns []string // globs matched against file base name or relative path
	ExcludePatterns []string
	WorkspaceID     string // namespace/filter value in the index
}

// Validate detects configuration errors eagerly, before any work begins.
// An empty discovery result is not an error; a missing workspace path is.
func (c *IndexingConfig) Validate() error {
	if c.WorkspacePath == "" {
		return fmt.Errorf("%w: workspace_path is required", ErrConfig)
	}
	if len(c.IncludePatterns) == 0 {
		return fmt.Errorf("%w: at least one include pattern is required", ErrConfig)
	}
	if c.WorkspaceID == "" {
		return fmt.Errorf("%w: workspace_id is required", ErrConfig)
	}
	return nil
}

// IndexingProgress tracks one indexing run. Files may be processed
// concurrently, so mutations go through the methods below; direct field
// reads are safe once the run has completed.
type IndexingProgress struct {
	mu sync.Mutex

	TotalFiles     int
	ProcessedFiles int
	TotalChunks    int
	IndexedChunks  int
	Errors         int

	TotalCostUSD     float64
	ContextCostUSD   float64
	EmbeddingCostUSD float64

	StartTime time.Time
}

// NewIndexingProgress creates a progress record stamped with the run's
// start time.
func NewIndexingProgress() *IndexingProgress {
	return &IndexingProgress{StartTime: time.Now()}
}

// SetTotalFiles records the discovery result.
func (p *IndexingProgress) SetTotalFiles(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TotalFiles = n
}

// FileProcessed records one completed file: chunks found, chunks actually
// indexed, and whether the file failed.
func (p *IndexingProgress) FileProcessed(totalChunks, indexedChunks int, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ProcessedFiles++
	p.TotalChunks += totalChunks
	p.IndexedChunks += indexedChunks
	if failed {
		p.Errors++
	}
}

// AddCost accumulates per-file cost into the run totals.
func (p *IndexingProgress) AddCost(contextUSD, embeddingUSD float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ContextCostUSD += contextUSD
	p.EmbeddingCostUSD += embeddingUSD
	p.TotalCostUSD += contextUSD + embeddingUSD
}

// PercentageComplete reports file progress in [0, 100]. A run with no
// discovered files is complete by definition.
func (p *IndexingProgress) PercentageComplete() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TotalFiles == 0 {
		return 100.0
	}
	return float64(p.ProcessedFiles) / float64(p.TotalFiles) * 100.0
}

// Snapshot returns a copy safe to read while the run is still mutating.
func (p *IndexingProgress) Snapshot() IndexingProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return IndexingProgress{
		TotalFiles:       p.TotalFiles,
		ProcessedFiles:   p.ProcessedFiles,
		TotalChunks:      p.TotalChunks,
		IndexedChunks:    p.IndexedChunks,
		Errors:           p.Errors,
		TotalCostUSD:     p.TotalCostUSD,
		ContextCostUSD:   p.ContextCostUSD,
		EmbeddingCostUSD: p.EmbeddingCostUSD,
		StartTime:        p.StartTime,
	}
}
