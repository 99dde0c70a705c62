package types

// Document is the payload stored alongside every indexed point. One
// Document corresponds 1:1 to one CodeChunk; its ID is stable across
// re-indexing of the same chunk.
type Document struct {
	ID           string
	FilePath     string // relative to the workspace root
	FunctionName string // empty for module-level chunks
	Language     string
	StartLine    int
	EndLine      int

	// RawCode is the chunk's source text; ContextSnippet is the generated
	// natural-language description of it.
	RawCode        string
	ContextSnippet string

	// WorkspaceID namespaces documents from different workspaces sharing
	// one collection.
	WorkspaceID string

	// Metadata carries dynamic extras that have no named field.
	Metadata map[string]string
}

// EmbeddingResponse is the result of embedding one text. The embedding
// dimension is fixed by the model and constant within one pipeline run.
type EmbeddingResponse struct {
	Embedding []float32
	Model     string
	Tokens    int
	CostUSD   float64
}
