package types

import "errors"

// ChunkType classifies the syntactic unit a chunk was cut from.
type ChunkType string

const (
	ChunkFunction ChunkType = "function"
	ChunkClass    ChunkType = "class"
	ChunkBlock    ChunkType = "block"
	ChunkModule   ChunkType = "module"
)

// CodeChunk is a contiguous span of source code treated as one retrievable
// unit. Chunks are transient pipeline state: the chunker produces them, the
// context generator and embedder consume them, and they are never persisted
// on their own.
type CodeChunk struct {
	Content    string
	StartLine  int // 1-indexed, inclusive
	EndLine    int // 1-indexed, inclusive
	ChunkType  ChunkType
	Language   string
	SymbolName string // function/class name when known
}

// Validate checks the chunk invariants: non-empty content and a sane line
// range.
func (c *CodeChunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	return nil
}

// ValidateChunkType checks that the chunk type is one of the known kinds.
func (c *CodeChunk) ValidateChunkType() error {
	switch c.ChunkType {
	case ChunkFunction, ChunkClass, ChunkBlock, ChunkModule:
		return nil
	default:
		return errors.New("invalid chunk type")
	}
}

// LineCount returns the number of source lines the chunk spans.
func (c *CodeChunk) LineCount() int {
	return c.EndLine - c.StartLine + 1
}

// EstimateTokenCount estimates the number of model tokens in a string.
// Uses the chars/4 heuristic; close enough for cost accounting.
func EstimateTokenCount(text string) int {
	return len(text) / 4
}
