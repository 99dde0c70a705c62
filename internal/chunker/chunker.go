// Package chunker splits source files into syntactic units using
// tree-sitter grammars. Each top-level function or class becomes one
// chunk; residual top-level code (imports, constants) becomes module
// chunks. A file that cannot be parsed yields a single whole-file chunk
// rather than an error, so one bad file never blocks an indexing run.
package chunker

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/dopemux/codesearch/pkg/types"
)

// Chunker produces ordered CodeChunk sequences from source files. It is a
// pure function of file content and safe for concurrent use.
type Chunker struct {
	registry *Registry
}

// New creates a chunker with the default language registry.
func New() *Chunker {
	r := NewRegistry()
	registerDefaults(r)
	return &Chunker{registry: r}
}

// NewWithRegistry creates a chunker backed by a custom registry.
func NewWithRegistry(r *Registry) *Chunker {
	return &Chunker{registry: r}
}

// Chunk splits src into chunks. An empty or whitespace-only file returns
// an empty sequence; files without a registered grammar, and files the
// grammar cannot parse, fall back to a single whole-file chunk.
func (c *Chunker) Chunk(path string, src []byte) []types.CodeChunk {
	if len(strings.TrimSpace(string(src))) == 0 {
		return nil
	}

	spec, lang := c.registry.Lookup(path)
	if spec == nil {
		return []types.CodeChunk{wholeFileChunk(src, c.registry.LanguageName(path), types.ChunkBlock)}
	}

	captures, err := c.extract(spec, src)
	if err != nil || len(captures) == 0 {
		// Malformed input or a file with no recognizable definitions:
		// best-effort whole-file chunk.
		return []types.CodeChunk{wholeFileChunk(src, lang, types.ChunkBlock)}
	}

	lines := strings.Split(string(src), "\n")
	chunks := make([]types.CodeChunk, 0, len(captures))
	covered := make([]bool, len(lines))

	for _, cap := range captures {
		start, end := clampLines(cap.startLine, cap.endLine, len(lines))
		for i := start - 1; i < end; i++ {
			covered[i] = true
		}
		chunks = append(chunks, types.CodeChunk{
			Content:    strings.Join(lines[start-1:end], "\n"),
			StartLine:  start,
			EndLine:    end,
			ChunkType:  kindToChunkType(cap.kind),
			Language:   lang,
			SymbolName: cap.name,
		})
	}

	chunks = append(chunks, residualChunks(lines, covered, lang)...)

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].StartLine < chunks[j].StartLine
	})

	return chunks
}

// capture is one @chunk match from a language query.
type capture struct {
	name      string
	kind      string
	startLine int
	endLine   int
	startByte uint32
	endByte   uint32
}

// extract runs the language query over the parse tree and returns
// deduplicated top-level captures.
func (c *Chunker) extract(spec *LanguageSpec, src []byte) ([]capture, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, err
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var captures []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var node *sitter.Node
		var name string
		for _, cap := range m.Captures {
			switch q.CaptureNameForId(cap.Index) {
			case "chunk":
				node = cap.Node
			case "name":
				name = cap.Node.Content(src)
			}
		}
		if node == nil {
			continue
		}
		captures = append(captures, capture{
			name:      name,
			kind:      node.Type(),
			startLine: int(node.StartPoint().Row) + 1,
			endLine:   int(node.EndPoint().Row) + 1,
			startByte: node.StartByte(),
			endByte:   node.EndByte(),
		})
	}

	return dedup(captures), nil
}

// dedup drops captures fully contained within a larger capture, so nested
// definitions never split their parent's body.
func dedup(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	var result []capture
	var lastEnd uint32
	for _, c := range caps {
		if len(result) == 0 || c.startByte >= lastEnd {
			result = append(result, c)
			if c.endByte > lastEnd {
				lastEnd = c.endByte
			}
		}
	}
	return result
}

// residualChunks turns contiguous runs of uncovered, non-blank lines into
// module-level chunks.
func residualChunks(lines []string, covered []bool, lang string) []types.CodeChunk {
	var chunks []types.CodeChunk
	runStart := -1 // 0-indexed start of the current uncovered run

	flush := func(end int) {
		if runStart < 0 {
			return
		}
		content := strings.Join(lines[runStart:end], "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, types.CodeChunk{
				Content:   content,
				StartLine: runStart + 1,
				EndLine:   end,
				ChunkType: types.ChunkModule,
				Language:  lang,
			})
		}
		runStart = -1
	}

	for i := range lines {
		if covered[i] {
			flush(i)
			continue
		}
		if runStart < 0 {
			runStart = i
		}
	}
	flush(len(lines))

	return chunks
}

// wholeFileChunk wraps the entire file as one chunk.
func wholeFileChunk(src []byte, lang string, kind types.ChunkType) types.CodeChunk {
	text := string(src)
	return types.CodeChunk{
		Content:   text,
		StartLine: 1,
		EndLine:   strings.Count(text, "\n") + 1,
		ChunkType: kind,
		Language:  lang,
	}
}

// kindToChunkType maps tree-sitter node kinds onto the chunk taxonomy.
func kindToChunkType(kind string) types.ChunkType {
	switch {
	case strings.Contains(kind, "class"),
		strings.Contains(kind, "interface"),
		strings.Contains(kind, "type_declaration"),
		strings.Contains(kind, "type_alias"):
		return types.ChunkClass
	case strings.Contains(kind, "function"),
		strings.Contains(kind, "method"),
		strings.Contains(kind, "lexical_declaration"):
		return types.ChunkFunction
	default:
		return types.ChunkBlock
	}
}

func clampLines(start, end, max int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end > max {
		end = max
	}
	if end < start {
		end = start
	}
	return start, end
}
