// Package sparse provides an in-memory lexical index ranking documents
// with Okapi BM25 over a code-aware tokenization.
package sparse

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/dopemux/codesearch/pkg/types"
)

// Okapi BM25 parameters. k1 controls term-frequency saturation, b the
// strength of document-length normalization.
const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

// Scored is one (document id, score) pair in a ranked list. BM25 scores
// may be negative; only relative order is meaningful.
type Scored struct {
	ID    string
	Score float64
}

// Index ranks documents by lexical term overlap. It is rebuilt wholesale
// by Build and is not safe for concurrent rebuilds; searches may run
// concurrently with each other.
type Index struct {
	mu sync.RWMutex

	k1, b float64

	ids      []string
	termFreq []map[string]int // per document, parallel to ids
	docLen   []int
	docFreq  map[string]int
	avgLen   float64
	docs     map[string]types.Document
}

// NewIndex creates an empty BM25 index.
func NewIndex() *Index {
	return &Index{
		k1:      defaultK1,
		b:       defaultB,
		docFreq: make(map[string]int),
		docs:    make(map[string]types.Document),
	}
}

// Build replaces the index contents with the given documents. Each
// document's raw code, function name, and context snippet are tokenized
// into its term bag. Callers enforce single-writer discipline around
// rebuild triggers.
func (ix *Index) Build(documents []types.Document) {
	ids := make([]string, 0, len(documents))
	termFreq := make([]map[string]int, 0, len(documents))
	docLen := make([]int, 0, len(documents))
	docFreq := make(map[string]int)
	docs := make(map[string]types.Document, len(documents))
	totalLen := 0

	for _, doc := range documents {
		tokens := Tokenize(indexableText(doc))
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			docFreq[tok]++
		}

		ids = append(ids, doc.ID)
		termFreq = append(termFreq, tf)
		docLen = append(docLen, len(tokens))
		totalLen += len(tokens)
		docs[doc.ID] = doc
	}

	avgLen := 0.0
	if len(documents) > 0 {
		avgLen = float64(totalLen) / float64(len(documents))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ids = ids
	ix.termFreq = termFreq
	ix.docLen = docLen
	ix.docFreq = docFreq
	ix.avgLen = avgLen
	ix.docs = docs
}

// Search tokenizes the query with the index tokenizer, scores every
// document, and returns the top-k pairs sorted descending. Queries with
// no vocabulary overlap return an empty list; that is never an error.
func (ix *Index) Search(query string, topK int) []Scored {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.ids) == 0 || topK <= 0 {
		return nil
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	n := float64(len(ix.ids))
	var results []Scored
	for i, id := range ix.ids {
		score := 0.0
		matched := false
		for _, tok := range queryTokens {
			tf := ix.termFreq[i][tok]
			if tf == 0 {
				continue
			}
			matched = true
			df := float64(ix.docFreq[tok])
			// Lucene-style floor keeps idf non-negative for terms that
			// appear in most documents.
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := ix.k1 * (1 - ix.b + ix.b*float64(ix.docLen[i])/ix.avgLen)
			score += idf * float64(tf) * (ix.k1 + 1) / (float64(tf) + norm)
		}
		if matched {
			results = append(results, Scored{ID: id, Score: score})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Document returns the original record for an id, or false when the id
// was never indexed.
func (ix *Index) Document(id string) (types.Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	doc, ok := ix.docs[id]
	return doc, ok
}

// Len reports the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// indexableText concatenates the textual fields that participate in
// lexical matching.
func indexableText(doc types.Document) string {
	var b strings.Builder
	b.WriteString(doc.RawCode)
	if doc.FunctionName != "" {
		b.WriteByte('\n')
		b.WriteString(doc.FunctionName)
	}
	if doc.ContextSnippet != "" {
		b.WriteByte('\n')
		b.WriteString(doc.ContextSnippet)
	}
	return b.String()
}
