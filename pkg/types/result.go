package types

// ResultSource records which sub-search produced a hit.
type ResultSource string

const (
	SourceDense  ResultSource = "dense"
	SourceSparse ResultSource = "sparse"
	SourceBoth   ResultSource = "both"
)

// SearchResult is a single ranked hit returned to a caller. Score is
// fusion-normalized; higher is better. Only relative ordering is
// meaningful across scoring systems.
type SearchResult struct {
	ID       string
	Score    float64
	Source   ResultSource
	Document Document
}

// Validate checks structural invariants of a result.
func (sr *SearchResult) Validate() error {
	if sr.ID == "" {
		return ErrInvalidResultID
	}
	if sr.Document.RawCode == "" {
		return ErrEmptyContent
	}
	return nil
}
