// Package hybrid fuses dense vector search and sparse BM25 search into a
// single ranked result list using Reciprocal Rank Fusion.
package hybrid

import "sort"

// DefaultRRFK is the standard RRF smoothing constant.
const DefaultRRFK = 60.0

// Ranked is one (id, score) entry of a ranked list. Input lists are
// ordered best-first; only positions matter to the fusion, not the raw
// scores.
type Ranked struct {
	ID    string
	Score float64
}

// ReciprocalRankFusion merges ranked lists with equal weight. Each list
// contributes 1/(k + rank + 1) per document, ranks counted from zero, so
// raw scores from incompatible scales never need calibrating against each
// other. No input lists, or only empty ones, fuse to an empty list.
func ReciprocalRankFusion(rankings [][]Ranked, k float64) []Ranked {
	weights := make([]float64, len(rankings))
	for i := range weights {
		weights[i] = 1.0
	}
	return FuseWeighted(rankings, weights, k)
}

// FuseWeighted is RRF with a per-list multiplier applied to that list's
// contributions before summation, so callers can bias the fusion toward
// one retrieval source without re-ranking its members.
func FuseWeighted(rankings [][]Ranked, weights []float64, k float64) []Ranked {
	if k <= 0 {
		k = DefaultRRFK
	}

	scores := make(map[string]float64)
	for li, list := range rankings {
		w := 1.0
		if li < len(weights) {
			w = weights[li]
		}
		for rank, r := range list {
			scores[r.ID] += w / (k + float64(rank) + 1)
		}
	}

	fused := make([]Ranked, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, Ranked{ID: id, Score: score})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})

	return fused
}
