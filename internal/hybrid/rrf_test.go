package hybrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ranked []Ranked) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.ID
	}
	return out
}

func TestRRFFusesTwoLists(t *testing.T) {
	listA := []Ranked{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	listB := []Ranked{{ID: "a"}, {ID: "c"}}

	fused := ReciprocalRankFusion([][]Ranked{listA, listB}, 60)

	require.Len(t, fused, 3)
	// a leads both lists; c appears in both, b in one.
	assert.Equal(t, []string{"a", "c", "b"}, ids(fused))
}

func TestRRFSingleListPreservesOrder(t *testing.T) {
	list := []Ranked{{ID: "x"}, {ID: "y"}, {ID: "z"}}

	fused := ReciprocalRankFusion([][]Ranked{list}, 60)

	assert.Equal(t, []string{"x", "y", "z"}, ids(fused))
}

func TestRRFEmptyInput(t *testing.T) {
	assert.Empty(t, ReciprocalRankFusion(nil, 60))
	assert.Empty(t, ReciprocalRankFusion([][]Ranked{{}, {}}, 60))
}

func TestRRFIgnoresRawScores(t *testing.T) {
	// Wildly different score scales fuse identically; only rank counts.
	listA := []Ranked{{ID: "a", Score: 9000}, {ID: "b", Score: 8999}}
	listB := []Ranked{{ID: "a", Score: 0.01}, {ID: "b", Score: 0.009}}

	fused := ReciprocalRankFusion([][]Ranked{listA, listB}, 60)

	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].ID)
	assert.InDelta(t, 2.0/61.0, fused[0].Score, 1e-12)
}

func TestFuseWeightedBiasesWinner(t *testing.T) {
	listA := []Ranked{{ID: "a"}, {ID: "b"}}
	listB := []Ranked{{ID: "b"}, {ID: "a"}}

	heavyA := FuseWeighted([][]Ranked{listA, listB}, []float64{0.9, 0.1}, 60)
	heavyB := FuseWeighted([][]Ranked{listA, listB}, []float64{0.1, 0.9}, 60)

	assert.Equal(t, "a", heavyA[0].ID)
	assert.Equal(t, "b", heavyB[0].ID)
}

func TestRRFDefaultsKWhenNonPositive(t *testing.T) {
	list := []Ranked{{ID: "a"}}

	fused := ReciprocalRankFusion([][]Ranked{list}, 0)

	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/(DefaultRRFK+1), fused[0].Score, 1e-12)
}
