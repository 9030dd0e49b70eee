package aggregator

import (
	"math"
	"sort"

	"github.com/rawblock/evoctl/pkg/models"
)

// lInfEpsilon is the tolerance within which two challengers' L-infinity
// scores are considered tied (spec.md Sec 4.1).
const lInfEpsilon = 1e-9

// Candidate bundles one challenger's aggregation result with the fields
// needed to break ties deterministically.
type Candidate struct {
	Challenger models.Challenger
	LInf       float64
	CostTotal  float64
	Norm       float64
}

// SelectBest ranks candidates by L-infinity descending; ties within
// lInfEpsilon are broken first by lower cost, then by lower parameter-vector
// norm, then by deterministic hash order (lexicographically smallest
// Challenger.Hash wins). Returns the index of the winner, or -1 if empty.
func SelectBest(candidates []Candidate) int {
	if len(candidates) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if better(candidates[i], candidates[best]) {
			best = i
		}
	}
	return best
}

func better(a, b Candidate) bool {
	if math.Abs(a.LInf-b.LInf) > lInfEpsilon {
		return a.LInf > b.LInf
	}
	if a.CostTotal != b.CostTotal {
		return a.CostTotal < b.CostTotal
	}
	if a.Norm != b.Norm {
		return a.Norm < b.Norm
	}
	return a.Challenger.Hash < b.Challenger.Hash
}

// SortedByRank returns candidate indices ordered best-to-worst, for
// recording the full ranking in a PCAg when more than one challenger was
// evaluated in a cycle.
func SortedByRank(candidates []Candidate) []int {
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		return better(candidates[idx[i]], candidates[idx[j]])
	})
	return idx
}
