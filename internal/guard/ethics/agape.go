package ethics

import "math"

// DefaultAgapeThreshold is the default floor for the optional Agape Index
// gate. It is a soft, non-overriding gate: per spec.md Sec 9, it "must not
// override the hard predicates LO-01..LO-14" and the Guard only ever
// demotes a Promote to a Reject on its account, never to a Rollback.
const DefaultAgapeThreshold = 0.5

// AgapeWeights is the documented weighting for the four virtues the Agape
// Index aggregates, chosen to weight patience and care (the virtues most
// directly opposed by speed-optimizing mutations) above the other two.
var AgapeWeights = struct {
	Patience, Kindness, Humility, Generosity float64
}{
	Patience: 0.3, Kindness: 0.3, Humility: 0.2, Generosity: 0.2,
}

// AgapeVirtues are the four raw virtue scores in [0,1] the Evaluator (or a
// downstream analyst) assigns a challenger, before the sacrificial-cost
// penalty is applied.
type AgapeVirtues struct {
	Patience   float64
	Kindness   float64
	Humility   float64
	Generosity float64
}

// AgapeResult is the computed optional ethics gate value plus its detail,
// recorded in the PCAg whenever it was evaluated.
type AgapeResult struct {
	Virtues        AgapeVirtues `json:"virtues"`
	WeightedVirtue float64      `json:"weightedVirtue"`
	SacrificeCost  float64      `json:"sacrificeCost"`
	Index          float64      `json:"index"`
}

// ComputeAgapeIndex is the weighted virtue aggregate with a
// sacrificial-cost penalty: Index = WeightedVirtue * exp(-SacrificeCost).
// A challenger that claims high virtue scores at large, unaccounted
// sacrificial cost to others is discounted rather than rewarded outright.
func ComputeAgapeIndex(v AgapeVirtues, sacrificeCost float64) AgapeResult {
	weighted := AgapeWeights.Patience*v.Patience +
		AgapeWeights.Kindness*v.Kindness +
		AgapeWeights.Humility*v.Humility +
		AgapeWeights.Generosity*v.Generosity

	penalty := expNeg(sacrificeCost)

	return AgapeResult{
		Virtues:        v,
		WeightedVirtue: weighted,
		SacrificeCost:  sacrificeCost,
		Index:          weighted * penalty,
	}
}

// expNeg is math.Exp(-x) for x >= 0, clamped to avoid a negative cost
// inflating the index above 1.
func expNeg(x float64) float64 {
	if x < 0 {
		x = 0
	}
	return math.Exp(-x)
}
