package updater

import (
	"math"

	"github.com/rawblock/evoctl/pkg/models"
)

// ProjectionReport describes what Project did to a raw (pre-projection)
// vector: the per-coordinate box clip plus the global norm renormalization,
// and whether any single coordinate moved far enough to count as a "heavy
// projection" (spec.md Sec 4.4), a signal the PCAg records so an operator
// can tell a clean gradient step from one the safe set had to claw back.
type ProjectionReport struct {
	Heavy        bool    `json:"heavy"`
	MaxDelta     float64 `json:"maxDelta"`
	NormBefore   float64 `json:"normBefore"`
	NormAfter    float64 `json:"normAfter"`
	Renormalized bool    `json:"renormalized"`
}

// Project computes Pi_{H intersect S}[raw]: first a per-coordinate box clip
// into H (policy.BoxMin/BoxMax, when set), then a renormalization onto the
// norm ball S of radius policy.MaxNorm if the clipped vector still exceeds
// it. Returns the projected vector and a report describing how far the
// projection moved the input.
func Project(raw []float64, policy models.Policy) ([]float64, ProjectionReport) {
	projected := make([]float64, len(raw))
	copy(projected, raw)

	var maxDelta float64
	for i, v := range projected {
		clipped := clipCoordinate(v, policy.BoxMin, policy.BoxMax, i)
		if d := abs(clipped - v); d > maxDelta {
			maxDelta = d
		}
		projected[i] = clipped
	}

	normBefore := euclideanNorm(projected)
	normAfter := normBefore
	renormalized := false
	if policy.MaxNorm > 0 && normBefore > policy.MaxNorm {
		scale := policy.MaxNorm / normBefore
		for i := range projected {
			before := projected[i]
			projected[i] *= scale
			if d := abs(projected[i] - before); d > maxDelta {
				maxDelta = d
			}
		}
		normAfter = euclideanNorm(projected)
		renormalized = true
	}

	heavy := policy.DeltaProjThreshold > 0 && maxDelta > policy.DeltaProjThreshold

	return projected, ProjectionReport{
		Heavy:        heavy,
		MaxDelta:     maxDelta,
		NormBefore:   normBefore,
		NormAfter:    normAfter,
		Renormalized: renormalized,
	}
}

func clipCoordinate(v float64, boxMin, boxMax []float64, i int) float64 {
	if i < len(boxMin) && v < boxMin[i] {
		return boxMin[i]
	}
	if i < len(boxMax) && v > boxMax[i] {
		return boxMax[i]
	}
	return v
}

func euclideanNorm(v []float64) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	return math.Sqrt(sumSq)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
