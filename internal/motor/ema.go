// Package motor computes the two dynamics modulators -- CAOS+ and SR-Omega-
// infinity -- over exponentially-weighted smoothed signals, and owns the
// single canonical EMA implementation used by both (spec.md Sec 9: "ad hoc
// smoothing with mutable EMA state scattered across trackers becomes a
// single smoothing component owned by the Motor").
//
// Grounded on the teacher's pure-math helpers in internal/shadow/evaluator.go
// (Entropy/ARI/VI: small, dependency-free numeric functions over a fixed
// window) and the weighted-signal style of internal/heuristics/realtime_risk.go.
package motor

import (
	"math"

	"github.com/rawblock/evoctl/pkg/models"
)

// alphaFromHalfLife converts a half-life (in samples/cycles) to the EMA
// decay factor: alpha = 1 - exp(-ln(2) / half_life).
func alphaFromHalfLife(halfLife float64) float64 {
	if halfLife <= 0 {
		return 1 // no smoothing: the new sample replaces the EMA outright
	}
	return 1 - math.Exp(-math.Ln2/halfLife)
}

// maxWindow bounds how many raw samples are retained for the
// coefficient-of-variation stability report; older samples are dropped.
const maxWindow = 64

// Update advances one EMAHistory with a new raw sample and returns the
// updated history. The first sample seeds the EMA directly (no prior state
// to blend against).
func Update(h models.EMAHistory, sample float64) models.EMAHistory {
	alpha := alphaFromHalfLife(h.HalfLife)
	if !h.Seeded {
		h.Value = sample
		h.Seeded = true
	} else {
		h.Value = alpha*sample + (1-alpha)*h.Value
	}
	h.Window = append(h.Window, sample)
	if len(h.Window) > maxWindow {
		h.Window = h.Window[len(h.Window)-maxWindow:]
	}
	return h
}

// Stability reports 1 / (1 + CV) over the retained history window, where CV
// is the coefficient of variation (stddev / mean) of the raw samples.
// Returns 1 for a window with fewer than two samples or a zero mean (no
// variation to report, maximally stable by convention).
func Stability(h models.EMAHistory) float64 {
	n := len(h.Window)
	if n < 2 {
		return 1
	}
	var mean float64
	for _, v := range h.Window {
		mean += v
	}
	mean /= float64(n)
	if mean == 0 {
		return 1
	}
	var variance float64
	for _, v := range h.Window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)
	cv := math.Sqrt(variance) / math.Abs(mean)
	return 1 / (1 + cv)
}

// Seed constructs an EMAHistory pre-populated with an explicit starting
// value and window, for deterministic tests that do not want to replay a
// full sample history through Update.
func Seed(halfLife float64, value float64, window []float64) models.EMAHistory {
	w := make([]float64, len(window))
	copy(w, window)
	return models.EMAHistory{HalfLife: halfLife, Value: value, Window: w, Seeded: true}
}
