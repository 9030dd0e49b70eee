// Package aggregator computes the L-infinity meta-score: a weighted
// harmonic mean of per-dimension metrics, cost-penalized and ethics-gated.
// It collapses every metric set the Evaluator produces into one scalar the
// Guard and Updater can compare against beta_min -- by construction,
// non-compensatory, so no single dimension can be traded away for another.
//
// Grounded on the teacher's weighted-signal composition in
// internal/heuristics/realtime_risk.go (ScoreTransaction) and the
// Log-Likelihood-Ratio scoring in internal/heuristics/llr_engine.go.
package aggregator

import (
	"fmt"
	"math"
	"sort"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// Detail is the full breakdown behind one L-infinity computation, kept for
// the PCAg so a verifier can re-derive the scalar from its parts.
type Detail struct {
	LInf          float64            `json:"lInf"`
	Base          float64            `json:"base"`
	CostPenalty   float64            `json:"costPenalty"`
	EthicsOK      bool               `json:"ethicsOk"`
	CostTotal     float64            `json:"costTotal"`
	ClampedFloors []string           `json:"clampedFloors,omitempty"`
	Contributions map[string]float64 `json:"contributions"` // q_j per metric, for audit
}

// Compute implements spec.md Sec 4.1's algorithm exactly:
//  1. q_j = w_j / max(epsilon, m_j) for every metric
//  2. Base = 1 / Sigma q_j (weighted harmonic mean)
//  3. CostPenalty = exp(-lambda_c * cost_total)
//  4. EthicsIndicator = 1 if ethicsOK else 0
//  5. L_inf = Base * CostPenalty * EthicsIndicator
//
// Edge cases per spec.md: an empty metric set or a negative/NaN cost is an
// EvidenceError; any NaN metric is an EvidenceError (never silently
// substituted). A metric below its floor is clamped to the floor for the
// computation and recorded in ClampedFloors.
func Compute(metrics models.MetricSet, cost models.CostComponents, costScales map[string]float64, lambdaC float64, ethicsOK bool) (Detail, error) {
	if len(metrics) == 0 {
		return Detail{}, fmt.Errorf("%w: empty metric set", evoerrs.ErrEvidenceError)
	}

	var sumQ float64
	contributions := make(map[string]float64, len(metrics))
	var clamped []string

	for _, m := range metrics {
		if math.IsNaN(m.Value) || math.IsNaN(m.Weight) {
			return Detail{}, fmt.Errorf("%w: NaN in metric %q", evoerrs.ErrEvidenceError, m.Name)
		}
		floor := m.Floor
		if floor <= 0 {
			floor = models.DefaultMetricFloor
		}
		value := m.Value
		if value < floor {
			value = floor
			clamped = append(clamped, m.Name)
		}
		q := m.Weight / value
		sumQ += q
		contributions[m.Name] = q
	}

	if sumQ <= 0 {
		return Detail{}, fmt.Errorf("%w: non-positive weighted sum", evoerrs.ErrEvidenceError)
	}
	base := 1.0 / sumQ

	costTotal := cost.Total(costScales)
	if costTotal < 0 {
		return Detail{}, fmt.Errorf("%w: negative cost total %f", evoerrs.ErrEvidenceError, costTotal)
	}
	if math.IsNaN(costTotal) {
		return Detail{}, fmt.Errorf("%w: NaN cost total", evoerrs.ErrEvidenceError)
	}
	costPenalty := math.Exp(-lambdaC * costTotal)

	ethicsIndicator := 0.0
	if ethicsOK {
		ethicsIndicator = 1.0
	}

	sort.Strings(clamped)

	return Detail{
		LInf:          base * costPenalty * ethicsIndicator,
		Base:          base,
		CostPenalty:   costPenalty,
		EthicsOK:      ethicsOK,
		CostTotal:     costTotal,
		ClampedFloors: clamped,
		Contributions: contributions,
	}, nil
}
