package aggregator

import (
	"math"
	"testing"

	"github.com/rawblock/evoctl/pkg/models"
)

func TestCompute_CleanPromotionScenario(t *testing.T) {
	// S1 from spec.md: acc 0.82/rob 0.76/priv 0.94, weights 0.4/0.4/0.2,
	// cost_total = 0.15, lambda_c = 0.5 -> base ~0.815, cost penalty ~0.928,
	// L_inf ~0.756.
	metrics := models.MetricSet{
		{Name: "acc", Value: 0.82, Weight: 0.4, Floor: 1e-3},
		{Name: "rob", Value: 0.76, Weight: 0.4, Floor: 1e-3},
		{Name: "priv", Value: 0.94, Weight: 0.2, Floor: 1e-3},
	}
	cost := models.CostComponents{"total": 0.15}
	scales := map[string]float64{"total": 1}

	d, err := Compute(metrics, cost, scales, 0.5, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(d.Base-0.815) > 0.01 {
		t.Errorf("base = %v, want ~0.815", d.Base)
	}
	if math.Abs(d.CostPenalty-0.928) > 0.01 {
		t.Errorf("cost penalty = %v, want ~0.928", d.CostPenalty)
	}
	if math.Abs(d.LInf-0.756) > 0.02 {
		t.Errorf("L_inf = %v, want ~0.756", d.LInf)
	}
}

func TestCompute_NonCompensatoryCollapse(t *testing.T) {
	// S3 from spec.md: a near-zero metric must collapse L_inf toward zero
	// regardless of the other two metrics being near-perfect.
	metrics := models.MetricSet{
		{Name: "acc", Value: 0.95, Weight: 0.33, Floor: 1e-3},
		{Name: "rob", Value: 0.95, Weight: 0.33, Floor: 1e-3},
		{Name: "priv", Value: 0.001, Weight: 0.34, Floor: 1e-3},
	}
	cost := models.CostComponents{}
	d, err := Compute(metrics, cost, nil, 0.5, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.LInf > 0.02 {
		t.Errorf("expected near-zero L_inf under floor collapse, got %v", d.LInf)
	}
}

func TestCompute_EthicsIndicatorZeroesScore(t *testing.T) {
	metrics := models.MetricSet{{Name: "acc", Value: 0.9, Weight: 1.0, Floor: 1e-3}}
	d, err := Compute(metrics, models.CostComponents{}, nil, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.LInf != 0 {
		t.Errorf("L_inf = %v, want 0 when ethics indicator is 0", d.LInf)
	}
}

func TestCompute_EmptyMetricSetIsError(t *testing.T) {
	if _, err := Compute(nil, models.CostComponents{}, nil, 0, true); err == nil {
		t.Error("expected error for empty metric set")
	}
}

func TestCompute_NegativeCostIsError(t *testing.T) {
	metrics := models.MetricSet{{Name: "acc", Value: 0.9, Weight: 1.0}}
	cost := models.CostComponents{"total": -1}
	if _, err := Compute(metrics, cost, map[string]float64{"total": 1}, 0.5, true); err == nil {
		t.Error("expected error for negative cost")
	}
}

func TestCompute_NaNMetricIsError(t *testing.T) {
	metrics := models.MetricSet{{Name: "acc", Value: math.NaN(), Weight: 1.0}}
	if _, err := Compute(metrics, models.CostComponents{}, nil, 0, true); err == nil {
		t.Error("expected error for NaN metric")
	}
}

func TestCompute_MetricAtFloorIsFiniteNonZero(t *testing.T) {
	metrics := models.MetricSet{
		{Name: "acc", Value: 1e-3, Weight: 0.5, Floor: 1e-3},
		{Name: "rob", Value: 0.9, Weight: 0.5, Floor: 1e-3},
	}
	d, err := Compute(metrics, models.CostComponents{}, nil, 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.LInf <= 0 || math.IsNaN(d.LInf) || math.IsInf(d.LInf, 0) {
		t.Errorf("L_inf = %v, want finite non-zero", d.LInf)
	}
	if len(d.ClampedFloors) != 0 {
		t.Errorf("ClampedFloors = %v, want none (a metric exactly at its floor is not below it)", d.ClampedFloors)
	}
}

func TestSelectBest_TieBreaksOnCostThenNormThenHash(t *testing.T) {
	candidates := []Candidate{
		{Challenger: models.Challenger{Hash: "bbb"}, LInf: 0.5, CostTotal: 0.2, Norm: 1.0},
		{Challenger: models.Challenger{Hash: "aaa"}, LInf: 0.5 + 1e-10, CostTotal: 0.2, Norm: 1.0},
	}
	best := SelectBest(candidates)
	if best != 1 {
		t.Errorf("SelectBest = %d, want 1 (tied L_inf, identical cost/norm, lower hash wins)", best)
	}

	candidates = []Candidate{
		{Challenger: models.Challenger{Hash: "z"}, LInf: 0.5, CostTotal: 0.3, Norm: 1.0},
		{Challenger: models.Challenger{Hash: "a"}, LInf: 0.5, CostTotal: 0.1, Norm: 2.0},
	}
	best = SelectBest(candidates)
	if best != 1 {
		t.Errorf("SelectBest = %d, want 1 (lower cost wins)", best)
	}
}
