package cycle

import (
	"github.com/rawblock/evoctl/internal/guard/ethics"
	"github.com/rawblock/evoctl/pkg/models"
)

// deriveCAOS maps an Evaluator's raw Evidence onto the unit-interval CAOS
// components the Motor requires. spec.md leaves the evidence-to-dynamics
// telemetry mapping to the host system; this is the one place that
// decision is made, so every other package stays agnostic to it (see
// DESIGN.md's Open Question log for the rationale behind each channel):
//
//   - Consistency: 1 - expected calibration error
//   - Autoevolution: the evidence's own weighted metric mean, the same
//     competence signal SR's Awareness axis reads
//   - Incognoscible: the cost headroom still available under costMax
//   - Silence: closeness of the observed bias ratio to the unbiased
//     value of 1
func deriveCAOS(e models.Evidence, costScales map[string]float64, costMax float64) models.CAOSComponents {
	costTotal := e.Cost.Total(costScales)
	openness := 1.0
	if costMax > 0 {
		openness = clamp01(1 - costTotal/costMax)
	}
	return models.CAOSComponents{
		C: clamp01(1 - e.ECE()),
		A: clamp01(weightedMean(e.Metrics)),
		O: openness,
		S: clamp01(1 - abs(e.BiasRatio-1)),
	}
}

// deriveSR maps Evidence and an already-computed EthicsReport onto the SR
// axes. EthicsOK is binary by construction: SR-Omega is a harmonic mean, so
// a single failed axis already collapses the aggregate (spec.md Sec 4.2);
// there is no room for a "partial ethics pass" here.
func deriveSR(e models.Evidence, ethicsOK bool) models.SRAxes {
	ethicsAxis := 0.0
	if ethicsOK {
		ethicsAxis = 1.0
	}
	autocorrection := 0.0
	if e.AuditTrailComplete {
		autocorrection = 1.0
	}
	metacognition := 0.0
	if e.ExplanationProvided {
		metacognition = 1.0
	}
	return models.SRAxes{
		Awareness:       clamp01(weightedMean(e.Metrics)),
		EthicsOK:        ethicsAxis,
		Autocorrection:  autocorrection,
		Metacognition:   metacognition,
	}
}

// deriveAgapeVirtues maps Evidence onto the four Agape virtue scores the
// optional gate aggregates (internal/guard/ethics/agape.go). Evidence
// carries no dedicated virtue fields -- like deriveCAOS/deriveSR, this is
// the one place that gap is bridged, from signals the Evaluator already
// reports for other gates:
//
//   - Patience: cost headroom still unspent, since rushing a challenger
//     through at high cost is the opposite of patience. It uses the
//     unscaled cost total (every scale 1), while CAOS's O input uses the
//     policy's CostScales, so the two differ whenever those scales are set.
//   - Kindness: closeness of the observed equity disparity to zero.
//   - Humility: whether the challenger documents its own reasoning and
//     leaves an audit trail, rather than asserting its output unexamined.
//   - Generosity: whether it preserves human override and was run with
//     consent, rather than taking unilateral license.
func deriveAgapeVirtues(e models.Evidence, costMax float64) ethics.AgapeVirtues {
	costTotal := e.Cost.Total(nil)
	patience := 1.0
	if costMax > 0 {
		patience = clamp01(1 - costTotal/costMax)
	}
	humility := (boolToFloat(e.ExplanationProvided) + boolToFloat(e.AuditTrailComplete)) / 2
	generosity := (boolToFloat(e.AutonomyOverridable) + boolToFloat(e.ConsentGiven)) / 2
	return ethics.AgapeVirtues{
		Patience:   patience,
		Kindness:   clamp01(1 - e.EquityDisparity),
		Humility:   humility,
		Generosity: generosity,
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func weightedMean(metrics models.MetricSet) float64 {
	weightSum := metrics.WeightSum()
	if weightSum == 0 {
		return 0
	}
	var total float64
	for _, m := range metrics {
		total += m.Value * m.Weight
	}
	return total / weightSum
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
