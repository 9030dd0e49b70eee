// Package guard implements the Sigma-Guard pipeline: eleven parallel,
// fail-closed gates plus one optional ethics-adjacent gate. A single Fail
// collapses the whole Verdict; absence of evidence is itself a Fail. Every
// gate is evaluated and recorded even after the first failure, so the audit
// log never hides a lower-severity failure behind an earlier one.
//
// Grounded on the teacher's risk-gate composition in
// internal/heuristics/realtime_risk.go (ScoreTransaction's additive signal
// composition and severity classification) and
// internal/heuristics/risk_roles.go (role -> severity/action mapping,
// mirrored here as gate -> action severity).
package guard

import (
	"github.com/rawblock/evoctl/internal/guard/ethics"
	"github.com/rawblock/evoctl/pkg/models"
)

// Metrics is the full bundle the Guard evaluates for one challenger.
// Missing evidence must be encoded explicitly (e.g. a zero-value bool
// defaulting to a fail-closed state), never left for a gate to assume.
type Metrics struct {
	Rho          float64 // contractivity ratio H(L_psi(k))/H(k)
	ECE          float64
	BiasRatio    float64
	VCurrent     float64 // V(I_t)
	VNext        float64 // V(I_{t+1})
	SR           float64
	DeltaLInf    float64
	CAOSPlus     float64
	CostIncrease float64
	Consent      bool
	EcoOK        bool
	Ethics       models.EthicsReport
	Agape        *ethics.AgapeResult // optional; nil means the gate is NotApplicable
}

// gateSeverity records whether a gate's failure resolves the cycle to
// Reject (discard challenger, preserve state) or Rollback (additionally
// unwind any tentative change and record a higher-severity incident).
type gateSeverity string

const (
	severityRollback gateSeverity = "rollback"
	severityReject   gateSeverity = "reject"
)

// gateFunc evaluates one pure predicate over Metrics and Policy.
type gateFunc func(Metrics, models.Policy) models.GateResult

type gateSpec struct {
	name     string
	severity gateSeverity
	eval     gateFunc
}

// pipeline is the fixed, spec-mandated gate order (spec.md Sec 4.3's
// table). Order only affects audit-log readability; AllPassed and Action
// are derived from the full set regardless of order.
var pipeline = []gateSpec{
	{"contractivity", severityRollback, gateContractivity},
	{"calibration", severityRollback, gateCalibration},
	{"bias", severityRollback, gateBias},
	{"lyapunov", severityRollback, gateLyapunov},
	{"sr_minimum", severityReject, gateSRMinimum},
	{"delta_linf_growth", severityReject, gateDeltaLInfGrowth},
	{"caos_floor", severityReject, gateCAOSFloor},
	{"cost_budget", severityReject, gateCostBudget},
	{"consent", severityRollback, gateConsent},
	{"eco", severityRollback, gateEco},
	{"ethics", severityRollback, gateEthics},
	{"agape_index", severityReject, gateAgape},
}

// Evaluate runs every gate in the fixed pipeline order and returns the
// Verdict. No gate short-circuits another: all twelve GateResults are
// always populated.
func Evaluate(m Metrics, p models.Policy) models.Verdict {
	results := make([]models.GateResult, 0, len(pipeline))
	allPassed := true
	var worstSeverity gateSeverity
	var firstFailReason string

	for _, g := range pipeline {
		r := g.eval(m, p)
		results = append(results, r)
		if r.Status == models.GateFail {
			allPassed = false
			if firstFailReason == "" {
				firstFailReason = r.Rationale
			}
			if worstSeverity == "" || g.severity == severityRollback {
				worstSeverity = g.severity
			}
		}
	}

	v := models.Verdict{AllPassed: allPassed, Gates: results}
	if allPassed {
		v.Action = models.ActionPromote
		v.Reason = "all gates passed"
		return v
	}

	if worstSeverity == severityRollback {
		v.Action = models.ActionRollback
	} else {
		v.Action = models.ActionReject
	}
	v.Reason = firstFailReason
	return v
}
