package guard

import (
	"fmt"

	"github.com/rawblock/evoctl/internal/guard/ethics"
	"github.com/rawblock/evoctl/pkg/models"
)

func gateContractivity(m Metrics, p models.Policy) models.GateResult {
	threshold := p.RhoMax
	if threshold == 0 {
		threshold = 1.0
	}
	// spec.md Sec 9: this spec adopts strict inequality (rho < rho_max) to
	// match the Lyapunov descent requirement.
	pass := m.Rho < threshold
	return result("contractivity", pass, m.Rho, threshold,
		fmt.Sprintf("rho=%v must be < rho_max=%v", m.Rho, threshold))
}

func gateCalibration(m Metrics, p models.Policy) models.GateResult {
	threshold := p.ECEMax
	if threshold == 0 {
		threshold = 0.01
	}
	pass := m.ECE <= threshold
	return result("calibration", pass, m.ECE, threshold,
		fmt.Sprintf("ece=%v must be <= ece_max=%v", m.ECE, threshold))
}

func gateBias(m Metrics, p models.Policy) models.GateResult {
	threshold := p.BiasMax
	if threshold == 0 {
		threshold = 1.05
	}
	pass := m.BiasRatio <= threshold
	return result("bias", pass, m.BiasRatio, threshold,
		fmt.Sprintf("bias_ratio=%v must be <= bias_max=%v", m.BiasRatio, threshold))
}

func gateLyapunov(m Metrics, _ models.Policy) models.GateResult {
	pass := m.VNext < m.VCurrent
	return result("lyapunov", pass, m.VNext, m.VCurrent,
		fmt.Sprintf("V(I_t+1)=%v must be < V(I_t)=%v", m.VNext, m.VCurrent))
}

func gateSRMinimum(m Metrics, p models.Policy) models.GateResult {
	threshold := p.SRMin
	if threshold == 0 {
		threshold = 0.80
	}
	pass := m.SR >= threshold
	return result("sr_minimum", pass, m.SR, threshold,
		fmt.Sprintf("sr=%v must be >= sr_min=%v", m.SR, threshold))
}

func gateDeltaLInfGrowth(m Metrics, p models.Policy) models.GateResult {
	threshold := p.BetaMin
	if threshold == 0 {
		threshold = 0.01
	}
	pass := m.DeltaLInf >= threshold
	return result("delta_linf_growth", pass, m.DeltaLInf, threshold,
		fmt.Sprintf("delta_linf=%v must be >= beta_min=%v", m.DeltaLInf, threshold))
}

func gateCAOSFloor(m Metrics, p models.Policy) models.GateResult {
	threshold := p.CAOSMin
	pass := m.CAOSPlus >= threshold
	return result("caos_floor", pass, m.CAOSPlus, threshold,
		fmt.Sprintf("caos_plus=%v must be >= caos_min=%v", m.CAOSPlus, threshold))
}

func gateCostBudget(m Metrics, p models.Policy) models.GateResult {
	threshold := p.CostMax
	pass := m.CostIncrease <= threshold
	return result("cost_budget", pass, m.CostIncrease, threshold,
		fmt.Sprintf("cost_increase=%v must be <= cost_max=%v", m.CostIncrease, threshold))
}

func gateConsent(m Metrics, _ models.Policy) models.GateResult {
	measured := 0.0
	if m.Consent {
		measured = 1.0
	}
	return result("consent", m.Consent, measured, 1.0, "consent must be true")
}

func gateEco(m Metrics, _ models.Policy) models.GateResult {
	measured := 0.0
	if m.EcoOK {
		measured = 1.0
	}
	return result("eco", m.EcoOK, measured, 1.0, "eco_ok must be true")
}

// gateEthics is the single conjunctive gate for all fourteen LO-01..LO-14
// predicates: any predicate failing fails the whole gate (spec.md Sec 4.3
// row 11: "all 14 predicates hold").
func gateEthics(m Metrics, _ models.Policy) models.GateResult {
	if len(m.Ethics.Verdicts) == 0 {
		// Absence of evidence is itself a Fail (spec.md Sec 4.3 contract).
		return result("ethics", false, 0, 1, "no ethics evidence supplied")
	}
	measured := 0.0
	if m.Ethics.OK {
		measured = 1.0
	}
	rationale := "all LO-01..LO-14 predicates passed"
	if fail := m.Ethics.FirstFailure(); fail != nil {
		rationale = fmt.Sprintf("%s failed: %s", fail.Law, fail.Evidence)
	}
	return result("ethics", m.Ethics.OK, measured, 1.0, rationale)
}

// gateAgape evaluates the optional, non-overriding Agape Index gate
// (spec.md Sec 9 open question): it is logged but can only downgrade a
// Promote to a Reject on its own, never to a Rollback, and it never
// overrides the fourteen hard LO-xx predicates.
func gateAgape(m Metrics, p models.Policy) models.GateResult {
	if m.Agape == nil {
		return models.GateResult{
			Name:      "agape_index",
			Status:    models.GateNotApplicable,
			Rationale: "agape index not supplied for this cycle",
		}
	}
	threshold := ethics.DefaultAgapeThreshold
	pass := m.Agape.Index >= threshold
	return result("agape_index", pass, m.Agape.Index, threshold,
		fmt.Sprintf("agape_index=%v must be >= %v", m.Agape.Index, threshold))
}

func result(name string, pass bool, measured, threshold float64, rationale string) models.GateResult {
	status := models.GateFail
	if pass {
		status = models.GatePass
	}
	return models.GateResult{
		Name:          name,
		Status:        status,
		MeasuredValue: measured,
		Threshold:     threshold,
		Rationale:     rationale,
	}
}
