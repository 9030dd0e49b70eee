// Package ethics implements the fourteen LO-01..LO-14 predicates and the
// optional Agape Index gate (spec.md Sec 3's EthicsVerdict tagged union and
// Sec 9's open question on the "Agape Index"). Every predicate is a pure
// function of (Evidence, Policy); none of them override each other, and
// none of them are short-circuited -- the Guard always records all
// fourteen.
//
// Grounded on the teacher's category -> severity mapping in
// internal/heuristics/risk_roles.go and its watch-list predicate style in
// internal/heuristics/watchlist.go (each detector is a small, named, pure
// function returning a flag).
package ethics

import (
	"fmt"

	"github.com/rawblock/evoctl/pkg/models"
)

// predicate evaluates one law over (Evidence, Policy) and returns whether
// it passed plus a short rationale for the failing (or passing) case.
type predicate func(models.Evidence, models.Policy) (bool, string)

var predicates = map[models.LawCode]predicate{
	models.LawAnthropomorphism: func(e models.Evidence, _ models.Policy) (bool, string) {
		if e.AnthropomorphismClaim {
			return false, "challenger output claims subjective experience"
		}
		return true, "no anthropomorphism claim detected"
	},
	models.LawOcultism: func(e models.Evidence, _ models.Policy) (bool, string) {
		if e.OccultFraming {
			return false, "decision framed in occult/mystical terms"
		}
		return true, "no occult framing detected"
	},
	models.LawPhysicalHarm: func(e models.Evidence, _ models.Policy) (bool, string) {
		if e.PhysicalHarmRisk > 0.05 {
			return false, fmt.Sprintf("physical harm risk %v exceeds tolerance 0.05", e.PhysicalHarmRisk)
		}
		return true, "physical harm risk within tolerance"
	},
	models.LawEmotionalHarm: func(e models.Evidence, _ models.Policy) (bool, string) {
		if e.EmotionalHarmRisk > 0.05 {
			return false, fmt.Sprintf("emotional harm risk %v exceeds tolerance 0.05", e.EmotionalHarmRisk)
		}
		return true, "emotional harm risk within tolerance"
	},
	models.LawPrivacy: func(e models.Evidence, _ models.Policy) (bool, string) {
		if e.PIIDetected && !e.ConsentGiven {
			return false, "PII detected without consent"
		}
		return true, "no unconsented PII detected"
	},
	models.LawSecurity: func(e models.Evidence, _ models.Policy) (bool, string) {
		if e.SecurityRegression {
			return false, "challenger weakens an existing security control"
		}
		return true, "no security regression detected"
	},
	models.LawConsent: func(e models.Evidence, _ models.Policy) (bool, string) {
		if !e.ConsentGiven {
			return false, "consent not given"
		}
		return true, "consent given"
	},
	models.LawAutonomy: func(e models.Evidence, _ models.Policy) (bool, string) {
		if !e.AutonomyOverridable {
			return false, "challenger removes human override capability"
		}
		return true, "human override capability preserved"
	},
	models.LawFairness: func(e models.Evidence, p models.Policy) (bool, string) {
		max := p.BiasMax
		if max == 0 {
			max = 1.05
		}
		if e.BiasRatio > max {
			return false, fmt.Sprintf("bias ratio %v exceeds bias_max %v", e.BiasRatio, max)
		}
		return true, "bias ratio within bound"
	},
	models.LawEquity: func(e models.Evidence, _ models.Policy) (bool, string) {
		if e.EquityDisparity > 0.10 {
			return false, fmt.Sprintf("equity disparity %v exceeds tolerance 0.10", e.EquityDisparity)
		}
		return true, "equity disparity within tolerance"
	},
	models.LawAuditability: func(e models.Evidence, _ models.Policy) (bool, string) {
		if !e.AuditTrailComplete {
			return false, "decision trail incomplete"
		}
		return true, "decision trail reconstructable"
	},
	models.LawExplainability: func(e models.Evidence, _ models.Policy) (bool, string) {
		if !e.ExplanationProvided {
			return false, "no rationale accompanies the decision"
		}
		return true, "rationale provided"
	},
	models.LawSustainability: func(e models.Evidence, _ models.Policy) (bool, string) {
		const maxEnergyKWh = 50.0
		if e.Eco.EnergyKWh > maxEnergyKWh {
			return false, fmt.Sprintf("energy cost %v kWh exceeds bound %v kWh", e.Eco.EnergyKWh, maxEnergyKWh)
		}
		return true, "ecological cost within bound"
	},
	models.LawTruthfulness: func(e models.Evidence, _ models.Policy) (bool, string) {
		if e.Misinformation > 0.01 {
			return false, fmt.Sprintf("misinformation score %v exceeds tolerance 0.01", e.Misinformation)
		}
		return true, "misinformation score within tolerance"
	},
}

// Evaluate runs all fourteen predicates in spec.md's fixed LO-01..LO-14
// order and returns the full EthicsReport. Fail-closed: a LawCode with no
// registered predicate is treated as a failure, never silently skipped.
func Evaluate(e models.Evidence, p models.Policy) models.EthicsReport {
	report := models.EthicsReport{OK: true}
	for _, law := range models.AllLaws {
		pred, ok := predicates[law]
		if !ok {
			report.Verdicts = append(report.Verdicts, models.EthicsVerdict{
				Law: law, Passed: false, Evidence: "no predicate registered for this law",
			})
			report.OK = false
			continue
		}
		passed, rationale := pred(e, p)
		report.Verdicts = append(report.Verdicts, models.EthicsVerdict{
			Law: law, Passed: passed, Evidence: rationale,
		})
		if !passed {
			report.OK = false
		}
	}
	return report
}
