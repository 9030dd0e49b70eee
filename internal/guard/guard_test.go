package guard

import (
	"testing"

	"github.com/rawblock/evoctl/pkg/models"
)

func passingEthics() models.EthicsReport {
	verdicts := make([]models.EthicsVerdict, len(models.AllLaws))
	for i, law := range models.AllLaws {
		verdicts[i] = models.EthicsVerdict{Law: law, Passed: true}
	}
	return models.EthicsReport{Verdicts: verdicts, OK: true}
}

func cleanMetrics() Metrics {
	return Metrics{
		Rho: 0.95, ECE: 0.008, BiasRatio: 1.03,
		VCurrent: 2.0, VNext: 1.5,
		SR: 0.848, DeltaLInf: 0.056, CAOSPlus: 1.86,
		CostIncrease: 0.1,
		Consent:      true, EcoOK: true,
		Ethics: passingEthics(),
	}
}

func TestEvaluate_CleanPromotion(t *testing.T) {
	v := Evaluate(cleanMetrics(), models.DefaultPolicy())
	if !v.AllPassed || v.Action != models.ActionPromote {
		t.Fatalf("expected Promote, got action=%v allPassed=%v gates=%+v", v.Action, v.AllPassed, v.Gates)
	}
}

func TestEvaluate_ConsentFalseRollsBack(t *testing.T) {
	m := cleanMetrics()
	m.Consent = false
	v := Evaluate(m, models.DefaultPolicy())
	if v.AllPassed {
		t.Fatal("expected failure when consent=false")
	}
	if v.Action != models.ActionRollback {
		t.Errorf("action = %v, want rollback", v.Action)
	}
	found := false
	for _, g := range v.Gates {
		if g.Name == "consent" && g.Status == models.GateFail {
			found = true
		}
	}
	if !found {
		t.Error("expected consent gate to be recorded as Fail")
	}
}

func TestEvaluate_LyapunovRegressionRollsBack(t *testing.T) {
	m := cleanMetrics()
	m.VNext = m.VCurrent + 0.5 // V increased: no descent
	v := Evaluate(m, models.DefaultPolicy())
	if v.AllPassed || v.Action != models.ActionRollback {
		t.Fatalf("expected rollback on Lyapunov regression, got %+v", v)
	}
}

func TestEvaluate_LowDeltaLInfRejects(t *testing.T) {
	m := cleanMetrics()
	m.DeltaLInf = 0.001 // below beta_min
	v := Evaluate(m, models.DefaultPolicy())
	if v.AllPassed {
		t.Fatal("expected failure on low delta L_inf")
	}
	if v.Action != models.ActionReject {
		t.Errorf("action = %v, want reject (score gate, not a hard safety gate)", v.Action)
	}
}

func TestEvaluate_AllGatesAlwaysRecorded(t *testing.T) {
	m := cleanMetrics()
	m.Consent = false
	m.VNext = m.VCurrent + 1 // also fail lyapunov
	v := Evaluate(m, models.DefaultPolicy())
	if len(v.Gates) != 12 {
		t.Fatalf("expected all 12 gates recorded even with multiple failures, got %d", len(v.Gates))
	}
	failedCount := 0
	for _, g := range v.Gates {
		if g.Status == models.GateFail {
			failedCount++
		}
	}
	if failedCount < 2 {
		t.Errorf("expected at least 2 recorded failures, got %d", failedCount)
	}
}

func TestEvaluate_MissingEthicsEvidenceFailsClosed(t *testing.T) {
	m := cleanMetrics()
	m.Ethics = models.EthicsReport{}
	v := Evaluate(m, models.DefaultPolicy())
	if v.AllPassed {
		t.Fatal("absence of ethics evidence must fail closed")
	}
}

func TestEvaluate_EveryRejectOrRollbackHasAFailedGate(t *testing.T) {
	cases := []Metrics{cleanMetrics()}
	cases[0].Consent = false
	for _, m := range cases {
		v := Evaluate(m, models.DefaultPolicy())
		if v.Action == models.ActionReject || v.Action == models.ActionRollback {
			if len(v.FailedGates()) == 0 {
				t.Errorf("action=%v but no gate recorded Fail", v.Action)
			}
		}
	}
}

func TestEvaluate_PromoteRequiresAllPass(t *testing.T) {
	m := cleanMetrics()
	v := Evaluate(m, models.DefaultPolicy())
	if v.Action == models.ActionPromote {
		for _, g := range v.Gates {
			if g.Status == models.GateFail {
				t.Errorf("action=Promote but gate %q failed", g.Name)
			}
		}
	}
}
