package ethics

import (
	"testing"

	"github.com/rawblock/evoctl/pkg/models"
)

func cleanEvidence() models.Evidence {
	return models.Evidence{
		Metrics:             models.MetricSet{{Name: "acc", Value: 0.9, Weight: 1}},
		BiasRatio:           1.0,
		ConsentGiven:        true,
		AutonomyOverridable: true,
		AuditTrailComplete:  true,
		ExplanationProvided: true,
	}
}

func TestEvaluate_AllPassOnCleanEvidence(t *testing.T) {
	r := Evaluate(cleanEvidence(), models.DefaultPolicy())
	if !r.OK {
		t.Fatalf("expected OK, got failures: %+v", r.Verdicts)
	}
	if len(r.Verdicts) != len(models.AllLaws) {
		t.Fatalf("expected %d verdicts, got %d", len(models.AllLaws), len(r.Verdicts))
	}
}

func TestEvaluate_PrivacyFailsWithoutConsent(t *testing.T) {
	e := cleanEvidence()
	e.PIIDetected = true
	e.ConsentGiven = false
	r := Evaluate(e, models.DefaultPolicy())
	if r.OK {
		t.Fatal("expected LO-05 failure")
	}
	found := false
	for _, v := range r.Verdicts {
		if v.Law == models.LawPrivacy && !v.Passed {
			found = true
		}
		if v.Law == models.LawConsent && v.Passed {
			t.Error("LO-07 consent should also fail when ConsentGiven is false")
		}
	}
	if !found {
		t.Error("expected LO-05 privacy verdict to fail")
	}
}

func TestEvaluate_EmotionalHarmFailsAboveTolerance(t *testing.T) {
	e := cleanEvidence()
	e.EmotionalHarmRisk = 0.2
	r := Evaluate(e, models.DefaultPolicy())
	if r.OK {
		t.Fatal("expected LO-04 emotional harm failure above tolerance")
	}
	for _, v := range r.Verdicts {
		if v.Law == models.LawEmotionalHarm && v.Passed {
			t.Error("LO-04 should have failed")
		}
	}
}

func TestEvaluate_FairnessRespectsPolicyBiasMax(t *testing.T) {
	e := cleanEvidence()
	e.BiasRatio = 2.0
	p := models.DefaultPolicy()
	r := Evaluate(e, p)
	if r.OK {
		t.Fatal("expected LO-09 fairness failure above bias_max")
	}
}

func TestComputeAgapeIndex_PenalizesSacrificeCost(t *testing.T) {
	virtues := AgapeVirtues{Patience: 0.8, Kindness: 0.8, Humility: 0.8, Generosity: 0.8}
	cheap := ComputeAgapeIndex(virtues, 0)
	expensive := ComputeAgapeIndex(virtues, 2.0)
	if expensive.Index >= cheap.Index {
		t.Errorf("expected sacrificial cost to reduce the index: cheap=%v expensive=%v", cheap.Index, expensive.Index)
	}
}

func TestEvaluate_FailClosedOnAllLaws(t *testing.T) {
	// A zero-value Evidence should fail most predicates, never panic or
	// silently skip a law.
	r := Evaluate(models.Evidence{}, models.DefaultPolicy())
	if r.OK {
		t.Fatal("zero-value evidence should not pass ethics review")
	}
}
