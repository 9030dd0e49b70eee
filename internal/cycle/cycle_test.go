package cycle

import (
	"context"
	"testing"

	"github.com/rawblock/evoctl/internal/evaluator"
	"github.com/rawblock/evoctl/internal/ledger"
	"github.com/rawblock/evoctl/internal/motor"
	"github.com/rawblock/evoctl/internal/mutator"
	"github.com/rawblock/evoctl/pkg/models"
)

func cleanFunc(value float64) evaluator.FuncEvaluator {
	return func(ctx context.Context, c models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error) {
		return models.MetricSet{{Name: "acc", Value: value, Weight: 1}},
			models.CostComponents{"compute": 0.05},
			models.Evidence{
				ConsentGiven:        true,
				AutonomyOverridable: true,
				AuditTrailComplete:  true,
				ExplanationProvided: true,
				BiasRatio:           1.0,
			}, nil
	}
}

func testPolicy() models.Policy {
	p := models.DefaultPolicy()
	p.MetricWeight = map[string]float64{}
	p.Alpha0 = 0.05
	p.AlphaMin = 1e-6
	p.AlphaMax = 0.5
	p.MaxNorm = 100
	p.BetaMin = 0.0001 // low bar: the champion/challenger both score near the same fixed value here
	p.CAOSMin = 0
	p.SRMin = 0
	return p
}

func newController(fn evaluator.FuncEvaluator) *Controller {
	return New(
		mutator.New(0.01, 0.05),
		&evaluator.Suite{Evaluator: fn},
		motor.New(5, 5),
		ledger.NewMemory(),
	)
}

func TestRun_PromotesOnAClearImprovement(t *testing.T) {
	// The champion is evaluated with a mediocre fixed score; every
	// challenger (by construction of FuncEvaluator here) scores higher,
	// so the best challenger should promote.
	calls := 0
	fn := evaluator.FuncEvaluator(func(ctx context.Context, c models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error) {
		calls++
		value := 0.95
		if c.ID == "champion" {
			value = 0.5
		}
		return cleanFunc(value)(ctx, c)
	})
	ctrl := newController(fn)
	champion := models.NewGenesisState(3)
	champion.Vector = []float64{0, 0, 0}

	next, entry, err := ctrl.Run(context.Background(), champion, testPolicy(), 1, 3, "perturbation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Sequence != 0 {
		t.Errorf("expected the first cycle to append at sequence 0, got %d", entry.Sequence)
	}
	if !entry.Payload.Verdict.AllPassed {
		t.Fatalf("expected promotion, got verdict: %+v", entry.Payload.Verdict)
	}
	if next.Version != champion.Version+1 {
		t.Errorf("expected version bump on promotion, got %d -> %d", champion.Version, next.Version)
	}
}

func TestRun_RejectsWithoutConsent(t *testing.T) {
	fn := evaluator.FuncEvaluator(func(ctx context.Context, c models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error) {
		m, cost, e, err := cleanFunc(0.95)(ctx, c)
		e.ConsentGiven = false
		return m, cost, e, err
	})
	ctrl := newController(fn)
	champion := models.NewGenesisState(3)

	next, entry, err := ctrl.Run(context.Background(), champion, testPolicy(), 2, 3, "perturbation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Payload.Verdict.AllPassed {
		t.Fatal("expected the consent gate to block promotion")
	}
	if next.Version != champion.Version {
		t.Error("expected no version bump on a rollback")
	}
}

func TestRun_AppendsExactlyOneEntryPerCall(t *testing.T) {
	ctrl := newController(cleanFunc(0.8))
	champion := models.NewGenesisState(2)

	for i := 0; i < 3; i++ {
		if _, _, err := ctrl.Run(context.Background(), champion, testPolicy(), uint64(i+1), 2, "perturbation"); err != nil {
			t.Fatalf("cycle %d: unexpected error: %v", i, err)
		}
	}
	report, err := ctrl.Ledger.Verify(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.OK || report.EntriesChecked != 3 {
		t.Fatalf("expected a clean 3-entry chain, got %+v", report)
	}
}

func TestRun_CancelledContextProducesNoStateChange(t *testing.T) {
	ctrl := newController(cleanFunc(0.9))
	champion := models.NewGenesisState(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	next, entry, err := ctrl.Run(ctx, champion, testPolicy(), 1, 2, "perturbation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Payload.Verdict.AllPassed {
		t.Fatal("a cancelled cycle must never promote")
	}
	if next.Version != champion.Version {
		t.Error("expected state unchanged on cancellation")
	}
}

func TestRun_InvalidPolicyIsRefusedBeforeAnyLedgerWrite(t *testing.T) {
	ctrl := newController(cleanFunc(0.9))
	champion := models.NewGenesisState(2)
	bad := testPolicy()
	bad.AlphaMin = 0 // invalid per Policy.Validate

	_, _, err := ctrl.Run(context.Background(), champion, bad, 1, 2, "perturbation")
	if err == nil {
		t.Fatal("expected an invalid policy to be refused")
	}
	head, ok, _ := ctrl.Ledger.Head(context.Background())
	if ok {
		t.Errorf("expected no ledger entry for a refused policy, got %+v", head)
	}
}
