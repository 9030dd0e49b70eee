package ledger_test

import (
	"testing"
	"time"

	"github.com/rawblock/evoctl/internal/aggregator"
	"github.com/rawblock/evoctl/internal/guard"
	"github.com/rawblock/evoctl/internal/ledger"
	"github.com/rawblock/evoctl/internal/motor"
	"github.com/rawblock/evoctl/pkg/models"
)

func replayPolicy() models.Policy {
	p := models.DefaultPolicy()
	p.BetaMin = 0
	p.CAOSMin = 0
	p.SRMin = 0
	p.RhoMax = 1.0
	return p
}

// buildReplayablePCAg assembles a PCAg the same way internal/cycle does --
// by actually calling aggregator.Compute, motor.CAOSPlus/SROmega and
// guard.Evaluate -- so PCAgVerify has something real to replay rather than
// a hand-faked Verdict.
func buildReplayablePCAg(t *testing.T, policy models.Policy) models.PCAg {
	t.Helper()
	metrics := models.MetricSet{{Name: "acc", Value: 0.9, Weight: 1, Floor: 1e-3}}
	cost := models.CostComponents{}
	ethicsReport := models.EthicsReport{OK: true}

	detail, err := aggregator.Compute(metrics, cost, policy.CostScales, policy.LambdaC, ethicsReport.OK)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	smoothed := models.CAOSComponents{C: 0.8, A: 0.8, O: 0.8, S: 0.8}
	caosPlus := motor.CAOSPlus(policy.Kappa, smoothed.C, smoothed.A, smoothed.O, smoothed.S)
	srSmoothed := models.SRAxes{Awareness: 0.9, EthicsOK: 1, Autocorrection: 0.9, Metacognition: 0.9}
	sr := motor.SROmega(srSmoothed.Awareness, srSmoothed.EthicsOK, srSmoothed.Autocorrection, srSmoothed.Metacognition)

	dyn := models.DynamicsSnapshot{
		Smoothed:   smoothed,
		CAOSPlus:   caosPlus,
		SRSmoothed: srSmoothed,
		SR:         sr,
	}

	guardMetrics := guard.Metrics{
		Rho:          0.1,
		ECE:          0.001,
		BiasRatio:    1.0,
		VCurrent:     1.0,
		VNext:        0.5,
		SR:           sr,
		DeltaLInf:    detail.LInf,
		CAOSPlus:     caosPlus,
		CostIncrease: 0,
		Consent:      true,
		EcoOK:        true,
		Ethics:       ethicsReport,
	}
	verdict := guard.Evaluate(guardMetrics, policy)

	return ledger.BuildPCAg("cycle-replay", ledger.PCAgInput{
		Metrics:        metrics,
		Cost:           cost,
		Ethics:         ethicsReport,
		Dynamics:       dyn,
		LInfChallenger: detail.LInf,
		Gates:          verdict.Gates,
		Verdict:        verdict,
	}, time.Now())
}

func TestPCAgVerify_ReplayableOnACleanPCAg(t *testing.T) {
	policy := replayPolicy()
	pcag := buildReplayablePCAg(t, policy)

	report, err := ledger.PCAgVerify(pcag, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.OK {
		t.Fatalf("expected a replayable PCAg to verify, got %+v", report)
	}
}

func TestPCAgVerify_DetectsAForgedVerdict(t *testing.T) {
	policy := replayPolicy()
	pcag := buildReplayablePCAg(t, policy)

	pcag.Verdict.AllPassed = false
	pcag.Verdict.Action = models.ActionReject

	report, err := ledger.PCAgVerify(pcag, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OK {
		t.Fatal("expected a forged verdict to fail replay")
	}
}

func TestPCAgVerify_DetectsForgedLInf(t *testing.T) {
	policy := replayPolicy()
	pcag := buildReplayablePCAg(t, policy)

	pcag.LInfChallenger += 10

	report, err := ledger.PCAgVerify(pcag, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.OK {
		t.Fatal("expected a forged L_inf to fail replay")
	}
}
