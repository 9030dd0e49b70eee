package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/evoctl/internal/aggregator"
	"github.com/rawblock/evoctl/internal/guard"
	"github.com/rawblock/evoctl/internal/guard/ethics"
	"github.com/rawblock/evoctl/internal/motor"
	"github.com/rawblock/evoctl/pkg/models"
)

// replayEpsilon is the floating-point tolerance PCAgVerify allows between a
// recomputed scalar and the one recorded in the PCAg.
const replayEpsilon = 1e-6

// PCAgInput collects the intermediate results every earlier stage
// (Aggregator, Motor, Guard, Updater) already produced, for BuildPCAg to
// transcribe into the self-contained decision record for one cycle.
type PCAgInput struct {
	ChampionHash   string
	ChallengerHash string
	Metrics        models.MetricSet
	Cost           models.CostComponents
	Ethics         models.EthicsReport
	Dynamics       models.DynamicsSnapshot
	AlphaEff       float64
	LInfChampion   float64
	LInfChallenger float64
	Gates          []models.GateResult
	Verdict        models.Verdict
	EvidenceRoot   string
	PolicySnapshot string
	ErrorChain     []string
}

// NewCycleID mints a fresh random cycle identifier (spec.md Sec 6: "uuid +
// ledger sequence pair" -- the sequence half is assigned only once the
// Ledger accepts the Append, so a cycle ID is provisional until committed).
func NewCycleID() string {
	return uuid.New().String()
}

// BuildPCAg constructs the PCAg for one cycle. createdAt is passed in
// explicitly rather than sampled internally, keeping this function a pure
// transformation the way every other spec component is.
func BuildPCAg(cycleID string, in PCAgInput, createdAt time.Time) models.PCAg {
	return models.PCAg{
		CycleID:        cycleID,
		ChampionHash:   in.ChampionHash,
		ChallengerHash: in.ChallengerHash,
		Metrics:        in.Metrics,
		Cost:           in.Cost,
		EthicsEvidence: in.Ethics,
		Dynamics:       in.Dynamics,
		AlphaEff:       in.AlphaEff,
		LInfChampion:   in.LInfChampion,
		LInfChallenger: in.LInfChallenger,
		DeltaLInf:      in.LInfChallenger - in.LInfChampion,
		Gates:          in.Gates,
		Verdict:        in.Verdict,
		EvidenceRoot:   in.EvidenceRoot,
		PolicySnapshot: in.PolicySnapshot,
		ErrorChain:     in.ErrorChain,
		CreatedAt:      createdAt,
	}
}

// VerifyPCAg recomputes a PCAg's own payload hash and compares it against
// an externally supplied expected value (typically the hash recorded in its
// LedgerEntry), confirming the artifact hasn't been altered since it was
// chained.
func VerifyPCAg(pcag models.PCAg, expectedPayloadHash string) (bool, error) {
	got, err := payloadHash(pcag)
	if err != nil {
		return false, fmt.Errorf("failed to hash PCAg: %w", err)
	}
	return got == expectedPayloadHash, nil
}

// PCAgVerify is spec.md Sec 6's pcag_verify(pcag, policy) -> VerifyReport
// entrypoint: it replays L_inf (internal/aggregator.Compute), CAOS+/SR
// (internal/motor) and the full Guard pipeline (internal/guard.Evaluate)
// from the PCAg's own recorded fields, then diffs the replayed outcome
// against the Verdict the PCAg claims. Unlike VerifyPCAg, which only
// detects whether the payload bytes were altered, this detects whether the
// recorded Verdict could ever have been produced by the recorded evidence
// under policy -- the PCAg replayability property spec.md Sec 8 requires.
func PCAgVerify(pcag models.PCAg, policy models.Policy) (VerifyReport, error) {
	agg, err := aggregator.Compute(pcag.Metrics, pcag.Cost, policy.CostScales, policy.LambdaC, pcag.EthicsEvidence.OK)
	if err != nil {
		return VerifyReport{OK: false, Reason: fmt.Sprintf("failed to replay L_inf: %v", err)}, nil
	}
	if math.Abs(agg.LInf-pcag.LInfChallenger) > replayEpsilon {
		return VerifyReport{OK: false, Reason: fmt.Sprintf("replayed L_inf %v does not match recorded challenger L_inf %v", agg.LInf, pcag.LInfChallenger)}, nil
	}

	caosPlus := motor.CAOSPlus(policy.Kappa, pcag.Dynamics.Smoothed.C, pcag.Dynamics.Smoothed.A, pcag.Dynamics.Smoothed.O, pcag.Dynamics.Smoothed.S)
	if math.Abs(caosPlus-pcag.Dynamics.CAOSPlus) > replayEpsilon {
		return VerifyReport{OK: false, Reason: fmt.Sprintf("replayed CAOS+ %v does not match recorded CAOS+ %v", caosPlus, pcag.Dynamics.CAOSPlus)}, nil
	}

	sr := motor.SROmega(pcag.Dynamics.SRSmoothed.Awareness, pcag.Dynamics.SRSmoothed.EthicsOK, pcag.Dynamics.SRSmoothed.Autocorrection, pcag.Dynamics.SRSmoothed.Metacognition)
	if math.Abs(sr-pcag.Dynamics.SR) > replayEpsilon {
		return VerifyReport{OK: false, Reason: fmt.Sprintf("replayed SR %v does not match recorded SR %v", sr, pcag.Dynamics.SR)}, nil
	}

	m, err := guardMetricsFromPCAg(pcag)
	if err != nil {
		return VerifyReport{OK: false, Reason: err.Error()}, nil
	}
	replayed := guard.Evaluate(m, policy)
	if replayed.AllPassed != pcag.Verdict.AllPassed || replayed.Action != pcag.Verdict.Action {
		return VerifyReport{OK: false, Reason: fmt.Sprintf(
			"replayed verdict (passed=%v action=%s) does not match recorded verdict (passed=%v action=%s)",
			replayed.AllPassed, replayed.Action, pcag.Verdict.AllPassed, pcag.Verdict.Action)}, nil
	}

	return VerifyReport{OK: true, EntriesChecked: 1}, nil
}

// guardMetricsFromPCAg reconstructs the Guard's input bundle from a PCAg's
// own recorded GateResults and Dynamics, so a replay never needs the
// original cycle's Evidence -- only what the PCAg itself carries forward.
func guardMetricsFromPCAg(pcag models.PCAg) (guard.Metrics, error) {
	measured := make(map[string]float64, len(pcag.Gates))
	threshold := make(map[string]float64, len(pcag.Gates))
	var agapeStatus models.GateStatus
	var agapeMeasured float64
	for _, g := range pcag.Gates {
		measured[g.Name] = g.MeasuredValue
		threshold[g.Name] = g.Threshold
		if g.Name == "agape_index" {
			agapeStatus = g.Status
			agapeMeasured = g.MeasuredValue
		}
	}

	required := []string{"contractivity", "calibration", "bias", "lyapunov", "cost_budget", "consent", "eco"}
	for _, name := range required {
		if _, ok := measured[name]; !ok {
			return guard.Metrics{}, fmt.Errorf("PCAg is missing a %q gate result, cannot replay", name)
		}
	}

	var agape *ethics.AgapeResult
	if agapeStatus != "" && agapeStatus != models.GateNotApplicable {
		agape = &ethics.AgapeResult{Index: agapeMeasured}
	}

	return guard.Metrics{
		Rho:          measured["contractivity"],
		ECE:          measured["calibration"],
		BiasRatio:    measured["bias"],
		VCurrent:     threshold["lyapunov"],
		VNext:        measured["lyapunov"],
		SR:           pcag.Dynamics.SR,
		DeltaLInf:    pcag.DeltaLInf,
		CAOSPlus:     pcag.Dynamics.CAOSPlus,
		CostIncrease: measured["cost_budget"],
		Consent:      measured["consent"] >= 1.0,
		EcoOK:        measured["eco"] >= 1.0,
		Ethics:       pcag.EthicsEvidence,
		Agape:        agape,
	}, nil
}
