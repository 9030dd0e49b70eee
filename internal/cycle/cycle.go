// Package cycle implements the single external entrypoint of spec.md Sec 6:
// cycle(state, policy, mutator, evaluator) -> (state', pcag). It wires
// Mutator -> Evaluator -> Aggregator -> Motor -> Guard -> Updater -> Ledger
// into the one fixed pipeline order every cycle follows, with the
// concurrency and failure semantics of spec.md Sec 5: a single-writer State
// discipline (Run takes ownership of champion for its duration and never
// shares it with a concurrent caller), cooperative cancellation producing a
// minimal Cancelled PCAg rather than a partial one, and any unhandled error
// resolving to Rollback plus an InternalError PCAg -- never a retry within
// the same cycle.
//
// Grounded on the teacher's bounded run-loop style
// (internal/mempool/poller.go's Poll, which owns one ctx-scoped pass over
// its input and never launches a second pass before the first returns).
package cycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rawblock/evoctl/internal/aggregator"
	"github.com/rawblock/evoctl/internal/evaluator"
	"github.com/rawblock/evoctl/internal/guard"
	"github.com/rawblock/evoctl/internal/guard/ethics"
	"github.com/rawblock/evoctl/internal/ledger"
	"github.com/rawblock/evoctl/internal/motor"
	"github.com/rawblock/evoctl/internal/mutator"
	"github.com/rawblock/evoctl/internal/updater"
	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// ecoEnergyBudgetKWh bounds the Guard's operational "eco" gate. Distinct
// from ethics.LawSustainability's own bound: the ethics predicate is a hard
// per-law veto, this is the Guard's aggregate operational budget check, and
// the two are allowed to use the same number without being the same gate.
const ecoEnergyBudgetKWh = 50.0

// Controller owns the collaborators one cycle needs: a Mutator to propose
// challengers, an evaluator.Suite to score them, a Motor to smooth their
// dynamics, and a Ledger to commit the resulting PCAg to.
type Controller struct {
	Mutator  *mutator.Mutator
	Suite    *evaluator.Suite
	Motor    *motor.Motor
	Ledger   ledger.Ledger
}

// New constructs a Controller from its collaborators.
func New(m *mutator.Mutator, suite *evaluator.Suite, mtr *motor.Motor, led ledger.Ledger) *Controller {
	return &Controller{Mutator: m, Suite: suite, Motor: mtr, Ledger: led}
}

// Run executes exactly one cycle against champion and returns the next
// State (which may be champion unchanged, cloned, if the cycle did not
// promote) plus the LedgerEntry the cycle committed. Once policy passes
// Validate, Run appends to the Ledger exactly once, whatever the outcome --
// a Reject or Rollback is still an auditable event, not a silent no-op. A
// policy that fails Validate is returned as an error before any ledger
// write.
func (c *Controller) Run(ctx context.Context, champion *models.State, policy models.Policy, seed uint64, challengerCount int, mutationType string) (next *models.State, entry models.LedgerEntry, err error) {
	cycleID := ledger.NewCycleID()
	now := time.Now().UTC()

	defer func() {
		if r := recover(); r != nil {
			next, entry, err = c.rollbackOnPanic(ctx, champion, cycleID, now, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		next, entry, cerr := c.cancelledOutcome(ctx, champion, cycleID, now)
		if cerr != nil {
			return champion.Clone(), models.LedgerEntry{}, cerr
		}
		return next, entry, nil
	}
	if err := policy.Validate(); err != nil {
		return champion.Clone(), models.LedgerEntry{}, err
	}

	challengers, err := c.Mutator.Propose(champion, seed, challengerCount, mutationType)
	if err != nil {
		return c.commitInternalError(ctx, champion, cycleID, now, err)
	}

	results := c.Suite.Run(ctx, challengers)

	championEvidence, championEval := c.evaluateChampion(ctx, champion)
	if championEval != nil {
		return c.commitInternalError(ctx, champion, cycleID, now, championEval)
	}

	championDetail, err := aggregator.Compute(championEvidence.Metrics, championEvidence.Cost, policy.CostScales, policy.LambdaC, true)
	if err != nil {
		return c.commitInternalError(ctx, champion, cycleID, now, err)
	}

	winner, winnerDetail, winnerEthics, ok := c.selectWinner(results, policy)
	if !ok {
		// Every challenger failed evaluation or aggregation: no promotion is
		// possible this cycle, but the attempt is still recorded.
		return c.commitOutcome(ctx, champion, champion, cycleID, now, PCAgBuild{
			ChampionDetail: championDetail,
			Verdict:        models.Verdict{AllPassed: false, Action: models.ActionReject, Reason: "no challenger produced usable evidence"},
			AlphaEff:       0,
		})
	}

	dyn, err := c.Motor.Step(policy.Kappa, deriveCAOS(winner.Evidence, policy.CostScales, policy.CostMax), deriveSR(winner.Evidence, winnerEthics.OK))
	if err != nil {
		return c.commitInternalError(ctx, champion, cycleID, now, err)
	}

	alphaEff := updater.EffectiveAlpha(policy.Alpha0, dyn.CAOSPlus, dyn.SR, policy.AlphaMin, policy.AlphaMax)
	direction := gradientDirection(champion.Vector, winner.Challenger.Params)

	// Tentative next-state projection, computed before the Guard runs so the
	// Lyapunov gate can see the actual post-projection descent rather than a
	// pre-projection estimate. updater.Advance recomputes this same
	// projection when it commits; the duplication is deliberate -- the
	// Guard must see the real post-projection Lyapunov value, and Advance
	// must never commit without re-deriving it itself rather than trusting
	// a value computed outside its own control flow.
	raw := make([]float64, len(champion.Vector))
	for i := range raw {
		raw[i] = champion.Vector[i] + alphaEff*direction[i]
	}
	tentative, _ := updater.Project(raw, policy)
	// No declared attractor makes no claim about convergence: sentinel values
	// that trivially satisfy the Guard's strict-descent check (VNext <
	// VCurrent) rather than the degenerate 0 < 0, mirroring updater.Advance's
	// own "nil target is vacuously satisfied" rule.
	vCurrent, vNext := 1.0, 0.0
	if policy.LyapunovTarget != nil {
		vCurrent = lyapunovOf(champion.Vector, policy.LyapunovTarget)
		vNext = lyapunovOf(tentative, policy.LyapunovTarget)
	}

	agape := ethics.ComputeAgapeIndex(deriveAgapeVirtues(winner.Evidence, policy.CostMax), winner.Evidence.SacrificialCost)
	guardMetrics := guard.Metrics{
		Rho:          contractivityRatio(vCurrent, vNext),
		ECE:          winner.Evidence.ECE(),
		BiasRatio:    winner.Evidence.BiasRatio,
		VCurrent:     vCurrent,
		VNext:        vNext,
		SR:           dyn.SR,
		DeltaLInf:    winnerDetail.LInf - championDetail.LInf,
		CAOSPlus:     dyn.CAOSPlus,
		CostIncrease: winner.Evidence.Cost.Total(policy.CostScales),
		Consent:      winner.Evidence.ConsentGiven,
		EcoOK:        winner.Evidence.Eco.EnergyKWh <= ecoEnergyBudgetKWh,
		Ethics:       winnerEthics,
		Agape:        &agape,
	}
	verdict := guard.Evaluate(guardMetrics, policy)

	nextState, updateRec, uerr := updater.Advance(champion, direction, dyn.CAOSPlus, dyn.SR, policy, verdict)
	if uerr != nil {
		return c.commitInternalError(ctx, champion, cycleID, now, uerr)
	}
	return c.commitOutcome(ctx, champion, nextState, cycleID, now, PCAgBuild{
		ChampionDetail:   championDetail,
		ChallengerDetail: winnerDetail,
		ChallengerHash:   winner.Challenger.Hash,
		Evidence:         winner.Evidence,
		Ethics:           winnerEthics,
		Dynamics:         dyn,
		AlphaEff:         updateRec.AlphaEff,
		Gates:            verdict.Gates,
		Verdict:          verdict,
	})
}

// evaluateChampion scores the champion itself through the same Evaluator so
// the Aggregator has a like-for-like L_inf to diff the winning challenger
// against.
func (c *Controller) evaluateChampion(ctx context.Context, champion *models.State) (models.Evidence, error) {
	pseudo := models.Challenger{ID: "champion", MutationType: "none", Params: champion.Vector, Hash: champion.SnapshotHash}
	metrics, cost, evidence, err := c.Suite.Evaluator.Evaluate(ctx, pseudo)
	if err != nil {
		return models.Evidence{}, fmt.Errorf("%w: champion evaluation failed: %v", evoerrs.ErrEvidenceError, err)
	}
	evidence.Metrics = metrics
	evidence.Cost = cost
	return evidence, nil
}

// winnerPick bundles one challenger's full outcome for the rest of Run.
type winnerPick struct {
	Challenger models.Challenger
	Evidence   models.Evidence
}

func (c *Controller) selectWinner(results []evaluator.Result, policy models.Policy) (winnerPick, aggregator.Detail, models.EthicsReport, bool) {
	var candidates []aggregator.Candidate
	var picks []winnerPick
	var ethicsReports []models.EthicsReport
	var details []aggregator.Detail

	for _, r := range results {
		if r.Err != nil {
			continue
		}
		report := ethics.Evaluate(r.Evidence, policy)
		detail, err := aggregator.Compute(r.Metrics, r.Cost, policy.CostScales, policy.LambdaC, report.OK)
		if err != nil {
			continue
		}
		candidates = append(candidates, aggregator.Candidate{
			Challenger: r.Challenger,
			LInf:       detail.LInf,
			CostTotal:  r.Cost.Total(policy.CostScales),
			Norm:       models.Distance(r.Challenger.Params, make([]float64, len(r.Challenger.Params))),
		})
		picks = append(picks, winnerPick{Challenger: r.Challenger, Evidence: r.Evidence})
		ethicsReports = append(ethicsReports, report)
		details = append(details, detail)
	}

	if len(candidates) == 0 {
		return winnerPick{}, aggregator.Detail{}, models.EthicsReport{}, false
	}
	idx := aggregator.SelectBest(candidates)
	return picks[idx], details[idx], ethicsReports[idx], true
}

// gradientDirection is the challenger's displacement from the champion: the
// ascent direction G the Updater advances the champion along when the cycle
// promotes (spec.md Sec 4.4: I' = I + alpha_eff * G).
func gradientDirection(champion, challenger []float64) []float64 {
	g := make([]float64, len(champion))
	for i := range g {
		c := 0.0
		if i < len(challenger) {
			c = challenger[i]
		}
		g[i] = c - champion[i]
	}
	return g
}

func lyapunovOf(vector, target []float64) float64 {
	if target == nil {
		return 0
	}
	var sumSq float64
	for i, v := range vector {
		d := v
		if i < len(target) {
			d = v - target[i]
		}
		sumSq += d * d
	}
	return sumSq
}

// contractivityRatio is rho: how far the projected state sits from the
// Lyapunov target relative to where the current state sits. rho < 1 means
// the update contracted toward the target.
func contractivityRatio(vCurrent, vNext float64) float64 {
	if vCurrent <= 0 {
		return 0
	}
	ratio := vNext / vCurrent
	if ratio < 0 {
		ratio = 0
	}
	return math.Sqrt(ratio)
}

func (c *Controller) cancelledOutcome(ctx context.Context, champion *models.State, cycleID string, now time.Time) (*models.State, models.LedgerEntry, error) {
	pcag := ledger.BuildPCAg(cycleID, ledger.PCAgInput{
		ChampionHash: champion.SnapshotHash,
		Verdict:      models.Verdict{AllPassed: false, Action: models.ActionReject, Reason: "cycle cancelled"},
		ErrorChain:   []string{"cancelled: " + ctx.Err().Error()},
	}, now)
	entry, err := c.Ledger.Append(ctx, pcag)
	return champion.Clone(), entry, err
}

func (c *Controller) rollbackOnPanic(ctx context.Context, champion *models.State, cycleID string, now time.Time, r interface{}) (*models.State, models.LedgerEntry, error) {
	pcag := ledger.BuildPCAg(cycleID, ledger.PCAgInput{
		ChampionHash: champion.SnapshotHash,
		Verdict:      models.Verdict{AllPassed: false, Action: models.ActionRollback, Reason: "unhandled panic"},
		ErrorChain:   []string{evoerrs.ErrInternalError.Error(), fmt.Sprintf("panic: %v", r)},
	}, now)
	entry, err := c.Ledger.Append(context.Background(), pcag)
	if err != nil {
		return champion.Clone(), models.LedgerEntry{}, err
	}
	return champion.Clone(), entry, nil
}

func (c *Controller) commitInternalError(ctx context.Context, champion *models.State, cycleID string, now time.Time, cause error) (*models.State, models.LedgerEntry, error) {
	pcag := ledger.BuildPCAg(cycleID, ledger.PCAgInput{
		ChampionHash: champion.SnapshotHash,
		Verdict:      models.Verdict{AllPassed: false, Action: models.ActionRollback, Reason: cause.Error()},
		ErrorChain:   []string{evoerrs.ErrInternalError.Error(), cause.Error()},
	}, now)
	entry, err := c.Ledger.Append(ctx, pcag)
	if err != nil {
		return champion.Clone(), models.LedgerEntry{}, errors.Join(cause, err)
	}
	return champion.Clone(), entry, nil
}

// PCAgBuild collects everything commitOutcome needs to transcribe into a
// PCAg; it exists only to keep Run's own signature-to-signature plumbing
// readable.
type PCAgBuild struct {
	ChampionDetail   aggregator.Detail
	ChallengerDetail aggregator.Detail
	ChallengerHash   string
	Evidence         models.Evidence
	Ethics           models.EthicsReport
	Dynamics         models.DynamicsSnapshot
	AlphaEff         float64
	Gates            []models.GateResult
	Verdict          models.Verdict
}

func (c *Controller) commitOutcome(ctx context.Context, champion, next *models.State, cycleID string, now time.Time, b PCAgBuild) (*models.State, models.LedgerEntry, error) {
	pcag := ledger.BuildPCAg(cycleID, ledger.PCAgInput{
		ChampionHash:   champion.SnapshotHash,
		ChallengerHash: b.ChallengerHash,
		Metrics:        b.Evidence.Metrics,
		Cost:           b.Evidence.Cost,
		Ethics:         b.Ethics,
		Dynamics:       b.Dynamics,
		AlphaEff:       b.AlphaEff,
		LInfChampion:   b.ChampionDetail.LInf,
		LInfChallenger: b.ChallengerDetail.LInf,
		Gates:          b.Gates,
		Verdict:        b.Verdict,
	}, now)

	entry, err := c.Ledger.Append(ctx, pcag)
	if err != nil {
		return champion.Clone(), models.LedgerEntry{}, fmt.Errorf("%w: %v", evoerrs.ErrLedgerError, err)
	}
	if !b.Verdict.AllPassed {
		return champion.Clone(), entry, nil
	}
	return next, entry, nil
}
