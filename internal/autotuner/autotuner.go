// Package autotuner implements spec.md Sec 4.7's Auto-Tuner: a bounded
// online adjustment of a Policy, restricted to {kappa, lambda_c, beta_min,
// metric weights} and applied strictly between cycles as an atomic
// immutable-snapshot swap (pkg/models/policy.go's Policy doc comment). It
// never touches models.FrozenThresholds, and Observe refuses any step whose
// result would fail Policy.Validate -- the tuner can propose a worse
// Policy, but it can never commit an invalid one.
//
// Grounded on the teacher's mutex-guarded, incrementally-updated case
// manager in internal/heuristics/investigation.go (InvestigationManager:
// a map of mutable records behind an RWMutex, each update bumping an
// UpdatedAt and leaving everything else untouched) -- the Tuner plays the
// same role for a single Policy instead of a map of Investigations.
package autotuner

import (
	"fmt"
	"math"
	"sync"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// Targets are the dynamics setpoints the Tuner steers Policy toward. They
// are not part of Policy itself -- they describe what "good" looks like to
// the Tuner, not a constraint the Guard enforces.
type Targets struct {
	CAOSPlus  float64 // desired CAOS+ floor the Motor should be operating near
	CostTotal float64 // desired steady-state cost-increase per cycle
}

// DefaultTargets are fixed setpoints (CAOS+ 0.70, cost 0.30) of their own;
// they are not derived from DefaultPolicy's CAOSMin/CostMax.
func DefaultTargets() Targets {
	return Targets{CAOSPlus: 0.70, CostTotal: 0.30}
}

// Observation is what one completed cycle teaches the Tuner. MetricWeights
// is only needed when the cycle carried named metric weights to adapt; a
// nil/empty map simply skips that step.
type Observation struct {
	Promoted  bool
	DeltaLInf float64
	CAOSPlus  float64
	SR        float64
	CostTotal float64

	// MetricWeights is the w_j actually used this cycle (a copy of the
	// Policy snapshot's MetricWeight at evaluation time).
	MetricWeights map[string]float64
}

// Tuner owns one mutable Policy snapshot and the AdaGrad accumulators
// behind its online update. The zero value is not usable; construct with
// New.
type Tuner struct {
	mu     sync.RWMutex
	policy models.Policy
	target Targets
	eta    float64
	eps    float64
	accum  map[string]float64

	rounds       int
	regretSum    float64
	rejectedSwap int // count of proposed steps Validate refused
}

// New constructs a Tuner seeded with initial, which must itself already
// validate -- the Tuner adjusts a Policy, it does not repair a broken one.
func New(initial models.Policy, eta float64) (*Tuner, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("%w: auto-tuner seed policy invalid: %v", evoerrs.ErrConfigError, err)
	}
	if eta <= 0 {
		eta = 0.05
	}
	return &Tuner{
		policy: clonePolicy(initial),
		target: DefaultTargets(),
		eta:    eta,
		eps:    1e-8,
		accum:  make(map[string]float64),
	}, nil
}

// WithTargets overrides the default dynamics setpoints.
func (t *Tuner) WithTargets(targets Targets) *Tuner {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = targets
	return t
}

// Policy returns a deep copy of the current snapshot -- callers never get a
// handle into the Tuner's own mutable maps.
func (t *Tuner) Policy() models.Policy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return clonePolicy(t.policy)
}

// Rounds and Regret report the Tuner's own diagnostic, not a formal
// online-convex-optimization bound: Regret accumulates, per round, the
// shortfall of observed CAOS+ below target plus any cost overrun above
// target -- a measure of how far the Tuner's current Policy keeps leaving
// the system from its own declared setpoints, not a comparison against a
// best-fixed-policy-in-hindsight.
func (t *Tuner) Rounds() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rounds
}

func (t *Tuner) Regret() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.regretSum
}

// AverageRegret is Regret/Rounds, 0 before the first round.
func (t *Tuner) AverageRegret() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.rounds == 0 {
		return 0
	}
	return t.regretSum / float64(t.rounds)
}

// RejectedSwaps counts Observe calls whose proposed Policy failed Validate
// and were discarded in favor of keeping the prior snapshot.
func (t *Tuner) RejectedSwaps() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rejectedSwap
}

// Observe folds one cycle's outcome into the Tuner's accumulators and
// atomically swaps in the resulting Policy, returning the new snapshot. If
// the proposed step would produce an invalid Policy (most commonly a
// FrozenThresholds violation can never happen here since the Tuner never
// writes those fields, but AlphaMin/AlphaMax/MaxNorm bounds or a
// metric-weight simplex rounding error could), the prior Policy is kept
// unchanged and the swap is counted in RejectedSwaps.
func (t *Tuner) Observe(obs Observation) (models.Policy, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rounds++
	t.regretSum += math.Max(0, t.target.CAOSPlus-obs.CAOSPlus) + math.Max(0, obs.CostTotal-t.target.CostTotal)

	next := clonePolicy(t.policy)

	t.step("kappa", t.target.CAOSPlus-obs.CAOSPlus, func(v float64) { next.Kappa = clampMin(v, 1.0) }, next.Kappa)
	t.step("lambdaC", obs.CostTotal-t.target.CostTotal, func(v float64) { next.LambdaC = clampMin(v, 0) }, next.LambdaC)
	if obs.Promoted {
		// Only a promotion teaches the Tuner anything about where the bar
		// should sit: a rejected cycle's DeltaLInf is meaningless as a
		// target for the next bar (it already failed to clear the old one).
		t.step("betaMin", obs.DeltaLInf-next.BetaMin, func(v float64) { next.BetaMin = clampMin(v, 1e-6) }, next.BetaMin)
	}
	if len(obs.MetricWeights) > 0 {
		next.MetricWeight = t.stepMetricWeights(obs.MetricWeights)
	}

	if err := next.Validate(); err != nil {
		t.rejectedSwap++
		return clonePolicy(t.policy), fmt.Errorf("%w: auto-tuner step rejected, keeping prior policy: %v", evoerrs.ErrConfigError, err)
	}
	t.policy = next
	return clonePolicy(t.policy), nil
}

// step applies one AdaGrad-style scalar update: accumulate the squared
// gradient under key, then nudge current by eta/sqrt(accum+eps)*grad
// through apply.
func (t *Tuner) step(key string, grad float64, apply func(float64), current float64) {
	t.accum[key] += grad * grad
	delta := t.eta / math.Sqrt(t.accum[key]+t.eps) * grad
	apply(current + delta)
}

// stepMetricWeights nudges weights toward an equal share rather than
// chasing L_inf directly. L_inf's harmonic-mean Base (internal/aggregator)
// falls whenever ANY weight rises, so an unconstrained ascent on Base would
// teach the Tuner to strip weight away from whichever metric is currently
// weakest -- exactly the compensatory behavior the non-compensatory L_inf
// aggregate exists to prevent. Pulling weights toward 1/n instead damps
// drift toward a de facto single-metric evaluation without ever rewarding
// the system for hiding a weak dimension.
func (t *Tuner) stepMetricWeights(current map[string]float64) map[string]float64 {
	n := len(current)
	target := 1.0 / float64(n)
	next := make(map[string]float64, n)
	for name, w := range current {
		key := "metricWeight:" + name
		grad := target - w
		t.accum[key] += grad * grad
		delta := t.eta / math.Sqrt(t.accum[key]+t.eps) * grad
		next[name] = w + delta
	}
	return projectSimplex(next)
}

func clampMin(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}

// projectSimplex clips every weight to a non-negative floor, then
// renormalizes so the weights sum to exactly 1 -- the same
// clip-then-renormalize shape as internal/updater/projection.go's box
// projection, specialized to the probability simplex instead of a norm
// ball.
func projectSimplex(weights map[string]float64) map[string]float64 {
	var sum float64
	for name, w := range weights {
		if w < 0 {
			weights[name] = 0
			w = 0
		}
		sum += w
	}
	if sum <= 0 {
		uniform := 1.0 / float64(len(weights))
		for name := range weights {
			weights[name] = uniform
		}
		return weights
	}
	for name, w := range weights {
		weights[name] = w / sum
	}
	return weights
}

func clonePolicy(p models.Policy) models.Policy {
	out := p
	out.MetricWeight = cloneMap(p.MetricWeight)
	out.CostScales = cloneMap(p.CostScales)
	out.LyapunovTarget = cloneSlice(p.LyapunovTarget)
	out.BoxMin = cloneSlice(p.BoxMin)
	out.BoxMax = cloneSlice(p.BoxMax)
	return out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlice(s []float64) []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
