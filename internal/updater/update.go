// Package updater implements the Update Engine of spec.md Sec 4.4: the
// single place a champion State is ever advanced. It computes the
// CAOS+/SR-modulated effective step, projects the tentative next state into
// the safe set H intersect S, re-validates the Lyapunov descent condition
// against the projected (not the raw) vector, and commits only when the
// Guard's Verdict already says Promote -- there is no code path that
// mutates State outside of Advance.
package updater

import (
	"fmt"
	"time"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// Record is the audit detail the cycle orchestrator folds into the PCAg:
// everything needed to recompute, independently, whether this step should
// have committed.
type Record struct {
	AlphaEff      float64           `json:"alphaEff"`
	Projection    ProjectionReport  `json:"projection"`
	LyapunovBefore float64          `json:"lyapunovBefore"`
	LyapunovAfter  float64          `json:"lyapunovAfter"`
	LyapunovOK     bool             `json:"lyapunovOk"`
	Committed      bool             `json:"committed"`
	Reason         string           `json:"reason"`
}

// Advance computes the tentative next state I' = Pi_{H intersect S}[I +
// alpha_eff * direction] and commits it onto current only if verdict says
// Promote AND the post-projection Lyapunov check still holds. On any other
// outcome it returns current unchanged (a clone, never the same pointer) and
// a Record explaining why nothing was committed -- the caller never has to
// infer a rollback from the absence of a mutation.
//
// direction is the challenger's gradient/ascent direction G (spec.md Sec
// 4.4); its sign convention is the Mutator's, not the Updater's concern.
func Advance(
	current *models.State,
	direction []float64,
	caosPlus, sr float64,
	policy models.Policy,
	verdict models.Verdict,
) (*models.State, Record, error) {
	if len(direction) != len(current.Vector) {
		return current.Clone(), Record{}, fmt.Errorf(
			"%w: direction length %d does not match state dimension %d",
			evoerrs.ErrProjectionError, len(direction), len(current.Vector),
		)
	}

	alphaEff := EffectiveAlpha(policy.Alpha0, caosPlus, sr, policy.AlphaMin, policy.AlphaMax)

	raw := make([]float64, len(current.Vector))
	for i := range raw {
		raw[i] = current.Vector[i] + alphaEff*direction[i]
	}

	projected, projReport := Project(raw, policy)

	lyapunovBefore := lyapunovValue(current.Vector, policy.LyapunovTarget)
	lyapunovAfter := lyapunovValue(projected, policy.LyapunovTarget)
	lyapunovOK := policy.LyapunovTarget == nil || lyapunovAfter <= lyapunovBefore

	record := Record{
		AlphaEff:       alphaEff,
		Projection:     projReport,
		LyapunovBefore: lyapunovBefore,
		LyapunovAfter:  lyapunovAfter,
		LyapunovOK:     lyapunovOK,
	}

	if !verdict.AllPassed {
		record.Reason = "guard verdict did not pass: " + string(verdict.Action)
		return current.Clone(), record, nil
	}

	if !lyapunovOK {
		record.Reason = "post-projection Lyapunov re-check failed"
		return current.Clone(), record, fmt.Errorf(
			"%w: V increased after projection (%f -> %f)",
			evoerrs.ErrProjectionError, lyapunovBefore, lyapunovAfter,
		)
	}

	next := &models.State{
		Vector:        projected,
		Version:       current.Version + 1,
		LastUpdatedAt: time.Now().UTC(),
	}
	next.RecomputeSnapshotHash()

	record.Committed = true
	record.Reason = "promoted"
	return next, record, nil
}

// lyapunovValue is V(I) = ||I - target||^2. With no declared target
// (LyapunovTarget is nil) the function degenerates to 0 for every input, and
// the caller treats the Lyapunov check as vacuously satisfied -- a run with
// no declared attractor makes no claim about convergence.
func lyapunovValue(vector, target []float64) float64 {
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
