package models

// GateStatus is the per-gate verdict.
type GateStatus string

const (
	GatePass           GateStatus = "pass"
	GateFail           GateStatus = "fail"
	GateNotApplicable  GateStatus = "not_applicable"
)

// GateResult is the outcome of one pure gate predicate, carrying enough
// detail (measured value, threshold, rationale) for a verifier to re-derive
// the same status from the same inputs.
type GateResult struct {
	Name          string     `json:"name"`
	Status        GateStatus `json:"status"`
	MeasuredValue float64    `json:"measuredValue"`
	Threshold     float64    `json:"threshold"`
	Rationale     string     `json:"rationale"`
}

// Action is the final disposition of a cycle.
type Action string

const (
	ActionPromote  Action = "promote"
	ActionCanary   Action = "canary"
	ActionReject   Action = "reject"
	ActionRollback Action = "rollback"
)

// Verdict is the Guard pipeline's fail-closed conjunctive output: a single
// Fail anywhere collapses AllPassed to false and forces Action to Reject or
// Rollback depending on the failing gate's declared severity (spec.md Sec
// 4.3's table). Every gate's GateResult is always present, even after the
// first failure -- the pipeline never short-circuits in a way that would
// hide a lower-severity failure from the audit log.
type Verdict struct {
	AllPassed bool         `json:"allPassed"`
	Gates     []GateResult `json:"gates"`
	Action    Action       `json:"action"`
	Reason    string       `json:"reason"`
}

// FailedGates returns every gate whose Status is GateFail, preserving
// evaluation order.
func (v Verdict) FailedGates() []GateResult {
	var out []GateResult
	for _, g := range v.Gates {
		if g.Status == GateFail {
			out = append(out, g)
		}
	}
	return out
}
