// Package evoerrs defines the typed error taxonomy of the controller
// (spec.md Sec 7). No error is ever encoded as a numeric code, and no error
// is silently swallowed: every error surfaces either as a Verdict recorded
// in the PCAg, or (for ConfigError/LedgerError) as a refusal to proceed.
package evoerrs

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is.
var (
	// ErrEvidenceError: missing, malformed, NaN, or out-of-range metric/cost.
	// Fatal to the cycle; not retried.
	ErrEvidenceError = errors.New("evidence error")

	// ErrEvaluationTimeout: the Evaluator did not return within the cycle
	// deadline. Locally rescued once (challenger marked failed, cycle
	// continues with remaining challengers); no automatic retry.
	ErrEvaluationTimeout = errors.New("evaluation timeout")

	// ErrProjectionError: projection into H intersect S produced a state
	// outside declared bounds -- indicates a policy bug, not a bad
	// challenger. Rollback + InternalError.
	ErrProjectionError = errors.New("projection error")

	// ErrLedgerError: hash mismatch, sequence gap, or append failure.
	// Fatal; the core refuses to commit further cycles until repair.
	ErrLedgerError = errors.New("ledger error")

	// ErrConfigError: invalid Policy. Refuses to start.
	ErrConfigError = errors.New("config error")

	// ErrInternalError: unhandled condition. Rollback; diagnostic PCAg
	// recorded.
	ErrInternalError = errors.New("internal error")
)

// GateFailure names a gate that rejected a challenger, with its measured
// value and the threshold it violated.
type GateFailure struct {
	Gate      string
	Measured  float64
	Threshold float64
}

func (e *GateFailure) Error() string {
	return fmt.Sprintf("gate %q failed: measured=%v threshold=%v", e.Gate, e.Measured, e.Threshold)
}

// EthicsViolation is always the highest-severity error and always resolves
// to Rollback. Law is one of LO-01..LO-14.
type EthicsViolation struct {
	Law      string
	Evidence string
}

func (e *EthicsViolation) Error() string {
	return fmt.Sprintf("ethics violation %s: %s", e.Law, e.Evidence)
}
