// Package evaluator runs a bounded evaluation suite over a batch of
// challengers and collects the raw Evidence the Aggregator and Guard need.
// Grounded on the teacher's bounded scan-loop style
// (internal/scanner/block_scanner.go's ScanRange, which tracks progress with
// atomics and never blocks past its caller's context) and its
// production/shadow comparison style (internal/shadow/shadow_runner.go).
package evaluator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// Evaluator scores a single challenger, producing the metrics, cost
// components, and ethics-relevant evidence a cycle needs to aggregate and
// gate it. Implementations must be safe for concurrent use: Suite.Run calls
// Evaluate from multiple goroutines.
//
//go:generate mockgen -destination=mock_evaluator.go -package=evaluator . Evaluator
type Evaluator interface {
	Evaluate(ctx context.Context, challenger models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error)
}

// Result is one challenger's outcome: either a full Evidence bundle, or an
// error (most commonly evoerrs.ErrEvaluationTimeout) recorded so the cycle
// can still produce a PCAg for a challenger that never finished.
type Result struct {
	Challenger models.Challenger
	Metrics    models.MetricSet
	Cost       models.CostComponents
	Evidence   models.Evidence
	Err        error
}

// Suite runs an Evaluator over a batch of challengers, each under its own
// per-challenger deadline, rescuing an individual timeout by recording it as
// a failed Result and continuing with the rest of the batch rather than
// failing the whole cycle (spec.md Sec 7: EvaluationTimeout is "locally
// rescued once").
type Suite struct {
	Evaluator Evaluator
	// PerChallengerTimeout bounds each individual Evaluate call. Zero means
	// no additional deadline beyond ctx's own.
	PerChallengerTimeout time.Duration
	// Concurrency bounds how many challengers are evaluated at once. Zero
	// or negative means unbounded (one goroutine per challenger).
	Concurrency int
}

// Run evaluates every challenger and returns one Result per challenger, in
// the same order they were given, regardless of individual failures.
func (s *Suite) Run(ctx context.Context, challengers []models.Challenger) []Result {
	results := make([]Result, len(challengers))

	sem := make(chan struct{}, s.concurrencyLimit(len(challengers)))
	var wg sync.WaitGroup
	for i, c := range challengers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, c models.Challenger) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.runOne(ctx, c)
		}(i, c)
	}
	wg.Wait()
	return results
}

func (s *Suite) concurrencyLimit(n int) int {
	if s.Concurrency <= 0 || s.Concurrency > n {
		if n <= 0 {
			return 1
		}
		return n
	}
	return s.Concurrency
}

func (s *Suite) runOne(ctx context.Context, c models.Challenger) Result {
	callCtx := ctx
	cancel := func() {}
	if s.PerChallengerTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.PerChallengerTimeout)
	}
	defer cancel()

	metrics, cost, evidence, err := s.Evaluator.Evaluate(callCtx, c)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = evoerrs.ErrEvaluationTimeout
		}
		return Result{Challenger: c, Err: err}
	}
	// Evaluate returns Metrics/Cost alongside Evidence rather than nested
	// inside it (the interface mirrors the Aggregator's own three-argument
	// shape); every downstream consumer reads them off Evidence, so fold
	// them in once here rather than at every call site.
	evidence.Metrics = metrics
	evidence.Cost = cost
	return Result{Challenger: c, Metrics: metrics, Cost: cost, Evidence: evidence}
}
