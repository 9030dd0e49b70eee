package evaluator

import (
	"context"

	"github.com/rawblock/evoctl/pkg/models"
)

// FuncEvaluator adapts a plain function into an Evaluator, for callers that
// have a pure scoring function and no need for a stateful implementation
// (e.g. the deterministic evaluators used in internal/cycle's own tests).
type FuncEvaluator func(ctx context.Context, challenger models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error)

// Evaluate implements Evaluator.
func (f FuncEvaluator) Evaluate(ctx context.Context, challenger models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error) {
	return f(ctx, challenger)
}
