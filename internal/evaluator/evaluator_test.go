package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

func okChallenger(id string) models.Challenger {
	return models.Challenger{ID: id, MutationType: "parametric", Params: []float64{0.1}}
}

func TestSuite_Run_PreservesOrderAndCollectsAllResults(t *testing.T) {
	fn := FuncEvaluator(func(ctx context.Context, c models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error) {
		return models.MetricSet{{Name: "acc", Value: 0.5, Weight: 1}}, models.CostComponents{}, models.Evidence{}, nil
	})
	s := &Suite{Evaluator: fn}
	challengers := []models.Challenger{okChallenger("a"), okChallenger("b"), okChallenger("c")}

	results := s.Run(context.Background(), challengers)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Challenger.ID != challengers[i].ID {
			t.Errorf("result %d out of order: got %s want %s", i, r.Challenger.ID, challengers[i].ID)
		}
		if r.Err != nil {
			t.Errorf("result %d: unexpected error %v", i, r.Err)
		}
	}
}

func TestSuite_Run_TimeoutIsRescuedLocally(t *testing.T) {
	slow := FuncEvaluator(func(ctx context.Context, c models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error) {
		<-ctx.Done()
		return nil, models.CostComponents{}, models.Evidence{}, ctx.Err()
	})
	fast := FuncEvaluator(func(ctx context.Context, c models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error) {
		return models.MetricSet{{Name: "acc", Value: 0.9, Weight: 1}}, models.CostComponents{}, models.Evidence{}, nil
	})

	s := &Suite{Evaluator: routeByID(map[string]Evaluator{"slow": slow, "fast": fast}), PerChallengerTimeout: 10 * time.Millisecond}
	results := s.Run(context.Background(), []models.Challenger{okChallenger("slow"), okChallenger("fast")})

	if !errors.Is(results[0].Err, evoerrs.ErrEvaluationTimeout) {
		t.Errorf("expected slow challenger to time out, got err=%v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("expected fast challenger to still succeed despite slow's timeout, got %v", results[1].Err)
	}
}

type routeByID map[string]Evaluator

func (r routeByID) Evaluate(ctx context.Context, c models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error) {
	return r[c.ID].Evaluate(ctx, c)
}

func TestSuite_Run_UsesMockEvaluator(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := NewMockEvaluator(ctrl)
	c := okChallenger("mocked")
	m.EXPECT().Evaluate(gomock.Any(), c).Return(
		models.MetricSet{{Name: "acc", Value: 0.75, Weight: 1}},
		models.CostComponents{"compute": 1.0},
		models.Evidence{ConsentGiven: true},
		nil,
	)

	s := &Suite{Evaluator: m}
	results := s.Run(context.Background(), []models.Challenger{c})
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].Metrics[0].Value != 0.75 {
		t.Errorf("expected mocked metric value 0.75, got %v", results[0].Metrics[0].Value)
	}
}
