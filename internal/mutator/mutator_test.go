package mutator

import (
	"errors"
	"testing"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

func champion() *models.State {
	s := models.NewGenesisState(4)
	s.Vector = []float64{0.1, 0.2, 0.3, 0.4}
	s.RecomputeSnapshotHash()
	return s
}

func TestPropose_IsDeterministicGivenSameSeed(t *testing.T) {
	m := New(0.01, 0.05)
	a, err := m.Propose(champion(), 42, 5, "perturbation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := m.Propose(champion(), 42, 5, "perturbation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Hash != b[i].Hash || a[i].ID != b[i].ID {
			t.Errorf("challenger %d not reproducible: %+v vs %+v", i, a[i], b[i])
		}
		for j := range a[i].Params {
			if a[i].Params[j] != b[i].Params[j] {
				t.Errorf("challenger %d param %d differs across runs", i, j)
			}
		}
	}
}

func TestPropose_DifferentSeedsDiverge(t *testing.T) {
	m := New(0.01, 0.05)
	a, _ := m.Propose(champion(), 1, 1, "perturbation")
	b, _ := m.Propose(champion(), 2, 1, "perturbation")
	if a[0].Hash == b[0].Hash {
		t.Error("expected different seeds to produce different challengers")
	}
}

func TestPropose_EveryChallengerClearsMinDistanceFromChampion(t *testing.T) {
	c := champion()
	m := New(0.2, 0.3)
	challengers, err := m.Propose(c, 7, 6, "parametric")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, ch := range challengers {
		if d := models.Distance(ch.Params, c.Vector); d < m.MinDistance {
			t.Errorf("challenger %d distance %v below min_distance %v", i, d, m.MinDistance)
		}
		for j, other := range challengers {
			if i == j {
				continue
			}
			if d := models.Distance(ch.Params, other.Params); d < m.MinDistance {
				t.Errorf("challengers %d and %d are within min_distance of each other: %v", i, j, d)
			}
		}
	}
}

func TestPropose_ZeroCountIsEvidenceError(t *testing.T) {
	m := New(0.01, 0.05)
	_, err := m.Propose(champion(), 1, 0, "parametric")
	if !errors.Is(err, evoerrs.ErrEvidenceError) {
		t.Fatalf("expected ErrEvidenceError, got %v", err)
	}
}

func TestPropose_NonPositiveConfigIsConfigError(t *testing.T) {
	m := New(0, 0.05)
	_, err := m.Propose(champion(), 1, 1, "parametric")
	if !errors.Is(err, evoerrs.ErrConfigError) {
		t.Fatalf("expected ErrConfigError, got %v", err)
	}
}

func TestPropose_UnreachableMinDistanceIsEvidenceError(t *testing.T) {
	// sigma far too small for the requested min_distance: every candidate
	// lands inside the exclusion radius even after the resample growth.
	m := New(1000, 1e-9)
	_, err := m.Propose(champion(), 1, 1, "parametric")
	if !errors.Is(err, evoerrs.ErrEvidenceError) {
		t.Fatalf("expected ErrEvidenceError on unreachable min_distance, got %v", err)
	}
}
