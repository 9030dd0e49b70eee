package motor

import (
	"math"
	"testing"

	"github.com/rawblock/evoctl/pkg/models"
)

func TestCAOSPlus_ReducesToOneAtKappaZero(t *testing.T) {
	if got := CAOSPlus(0, 0.9, 0.9, 0.5, 0.5); got != 1 {
		t.Errorf("CAOSPlus(kappa=0) = %v, want 1", got)
	}
}

func TestCAOSPlus_ReducesToOneWhenOSZero(t *testing.T) {
	if got := CAOSPlus(20, 0.9, 0.9, 0, 0.5); got != 1 {
		t.Errorf("CAOSPlus(O*S=0) = %v, want 1", got)
	}
}

func TestCAOSPlus_MonotonicInEachComponent(t *testing.T) {
	base := CAOSPlus(20, 0.5, 0.5, 0.5, 0.5)
	if CAOSPlus(20, 0.6, 0.5, 0.5, 0.5) < base {
		t.Error("CAOSPlus should be non-decreasing in C")
	}
	if CAOSPlus(20, 0.5, 0.6, 0.5, 0.5) < base {
		t.Error("CAOSPlus should be non-decreasing in A")
	}
	if CAOSPlus(20, 0.5, 0.5, 0.6, 0.5) < base {
		t.Error("CAOSPlus should be non-decreasing in O")
	}
	if CAOSPlus(20, 0.5, 0.5, 0.5, 0.6) < base {
		t.Error("CAOSPlus should be non-decreasing in S")
	}
}

func TestCAOSPlus_ScenarioS1(t *testing.T) {
	// S1 from spec.md: C=0.88 A=0.40 O=0.35 S=0.82 kappa=20 -> ~1.86
	got := CAOSPlus(20, 0.88, 0.40, 0.35, 0.82)
	if math.Abs(got-1.86) > 0.1 {
		t.Errorf("CAOSPlus = %v, want ~1.86", got)
	}
}

func TestSROmega_HarmonicBound(t *testing.T) {
	axes := []float64{0.92, 1, 0.88, 0.67}
	got := SROmega(axes[0], axes[1], axes[2], axes[3])
	min := axes[0]
	for _, a := range axes {
		if a < min {
			min = a
		}
	}
	if got < min-1e-9 || got > 4*min+1e-9 {
		t.Errorf("SR = %v, want within [min(axes), 4*min(axes)] = [%v, %v]", got, min, 4*min)
	}
}

func TestSROmega_ScenarioS1(t *testing.T) {
	got := SROmega(0.92, 1, 0.88, 0.67)
	if math.Abs(got-0.848) > 0.01 {
		t.Errorf("SR = %v, want ~0.848", got)
	}
}

func TestSROmega_CollapsesWhenEthicsFails(t *testing.T) {
	got := SROmega(0.99, 0, 0.99, 0.99)
	if got > 0.01 {
		t.Errorf("SR = %v, want ~0 when ethics_ok = 0", got)
	}
}

func TestMotor_StepIsDeterministic(t *testing.T) {
	m1 := New(5, 5)
	m2 := New(5, 5)
	raw := models.CAOSComponents{C: 0.7, A: 0.3, O: 0.4, S: 0.6}
	srRaw := models.SRAxes{Awareness: 0.9, EthicsOK: 1, Autocorrection: 0.8, Metacognition: 0.5}

	d1, err := m1.Step(20, raw, srRaw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d2, err := m2.Step(20, raw, srRaw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d1.CAOSPlus != d2.CAOSPlus || d1.SR != d2.SR {
		t.Errorf("two freshly-seeded motors diverged on identical inputs: %+v vs %+v", d1, d2)
	}
}

func TestMotor_Step_RejectsOutOfRangeComponent(t *testing.T) {
	m := New(5, 5)
	_, err := m.Step(20, models.CAOSComponents{C: 1.5, A: 0.3, O: 0.4, S: 0.6}, models.SRAxes{})
	if err == nil {
		t.Error("expected error for C > 1")
	}
}

func TestEMAUpdate_FirstSampleSeeds(t *testing.T) {
	h := models.EMAHistory{HalfLife: 5}
	h = Update(h, 0.5)
	if h.Value != 0.5 {
		t.Errorf("first Update should seed Value directly, got %v", h.Value)
	}
}

func TestStability_ConstantWindowIsMaximallyStable(t *testing.T) {
	h := Seed(5, 0.5, []float64{0.5, 0.5, 0.5, 0.5})
	if got := Stability(h); got != 1 {
		t.Errorf("Stability(constant window) = %v, want 1", got)
	}
}
