package motor

import (
	"fmt"
	"math"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// Gamma is the display-only scaling constant used by PhiCAOS. It has no
// effect on CAOS+ itself or on any gate; it is only recorded for the PCAg's
// "phi_caos" derived view (spec.md Sec 9 open question).
const Gamma = 1.0

// Motor is the single owner of CAOSState and SRState for one run (spec.md
// Sec 5: "CAOSState / SRState: single-owner (the Motor); not shared across
// cycles of the same State"). It is not safe for concurrent use by more
// than one cycle of the same State -- matching the single-writer discipline
// spec.md mandates for State itself.
type Motor struct {
	CAOS models.CAOSState
	SR   models.SRState
}

// New constructs a Motor with EMA histories seeded from policy half-lives.
// Call Seed instead when deterministic tests need an explicit starting
// history.
func New(caosHalfLife, srHalfLife float64) *Motor {
	return &Motor{
		CAOS: models.CAOSState{
			C: models.EMAHistory{HalfLife: caosHalfLife},
			A: models.EMAHistory{HalfLife: caosHalfLife},
			O: models.EMAHistory{HalfLife: caosHalfLife},
			S: models.EMAHistory{HalfLife: caosHalfLife},
		},
		SR: models.SRState{
			Awareness:      models.EMAHistory{HalfLife: srHalfLife},
			EthicsOK:       models.EMAHistory{HalfLife: srHalfLife},
			Autocorrection: models.EMAHistory{HalfLife: srHalfLife},
			Metacognition:  models.EMAHistory{HalfLife: srHalfLife},
		},
	}
}

// Step feeds one cycle's raw (C,A,O,S) and raw SR axes through the EMA,
// then computes CAOS+, phi_CAOS, and SR from the smoothed values. It is a
// deterministic pure function of (raw inputs, prior EMA state, kappa);
// calling it mutates the Motor's owned CAOSState/SRState in place and
// returns the full DynamicsSnapshot for the PCAg.
func (m *Motor) Step(kappa float64, raw models.CAOSComponents, srRaw models.SRAxes) (models.DynamicsSnapshot, error) {
	if err := validateUnitInterval("C", raw.C); err != nil {
		return models.DynamicsSnapshot{}, err
	}
	if err := validateUnitInterval("A", raw.A); err != nil {
		return models.DynamicsSnapshot{}, err
	}
	if err := validateUnitInterval("O", raw.O); err != nil {
		return models.DynamicsSnapshot{}, err
	}
	if err := validateUnitInterval("S", raw.S); err != nil {
		return models.DynamicsSnapshot{}, err
	}
	if kappa < 0 {
		return models.DynamicsSnapshot{}, fmt.Errorf("%w: negative kappa", evoerrs.ErrEvidenceError)
	}

	m.CAOS.C = Update(m.CAOS.C, raw.C)
	m.CAOS.A = Update(m.CAOS.A, raw.A)
	m.CAOS.O = Update(m.CAOS.O, raw.O)
	m.CAOS.S = Update(m.CAOS.S, raw.S)

	m.SR.Awareness = Update(m.SR.Awareness, srRaw.Awareness)
	m.SR.EthicsOK = Update(m.SR.EthicsOK, srRaw.EthicsOK)
	m.SR.Autocorrection = Update(m.SR.Autocorrection, srRaw.Autocorrection)
	m.SR.Metacognition = Update(m.SR.Metacognition, srRaw.Metacognition)

	smoothed := models.CAOSComponents{
		C: m.CAOS.C.Value, A: m.CAOS.A.Value, O: m.CAOS.O.Value, S: m.CAOS.S.Value,
	}
	caosPlus := CAOSPlus(kappa, smoothed.C, smoothed.A, smoothed.O, smoothed.S)
	phi := PhiCAOS(Gamma, caosPlus)

	srSmoothed := models.SRAxes{
		Awareness:      m.SR.Awareness.Value,
		EthicsOK:       m.SR.EthicsOK.Value,
		Autocorrection: m.SR.Autocorrection.Value,
		Metacognition:  m.SR.Metacognition.Value,
	}
	sr := SROmega(srSmoothed.Awareness, srSmoothed.EthicsOK, srSmoothed.Autocorrection, srSmoothed.Metacognition)

	stability := (Stability(m.CAOS.C) + Stability(m.CAOS.A) + Stability(m.CAOS.O) + Stability(m.CAOS.S)) / 4

	return models.DynamicsSnapshot{
		Raw:            raw,
		Smoothed:       smoothed,
		CAOSPlus:       caosPlus,
		PhiCAOS:        phi,
		CanonicalForm:  "exponential",
		SRRaw:          srRaw,
		SRSmoothed:     srSmoothed,
		SR:             sr,
		StabilityIndex: stability,
	}, nil
}

func validateUnitInterval(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s = %v out of [0,1]", evoerrs.ErrEvidenceError, name, v)
	}
	return nil
}
