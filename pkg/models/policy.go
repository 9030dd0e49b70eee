package models

import (
	"fmt"

	"github.com/rawblock/evoctl/pkg/evoerrs"
)

// Policy holds the control parameters that govern a run. It is mutated only
// by the Auto-Tuner, between cycles, as an atomic immutable-snapshot swap —
// never inside a cycle.
type Policy struct {
	Alpha0       float64            `json:"alpha0"`       // base step alpha_0
	LambdaC      float64            `json:"lambdaC"`       // cost penalty exponent
	MetricWeight map[string]float64 `json:"metricWeight"`  // w_j, Sigma w_j = 1
	CostScales   map[string]float64 `json:"costScales"`    // per-cost-component scale

	Kappa float64 `json:"kappa"` // CAOS base gain, >= 20 by default

	BetaMin  float64 `json:"betaMin"`  // minimum delta L_inf for promotion
	RhoMax   float64 `json:"rhoMax"`   // contractivity ceiling, frozen
	ECEMax   float64 `json:"eceMax"`   // calibration ceiling, frozen
	BiasMax  float64 `json:"biasMax"`  // bias ratio ceiling, frozen
	SRMin    float64 `json:"srMin"`    // SR floor
	CAOSMin  float64 `json:"caosMin"`  // CAOS+ floor
	CostMax  float64 `json:"costMax"`  // cost-increase budget

	MaxNorm  float64 `json:"maxNorm"`  // state norm cap
	AlphaMin float64 `json:"alphaMin"` // effective step lower bound
	AlphaMax float64 `json:"alphaMax"` // effective step upper bound

	CAOSHalfLife float64 `json:"caosHalfLife"` // EMA half-life, cycles
	SRHalfLife   float64 `json:"srHalfLife"`   // EMA half-life, cycles

	LyapunovTarget []float64 `json:"lyapunovTarget"` // I* for V(I) = ||I - I*||^2

	HashAlgorithm string `json:"hashAlgorithm"` // "SHA-256" or "BLAKE2b-256"

	// BoxMin/BoxMax are the per-coordinate box constraints of the technical
	// safe set H; nil means unconstrained (only the norm cap applies).
	BoxMin []float64 `json:"boxMin,omitempty"`
	BoxMax []float64 `json:"boxMax,omitempty"`

	// DeltaProjThreshold flags a "heavy projection" when a coordinate is
	// moved by more than this during Pi_{H intersect S}.
	DeltaProjThreshold float64 `json:"deltaProjThreshold"`

	// RateLimitPerMinute and RateLimitBurst govern the API surface's per-IP
	// token bucket (internal/api.RateLimiter), not the evolutionary loop
	// itself -- grouped into Policy anyway since both are operational knobs
	// an operator tunes for one deployment without a code change.
	RateLimitPerMinute int `json:"rateLimitPerMinute"`
	RateLimitBurst     int `json:"rateLimitBurst"`
}

// FrozenThresholds enumerates the Policy fields the Auto-Tuner must never
// relax, per spec.md Sec 4.7 and Sec 6.
var FrozenThresholds = []string{"rhoMax", "eceMax", "biasMax"}

// DefaultPolicy returns the spec-mandated defaults (spec.md Sec 6).
func DefaultPolicy() Policy {
	return Policy{
		Alpha0:             0.01,
		LambdaC:            0.5,
		MetricWeight:       map[string]float64{},
		CostScales:         map[string]float64{},
		Kappa:              20,
		BetaMin:            0.01,
		RhoMax:             1.0,
		ECEMax:             0.01,
		BiasMax:            1.05,
		SRMin:              0.80,
		CAOSMin:            0,
		CostMax:            1.0,
		MaxNorm:            10.0,
		AlphaMin:           1e-6,
		AlphaMax:           0.1,
		CAOSHalfLife:       5,
		SRHalfLife:         5,
		HashAlgorithm:      "SHA-256",
		DeltaProjThreshold: 0.1,
		RateLimitPerMinute: 30,
		RateLimitBurst:     5,
	}
}

// Validate enforces the ConfigError taxonomy of spec.md Sec 7: weights not
// summing to 1, negative penalties, or a frozen threshold loosened beyond
// its spec-mandated ceiling/floor are all refused before a run starts.
func (p Policy) Validate() error {
	if len(p.MetricWeight) > 0 {
		var sum float64
		for _, w := range p.MetricWeight {
			if w < 0 {
				return fmt.Errorf("%w: negative metric weight", evoerrs.ErrConfigError)
			}
			sum += w
		}
		if sum < 0.999999999 || sum > 1.000000001 {
			return fmt.Errorf("%w: metric weights sum to %f, want 1", evoerrs.ErrConfigError, sum)
		}
	}
	if p.LambdaC < 0 {
		return fmt.Errorf("%w: negative lambda_c", evoerrs.ErrConfigError)
	}
	if p.Kappa < 0 {
		return fmt.Errorf("%w: negative kappa", evoerrs.ErrConfigError)
	}
	if p.RhoMax > 1.0 {
		return fmt.Errorf("%w: rho_max loosened above frozen ceiling 1.0", evoerrs.ErrConfigError)
	}
	if p.ECEMax > 0.01 {
		return fmt.Errorf("%w: ece_max loosened above frozen ceiling 0.01", evoerrs.ErrConfigError)
	}
	if p.BiasMax > 1.05 {
		return fmt.Errorf("%w: bias_max loosened above frozen ceiling 1.05", evoerrs.ErrConfigError)
	}
	if p.AlphaMin <= 0 || p.AlphaMax <= p.AlphaMin {
		return fmt.Errorf("%w: alpha bounds invalid (min=%f max=%f)", evoerrs.ErrConfigError, p.AlphaMin, p.AlphaMax)
	}
	if p.MaxNorm <= 0 {
		return fmt.Errorf("%w: max_norm must be positive", evoerrs.ErrConfigError)
	}
	switch p.HashAlgorithm {
	case "SHA-256", "BLAKE2b-256":
	default:
		return fmt.Errorf("%w: unrecognized hash_algorithm %q", evoerrs.ErrConfigError, p.HashAlgorithm)
	}
	return nil
}
