// Package updater implements the projected, gate-gated, step-modulated
// state advance: I_{t+1} = Pi_{H intersect S}[I_t + alpha_eff * G], where
// alpha_eff = alpha_0 * phi(CAOS+) * SR (spec.md Sec 4.4).
//
// Grounded on the teacher's correctly-rounded fixed-point conversion
// (internal/api/routes.go's btcToSats, wrapping btcutil.NewAmount) for
// converting the effective step into an exact fixed-point scalar before
// it's applied, avoiding the float-drift a naive multiply-accumulate would
// introduce across many promoted cycles.
package updater

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/rawblock/evoctl/internal/motor"
)

// EffectiveAlpha computes alpha_eff = clamp(alpha_0 * phi(CAOS+) * SR,
// alpha_min, alpha_max). phi is motor.Saturate, the tanh-of-log-scaled
// saturating map spec.md Sec 4.4 names phi (distinct from the CAOS+
// display form PhiCAOS). Never returns NaN: underflow clamps to alpha_min,
// overflow clamps to alpha_max.
func EffectiveAlpha(alpha0, caosPlus, sr, alphaMin, alphaMax float64) float64 {
	raw := alpha0 * motor.Saturate(caosPlus) * sr
	rounded := roundToSatoshiPrecision(raw)
	switch {
	case rounded < alphaMin:
		return alphaMin
	case rounded > alphaMax:
		return alphaMax
	default:
		return rounded
	}
}

// roundToSatoshiPrecision rounds a small positive float to 8 decimal places
// using btcutil's IEEE-754-aware rounding (the same routine the teacher
// uses to turn a BTC float into an exact satoshi integer), then converts
// back to float64. This keeps alpha_eff free of the long tail of
// floating-point noise a naive float64 multiply chain would otherwise
// accumulate across thousands of promoted cycles.
func roundToSatoshiPrecision(v float64) float64 {
	if v <= 0 {
		return 0
	}
	amt, err := btcutil.NewAmount(v)
	if err != nil {
		return v
	}
	return amt.ToBTC()
}
