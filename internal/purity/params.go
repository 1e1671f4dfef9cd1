package purity

import (
	"fmt"
	"math"
)

// Params holds the tunable constants of the purity pipeline. All fields are
// exposed so instrument-specific tunings can be loaded from configuration.
type Params struct {
	// AgilentAlpha is the strictness of the noise-normalised threshold test.
	// Larger values tolerate more noise. Must be > 0.
	AgilentAlpha float64 `json:"agilent_alpha"`
	// UnimodalTolerance is the fraction of adjacent pairs that must follow the
	// expected rise/fall direction. Range (0, 1].
	UnimodalTolerance float64 `json:"unimodal_tolerance"`
	// TrimFraction drops peak columns whose total absorbance is not above
	// this fraction of the peak maximum. Range [0, 1).
	TrimFraction float64 `json:"trim_fraction"`
	// NoiseFraction selects noise columns: those whose maximum absorbance is
	// below this fraction of the run maximum. Range [0, 1].
	NoiseFraction float64 `json:"noise_fraction"`
	// SmoothingWindow is the moving-average length applied to the
	// correlation-to-apex sequence before the unimodality test. Must be >= 1.
	SmoothingWindow int `json:"smoothing_window"`

	// Decision thresholds, all in [0, 1].
	AgilentPure          float64 `json:"agilent_pure"`
	PCAPure              float64 `json:"pca_pure"`
	MinCorrelationImpure float64 `json:"min_correlation_impure"`
	MinCorrelationPure   float64 `json:"min_correlation_pure"`
	MeanCorrelationPure  float64 `json:"mean_correlation_pure"`
}

// DefaultParams returns the empirically tuned defaults.
func DefaultParams() Params {
	return Params{
		AgilentAlpha:         2.5,
		UnimodalTolerance:    0.99,
		TrimFraction:         0.05,
		NoiseFraction:        0.01,
		SmoothingWindow:      3,
		AgilentPure:          0.9,
		PCAPure:              0.995,
		MinCorrelationImpure: 0.9,
		MinCorrelationPure:   0.95,
		MeanCorrelationPure:  0.98,
	}
}

// Validate reports the first parameter outside its valid range.
func (p Params) Validate() error {
	if !(p.AgilentAlpha > 0) || math.IsInf(p.AgilentAlpha, 0) {
		return fmt.Errorf("agilent_alpha must be positive and finite, got %v", p.AgilentAlpha)
	}
	if !(p.UnimodalTolerance > 0 && p.UnimodalTolerance <= 1) {
		return fmt.Errorf("unimodal_tolerance must be in (0, 1], got %v", p.UnimodalTolerance)
	}
	if !(p.TrimFraction >= 0 && p.TrimFraction < 1) {
		return fmt.Errorf("trim_fraction must be in [0, 1), got %v", p.TrimFraction)
	}
	if !(p.NoiseFraction >= 0 && p.NoiseFraction <= 1) {
		return fmt.Errorf("noise_fraction must be in [0, 1], got %v", p.NoiseFraction)
	}
	if p.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", p.SmoothingWindow)
	}

	unit := []struct {
		name string
		v    float64
	}{
		{"agilent_pure", p.AgilentPure},
		{"pca_pure", p.PCAPure},
		{"min_correlation_impure", p.MinCorrelationImpure},
		{"min_correlation_pure", p.MinCorrelationPure},
		{"mean_correlation_pure", p.MeanCorrelationPure},
	}
	for _, u := range unit {
		if !(u.v >= 0 && u.v <= 1) {
			return fmt.Errorf("%s must be in [0, 1], got %v", u.name, u.v)
		}
	}
	return nil
}
