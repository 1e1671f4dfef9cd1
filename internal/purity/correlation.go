package purity

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CorrelationProfile holds the squared Pearson correlation of every retained
// spectrum against the apex spectrum (ToMax) and against the first retained
// spectrum (ToLeft).
type CorrelationProfile struct {
	ToMax  []float64 `json:"to_max"`
	ToLeft []float64 `json:"to_left"`
}

// Min returns the smallest coefficient over both sequences.
func (p CorrelationProfile) Min() float64 {
	return math.Min(floats.Min(p.ToMax), floats.Min(p.ToLeft))
}

// Mean returns the mean coefficient over both sequences.
func (p CorrelationProfile) Mean() float64 {
	n := len(p.ToMax) + len(p.ToLeft)
	return (floats.Sum(p.ToMax) + floats.Sum(p.ToLeft)) / float64(n)
}

func squaredCorrelation(x, y []float64) float64 {
	r := stat.Correlation(x, y, nil)
	return r * r
}

func correlationProfile(c *croppedPeak) (CorrelationProfile, error) {
	n := c.retained()
	apex := c.spectrum(c.maxLoc)
	first := c.spectrum(0)
	p := CorrelationProfile{
		ToMax:  make([]float64, n),
		ToLeft: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s := c.spectrum(i)
		p.ToMax[i] = squaredCorrelation(s, apex)
		p.ToLeft[i] = squaredCorrelation(s, first)
		if !isFinite(p.ToMax[i]) || !isFinite(p.ToLeft[i]) {
			return CorrelationProfile{}, &InvalidSignalError{
				Signal: SignalCorrelation,
				Column: c.columns[i],
				Reason: "correlation undefined, spectrum is constant",
			}
		}
	}
	return p, nil
}

// AgilentThreshold returns the noise-normalised correlation threshold for a
// column with variance v, given the apex variance vMax:
//
//	max(0, 1 - alpha*(noise/v + noise/vMax))^2
//
// A zero variance on either side makes the threshold 0.
func AgilentThreshold(v, vMax, noise, alpha float64) float64 {
	if v == 0 || vMax == 0 {
		return 0
	}
	t := 1 - alpha*(noise/v+noise/vMax)
	if t < 0 {
		t = 0
	}
	return t * t
}

// negligibleNoise is the noise-to-apex-variance ratio below which a peak is
// treated as carrying no detectable noise.
const negligibleNoise = 1e-12

// agilentRatio returns the per-column thresholds and the fraction of columns
// whose correlation to the apex exceeds them. Zero-variance columns always
// count as failures. With negligible noise the threshold saturates at 1 and
// every other column passes.
func agilentRatio(toMax, variances []float64, maxLoc int, noise, alpha float64) ([]float64, float64) {
	thresholds := make([]float64, len(toMax))
	vMax := variances[maxLoc]
	saturated := noise <= negligibleNoise*vMax
	var pass int
	for i, r := range toMax {
		thresholds[i] = AgilentThreshold(variances[i], vMax, noise, alpha)
		if variances[i] == 0 || vMax == 0 {
			continue
		}
		if saturated || r > thresholds[i] {
			pass++
		}
	}
	return thresholds, float64(pass) / float64(len(toMax))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
