package purity

import (
	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

// movingAverage returns the valid-mode moving average of x over window w,
// of length len(x)-w+1. It returns nil when x is shorter than w.
func movingAverage(x []float64, w int) []float64 {
	n := len(x) - w + 1
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for k := 0; k < w; k++ {
		vecmath.AddBlockInPlace(out, x[k:k+n])
	}
	vecmath.ScaleBlockInPlace(out, 1/float64(w))
	return out
}

// isUnimodal reports whether seq rises to its maximum and falls after it,
// allowing a fraction 1-tolerance of adjacent pairs to move the wrong way.
// Pairs up to the maximum must not decrease; pairs after it must not
// increase.
func isUnimodal(seq []float64, tolerance float64) bool {
	if len(seq) <= 2 {
		return true
	}
	peak := floats.MaxIdx(seq)
	var violations int
	for i := 1; i < len(seq); i++ {
		if i <= peak {
			if seq[i] < seq[i-1] {
				violations++
			}
		} else if seq[i] > seq[i-1] {
			violations++
		}
	}
	return float64(violations)/float64(len(seq)-1) <= 1-tolerance
}
