package purity

import (
	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// croppedPeak is the peak region after low-signal columns were dropped.
// It lives for one analysis call.
type croppedPeak struct {
	data    *mat.Dense // wavelengths x retained columns
	columns []int      // time index of each retained column in the full matrix
	maxLoc  int        // retained column with the largest total signal
}

func (c *croppedPeak) retained() int { return len(c.columns) }

func (c *croppedPeak) spectrum(i int) []float64 {
	return mat.Col(nil, i, c.data)
}

// columnTotals sums each column of a over its rows.
func columnTotals(a mat.Matrix) []float64 {
	r, c := a.Dims()
	totals := make([]float64, c)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, a)
		vecmath.AddBlockInPlace(totals, row)
	}
	return totals
}

// cropPeak extracts columns [left, right) of m and keeps those whose total
// absorbance exceeds trim times the largest column total.
func cropPeak(m *SpectralMatrix, left, right int, trim float64) (*croppedPeak, error) {
	waves, _ := m.Dims()
	region := m.m.Slice(0, waves, left, right)
	totals := columnTotals(region)
	sMax := floats.Max(totals)
	cut := trim * sMax

	var keep []int
	for j, t := range totals {
		if t > cut {
			keep = append(keep, j)
		}
	}
	if len(keep) == 0 {
		return nil, &DegeneratePeakError{Left: left, Right: right, MaxSignal: sMax}
	}

	c := &croppedPeak{
		data:    mat.NewDense(waves, len(keep), nil),
		columns: make([]int, len(keep)),
	}
	best := 0
	for k, j := range keep {
		c.data.SetCol(k, mat.Col(nil, j, region))
		c.columns[k] = left + j
		if totals[j] > totals[keep[best]] {
			best = k
		}
	}
	c.maxLoc = best
	return c, nil
}

// noiseVariance estimates the instrument noise floor from the whole run:
// the mean across-wavelength variance of the columns whose maximum
// absorbance stays below frac times the run maximum. It returns 0 when no
// column qualifies.
func noiseVariance(m *SpectralMatrix, frac float64) float64 {
	_, times := m.Dims()
	ceiling := frac * mat.Max(m.m)

	var sum float64
	var n int
	for t := 0; t < times; t++ {
		col := m.Spectrum(t)
		if floats.Max(col) < ceiling {
			sum += stat.PopVariance(col, nil)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// columnVariances returns the across-wavelength population variance of
// every retained column.
func columnVariances(c *croppedPeak) []float64 {
	out := make([]float64, c.retained())
	for i := range out {
		out[i] = stat.PopVariance(c.spectrum(i), nil)
	}
	return out
}
