package purity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpectralMatrix(t *testing.T) {
	t.Parallel()

	m, err := NewSpectralMatrix([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	w, n := m.Dims()
	assert.Equal(t, 2, w)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float64{2, 5}, m.Spectrum(1))
	assert.Equal(t, 6.0, m.At(1, 2))
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, m.Rows())

	_, err = NewSpectralMatrix(nil)
	assert.Error(t, err)
	_, err = NewSpectralMatrix([][]float64{{1, 2}, {3}})
	assert.ErrorContains(t, err, "row 1")
	_, err = NewSpectralMatrix([][]float64{{1, nan()}})
	assert.ErrorContains(t, err, "non-finite")
}

func TestNewSpectralMatrix_CopiesInput(t *testing.T) {
	t.Parallel()
	rows := [][]float64{{1, 2}, {3, 4}}
	m, err := NewSpectralMatrix(rows)
	require.NoError(t, err)
	rows[0][0] = 100
	assert.Equal(t, 1.0, m.At(0, 0))

	spec := m.Spectrum(0)
	spec[0] = 100
	assert.Equal(t, 1.0, m.At(0, 0))
}

func TestFingerprint(t *testing.T) {
	t.Parallel()
	a := mustMatrix(t, [][]float64{{1, 2}, {3, 4}})
	b := mustMatrix(t, [][]float64{{1, 2}, {3, 4}})
	c := mustMatrix(t, [][]float64{{1, 2}, {3, 4.000000001}})
	reshaped := mustMatrix(t, [][]float64{{1, 2, 3, 4}})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), reshaped.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestPeak_ImplementsPeakSource(t *testing.T) {
	t.Parallel()
	m := mustMatrix(t, [][]float64{{1, 2, 3}})
	var src PeakSource = Peak{ID: "p", Matrix: m, Left: 1, Right: 3}
	l, r := src.Bounds()
	assert.Equal(t, 1, l)
	assert.Equal(t, 3, r)
	assert.Same(t, m, src.Spectra())
	assert.Equal(t, "p", peakID(src))
}
