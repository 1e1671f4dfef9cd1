package purity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCropPeak(t *testing.T) {
	t.Parallel()
	m := mustMatrix(t, [][]float64{
		{0, 1, 10, 1, 0.2},
		{0, 2, 20, 3, 0.1},
	})

	t.Run("drops columns at or below five percent", func(t *testing.T) {
		c, err := cropPeak(m, 0, 5, 0.05)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, c.columns)
		assert.Equal(t, 1, c.maxLoc)
		assert.Equal(t, []float64{10, 20}, c.spectrum(1))
	})

	t.Run("indexes are relative to the full matrix", func(t *testing.T) {
		c, err := cropPeak(m, 2, 5, 0.05)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, c.columns)
		assert.Equal(t, 0, c.maxLoc)
	})

	t.Run("zero trim keeps every positive column", func(t *testing.T) {
		c, err := cropPeak(m, 0, 5, 0)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4}, c.columns)
	})

	t.Run("all zero region is degenerate", func(t *testing.T) {
		_, err := cropPeak(m, 0, 1, 0.05)
		var de *DegeneratePeakError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, 0.0, de.MaxSignal)
	})
}

func TestColumnTotals(t *testing.T) {
	t.Parallel()
	m := mustMatrix(t, [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	assert.Equal(t, []float64{5, 7, 9}, columnTotals(m.m))
}

func TestNoiseVariance(t *testing.T) {
	t.Parallel()

	t.Run("averages variance of quiet columns", func(t *testing.T) {
		m := mustMatrix(t, [][]float64{
			{100, 0.1, 0.3},
			{50, 0.3, 0.5},
		})
		assert.InDelta(t, 0.01, noiseVariance(m, 0.01), 1e-12)
	})

	t.Run("no quiet columns yields zero", func(t *testing.T) {
		m := mustMatrix(t, [][]float64{
			{1, 2, 3},
			{2, 3, 4},
		})
		assert.Equal(t, 0.0, noiseVariance(m, 0.01))
	})

	t.Run("uses the whole run, not the peak", func(t *testing.T) {
		p := singleSpeciesPeak(t)
		full := noiseVariance(p.Matrix, 0.01)
		assert.Greater(t, full, 0.0)
		// Baseline noise amplitude is 0.001, so variance stays below 0.001^2.
		assert.Less(t, full, 1e-6)
	})
}

func TestColumnVariances(t *testing.T) {
	t.Parallel()
	m := mustMatrix(t, [][]float64{
		{1, 2, 1},
		{3, 2, 5},
	})
	c, err := cropPeak(m, 0, 3, 0.05)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 4}, columnVariances(c))
}
