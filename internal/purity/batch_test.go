package purity

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeBatch(t *testing.T) {
	t.Parallel()
	degenerate := Peak{
		ID:     "flat",
		Matrix: mustMatrix(t, [][]float64{{0, 0, 0}, {0, 0, 0}}),
		Left:   0,
		Right:  3,
	}
	peaks := []PeakSource{singleSpeciesPeak(t), degenerate, coelutingPeak(t), nil}

	results, err := AnalyzeBatch(context.Background(), peaks, DefaultParams(), 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "single", results[0].PeakID)
	assert.True(t, results[0].Verdict.Pure)

	var de *DegeneratePeakError
	assert.ErrorAs(t, results[1].Err, &de)
	assert.Equal(t, "flat", results[1].PeakID)

	assert.NoError(t, results[2].Err)
	assert.False(t, results[2].Verdict.Pure)

	assert.Error(t, results[3].Err)
}

func TestAnalyzeBatch_MatchesSequential(t *testing.T) {
	t.Parallel()
	peaks := []PeakSource{singleSpeciesPeak(t), coelutingPeak(t), noisePeak(t), singleSpeciesPeak(t)}

	results, err := AnalyzeBatch(context.Background(), peaks, DefaultParams(), 0)
	require.NoError(t, err)

	for i, src := range peaks {
		want, wantErr := Analyze(src, DefaultParams())
		assert.Equal(t, wantErr, results[i].Err)
		if diff := cmp.Diff(want, results[i].Verdict); diff != "" {
			t.Errorf("peak %d differs from sequential analysis:\n%s", i, diff)
		}
	}
}

func TestAnalyzeBatch_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	peaks := []PeakSource{singleSpeciesPeak(t), coelutingPeak(t)}
	results, err := AnalyzeBatch(ctx, peaks, DefaultParams(), 1)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Equal(t, "single", results[0].PeakID)
}

func TestAnalyzeBatch_Empty(t *testing.T) {
	t.Parallel()
	results, err := AnalyzeBatch(context.Background(), nil, DefaultParams(), 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAnalyzeBatch_InvalidParams(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.SmoothingWindow = 0
	_, err := AnalyzeBatch(context.Background(), []PeakSource{singleSpeciesPeak(t)}, p, 1)
	require.Error(t, err)
}
