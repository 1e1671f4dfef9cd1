package purity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testWaves = 30
	testTimes = 120
)

// pseudoNoise is a deterministic hash-style noise source in [-0.5, 0.5).
func pseudoNoise(w, t int) float64 {
	x := math.Sin(12.9898*float64(w)+78.233*float64(t)) * 43758.5453
	return x - math.Floor(x) - 0.5
}

func gauss(x, mu, sigma float64) float64 {
	d := (x - mu) / sigma
	return math.Exp(-0.5 * d * d)
}

// speciesA has a main band and a shoulder.
func speciesA(w int) float64 {
	return gauss(float64(w), 12, 5) + 0.3*gauss(float64(w), 22, 3)
}

func speciesB(w int) float64 {
	return gauss(float64(w), 22, 4)
}

func buildMatrix(t *testing.T, f func(w, t int) float64) *SpectralMatrix {
	t.Helper()
	rows := make([][]float64, testWaves)
	for w := range rows {
		rows[w] = make([]float64, testTimes)
		for ti := range rows[w] {
			rows[w][ti] = f(w, ti)
		}
	}
	m, err := NewSpectralMatrix(rows)
	require.NoError(t, err)
	return m
}

// singleSpeciesPeak elutes one species centred at t=60 with light noise.
func singleSpeciesPeak(t *testing.T) Peak {
	m := buildMatrix(t, func(w, ti int) float64 {
		return speciesA(w)*gauss(float64(ti), 60, 6) + 0.001*pseudoNoise(w, ti)
	})
	return Peak{ID: "single", Matrix: m, Left: 35, Right: 85}
}

// coelutingPeak overlaps two species with different spectra, apexes at
// t=52 and t=66.
func coelutingPeak(t *testing.T) Peak {
	m := buildMatrix(t, func(w, ti int) float64 {
		return speciesA(w)*gauss(float64(ti), 52, 6) +
			speciesB(w)*gauss(float64(ti), 66, 6) +
			0.001*pseudoNoise(w, ti)
	})
	return Peak{ID: "coeluting", Matrix: m, Left: 30, Right: 90}
}

// noisePeak has no analyte at all.
func noisePeak(t *testing.T) Peak {
	m := buildMatrix(t, func(w, ti int) float64 {
		return 0.01 * pseudoNoise(w, ti)
	})
	return Peak{ID: "noise", Matrix: m, Left: 30, Right: 90}
}

func mustMatrix(t *testing.T, rows [][]float64) *SpectralMatrix {
	t.Helper()
	m, err := NewSpectralMatrix(rows)
	require.NoError(t, err)
	return m
}

func nan() float64 { return math.NaN() }
