// Package testutil provides shared test utilities and synthetic peaks.
//
// The peak builders produce deterministic diode-array data so tests in
// different packages can reason about the same inputs.
package testutil

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/peakpurity/internal/spectra"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewJSONRequest creates a test HTTP request with body encoded as JSON. A
// nil body sends no content.
func NewJSONRequest(t testing.TB, method, path string, body interface{}) *http.Request {
	t.Helper()
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes a recorded response body into v.
func DecodeJSON(t testing.TB, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// Component is one eluting species: a Gaussian spectrum centred on
// wavelength index SpectrumCentre and a Gaussian elution profile centred
// on time index ElutionCentre.
type Component struct {
	Amplitude      float64
	SpectrumCentre float64
	SpectrumWidth  float64
	ElutionCentre  float64
	ElutionWidth   float64
}

// Noise returns deterministic pseudo-random noise in [-0.5, 0.5) for a
// matrix cell.
func Noise(w, t int) float64 {
	v := math.Sin(12.9898*float64(w)+78.233*float64(t)) * 43758.5453
	return v - math.Floor(v) - 0.5
}

// Rows sums components into a waves x times absorbance matrix and adds
// noiseLevel * Noise to every cell.
func Rows(waves, times int, noiseLevel float64, components ...Component) [][]float64 {
	rows := make([][]float64, waves)
	for w := range rows {
		rows[w] = make([]float64, times)
		for t := range rows[w] {
			v := noiseLevel * Noise(w, t)
			for _, c := range components {
				s := math.Exp(-math.Pow(float64(w)-c.SpectrumCentre, 2) / (2 * c.SpectrumWidth * c.SpectrumWidth))
				e := math.Exp(-math.Pow(float64(t)-c.ElutionCentre, 2) / (2 * c.ElutionWidth * c.ElutionWidth))
				v += c.Amplitude * s * e
			}
			rows[w][t] = v
		}
	}
	return rows
}

// SinglePeak returns a document holding one clean species, well separated
// from the edges of the run so noise columns exist on both sides.
func SinglePeak(id string) *spectra.Document {
	return &spectra.Document{
		ID: id,
		Absorbance: Rows(16, 60, 1e-4, Component{
			Amplitude: 1, SpectrumCentre: 6, SpectrumWidth: 3,
			ElutionCentre: 30, ElutionWidth: 4.5,
		}),
		Left:  15,
		Right: 45,
	}
}

// FlatPeak returns a document whose window carries no signal at all; it
// is always indeterminate.
func FlatPeak(id string) *spectra.Document {
	return &spectra.Document{
		ID:         id,
		Absorbance: Rows(4, 20, 0),
		Left:       2,
		Right:      18,
	}
}

// Peak converts a document, failing the test on error.
func Peak(t testing.TB, doc *spectra.Document) *spectra.Peak {
	t.Helper()
	p, err := doc.Peak()
	if err != nil {
		t.Fatalf("build peak %q: %v", doc.ID, err)
	}
	return p
}
