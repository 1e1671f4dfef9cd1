package purity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SpectralMatrix is a read-only absorbance matrix indexed [wavelength, time].
// Every time column shares the same wavelength axis.
type SpectralMatrix struct {
	m *mat.Dense
}

// NewSpectralMatrix builds a matrix from one row per wavelength. Rows must
// be non-empty, equally long and hold only finite values.
func NewSpectralMatrix(rows [][]float64) (*SpectralMatrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("spectral matrix must have at least one wavelength and one time point")
	}
	times := len(rows[0])
	data := make([]float64, 0, len(rows)*times)
	for i, row := range rows {
		if len(row) != times {
			return nil, fmt.Errorf("wavelength row %d has %d time points, want %d", i, len(row), times)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("non-finite absorbance at [%d, %d]", i, j)
			}
		}
		data = append(data, row...)
	}
	return &SpectralMatrix{m: mat.NewDense(len(rows), times, data)}, nil
}

// Dims returns the number of wavelengths and time points.
func (s *SpectralMatrix) Dims() (wavelengths, times int) {
	return s.m.Dims()
}

// At returns the absorbance at wavelength index w and time index t.
func (s *SpectralMatrix) At(w, t int) float64 {
	return s.m.At(w, t)
}

// Spectrum returns a copy of the spectrum recorded at time index t.
func (s *SpectralMatrix) Spectrum(t int) []float64 {
	return mat.Col(nil, t, s.m)
}

// Rows returns a copy of the matrix as one slice per wavelength.
func (s *SpectralMatrix) Rows() [][]float64 {
	r, _ := s.m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, s.m)
	}
	return out
}

// Fingerprint returns a hex SHA-256 digest of the dimensions and the exact
// bit pattern of every value. Two matrices with the same fingerprint
// produce bit-identical verdicts.
func (s *SpectralMatrix) Fingerprint() string {
	r, c := s.m.Dims()
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(r))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(c))
	h.Write(buf[:])
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s.m.At(i, j)))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PeakSource is the input contract of the analyzer: a spectral matrix and
// half-open time bounds [left, right) of one detected peak.
type PeakSource interface {
	Spectra() *SpectralMatrix
	Bounds() (left, right int)
}

// Peak is the plain PeakSource implementation.
type Peak struct {
	ID     string
	Matrix *SpectralMatrix
	Left   int
	Right  int
}

func (p Peak) Spectra() *SpectralMatrix  { return p.Matrix }
func (p Peak) Bounds() (left, right int) { return p.Left, p.Right }

// PeakID returns the caller-supplied identifier.
func (p Peak) PeakID() string { return p.ID }

// peakID returns the identifier of src if it carries one.
func peakID(src PeakSource) string {
	if ider, ok := src.(interface{ PeakID() string }); ok {
		return ider.PeakID()
	}
	return ""
}

// checkBounds validates the input contract once, before any computation.
func checkBounds(src PeakSource) (*SpectralMatrix, int, int, error) {
	if src == nil {
		return nil, 0, 0, errors.New("nil peak")
	}
	m := src.Spectra()
	if m == nil || m.m == nil {
		return nil, 0, 0, errors.New("peak has no spectral matrix")
	}
	left, right := src.Bounds()
	_, times := m.Dims()
	if left < 0 || left >= right || right > times {
		return nil, 0, 0, &BoundsError{Left: left, Right: right, Times: times}
	}
	return m, left, right, nil
}
