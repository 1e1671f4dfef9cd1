// Package spectra reads diode-array peak files into purity.PeakSource
// values. Two formats are supported: a JSON peak document and a CSV
// absorbance matrix with optional "# key=value" metadata lines.
package spectra

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/peakpurity/internal/purity"
)

// Document is the JSON form of one detected peak. Absorbance is indexed
// [wavelength][time]; Left and Right are half-open time-column bounds.
type Document struct {
	ID          string      `json:"id"`
	Wavelengths []float64   `json:"wavelengths,omitempty"`
	Times       []float64   `json:"times,omitempty"`
	Absorbance  [][]float64 `json:"absorbance"`
	Left        int         `json:"left"`
	Right       int         `json:"right"`
}

// Validate checks the document shape. Bounds are checked by the analyzer so
// that an out-of-range peak is reported as indeterminate rather than as a
// malformed file.
func (d *Document) Validate() error {
	if len(d.Absorbance) == 0 {
		return errors.New("absorbance is empty")
	}
	times := len(d.Absorbance[0])
	if d.Wavelengths != nil && len(d.Wavelengths) != len(d.Absorbance) {
		return fmt.Errorf("wavelengths has %d entries, absorbance has %d rows", len(d.Wavelengths), len(d.Absorbance))
	}
	if d.Times != nil && len(d.Times) != times {
		return fmt.Errorf("times has %d entries, absorbance has %d columns", len(d.Times), times)
	}
	return nil
}

// Peak converts the document into an analyzable peak.
func (d *Document) Peak() (*Peak, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	m, err := purity.NewSpectralMatrix(d.Absorbance)
	if err != nil {
		return nil, err
	}
	return &Peak{
		Peak:        purity.Peak{ID: d.ID, Matrix: m, Left: d.Left, Right: d.Right},
		Wavelengths: d.Wavelengths,
		Times:       d.Times,
	}, nil
}

// DecodeJSON reads one peak document from r.
func DecodeJSON(r io.Reader) (*Document, error) {
	var d Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode peak document: %w", err)
	}
	return &d, nil
}

// EncodeJSON writes p as a peak document.
func EncodeJSON(w io.Writer, p *Peak) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p.Document())
}

// Peak is a loaded peak with its optional axis labels and origin.
type Peak struct {
	purity.Peak
	Wavelengths []float64
	Times       []float64
	Path        string
}

// SourcePath returns the file the peak was loaded from, if any.
func (p *Peak) SourcePath() string { return p.Path }

// Document returns the JSON form of p.
func (p *Peak) Document() *Document {
	return &Document{
		ID:          p.ID,
		Wavelengths: p.Wavelengths,
		Times:       p.Times,
		Absorbance:  p.Matrix.Rows(),
		Left:        p.Left,
		Right:       p.Right,
	}
}
