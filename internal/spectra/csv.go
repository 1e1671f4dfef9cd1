package spectra

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/peakpurity/internal/purity"
)

// DecodeCSV reads an absorbance matrix with one row per wavelength.
//
// Lines starting with '#' carry metadata as key=value pairs; the keys id,
// left and right are recognised. If the first record's leading cell is not
// numeric it is a header: its remaining cells are the time axis and every
// following row starts with its wavelength. Without a header every cell is
// absorbance. Missing bounds default to the whole time range.
func DecodeCSV(r io.Reader) (*Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	doc := &Document{Left: -1, Right: -1}
	header := false
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if first := strings.TrimSpace(rec[0]); strings.HasPrefix(first, "#") {
			if err := applyDirective(doc, strings.Join(rec, ",")); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			continue
		}

		if doc.Absorbance == nil && !header && !isNumber(rec[0]) {
			header = true
			times, err := parseFloats(rec[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: time axis: %w", line, err)
			}
			doc.Times = times
			continue
		}

		values, err := parseFloats(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if header {
			doc.Wavelengths = append(doc.Wavelengths, values[0])
			values = values[1:]
		}
		doc.Absorbance = append(doc.Absorbance, values)
	}

	if len(doc.Absorbance) == 0 {
		return nil, errors.New("csv has no absorbance rows")
	}
	if doc.Left < 0 {
		doc.Left = 0
	}
	if doc.Right < 0 {
		doc.Right = len(doc.Absorbance[0])
	}
	return doc, nil
}

func applyDirective(doc *Document, line string) error {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
	key, value, ok := strings.Cut(body, "=")
	if !ok {
		// Plain comment.
		return nil
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(strings.TrimRight(value, ","))
	switch key {
	case "id":
		doc.ID = value
	case "left", "right":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "left" {
			doc.Left = n
		} else {
			doc.Right = n
		}
	}
	return nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func parseFloats(cells []string) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// EncodeCSV writes p in the headered CSV layout DecodeCSV reads. Axis labels
// default to column and row indices when p has none.
func EncodeCSV(w io.Writer, p *Peak) error {
	waves, times := p.Matrix.Dims()
	cw := csv.NewWriter(w)

	meta := [][]string{
		{"# id=" + p.ID},
		{"# left=" + strconv.Itoa(p.Left)},
		{"# right=" + strconv.Itoa(p.Right)},
	}
	if err := cw.WriteAll(meta); err != nil {
		return err
	}

	head := make([]string, times+1)
	head[0] = "wavelength"
	for t := 0; t < times; t++ {
		head[t+1] = formatFloat(axisValue(p.Times, t))
	}
	if err := cw.Write(head); err != nil {
		return err
	}
	row := make([]string, times+1)
	for wl := 0; wl < waves; wl++ {
		row[0] = formatFloat(axisValue(p.Wavelengths, wl))
		for t := 0; t < times; t++ {
			row[t+1] = formatFloat(p.Matrix.At(wl, t))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func axisValue(axis []float64, i int) float64 {
	if i < len(axis) {
		return axis[i]
	}
	return float64(i)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var _ purity.PeakSource = (*Peak)(nil)
