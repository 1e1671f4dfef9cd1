package spectra

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/peakpurity/internal/fsutil"
)

const peakJSON = `{
  "id": "run42-peak3",
  "wavelengths": [200, 210, 220],
  "times": [0.1, 0.2, 0.3, 0.4],
  "absorbance": [
    [0.0, 0.5, 0.4, 0.0],
    [0.0, 1.0, 0.8, 0.1],
    [0.0, 0.2, 0.1, 0.0]
  ],
  "left": 1,
  "right": 3
}`

func TestDecodeJSON(t *testing.T) {
	doc, err := DecodeJSON(strings.NewReader(peakJSON))
	require.NoError(t, err)

	peak, err := doc.Peak()
	require.NoError(t, err)
	assert.Equal(t, "run42-peak3", peak.PeakID())

	waves, times := peak.Matrix.Dims()
	assert.Equal(t, 3, waves)
	assert.Equal(t, 4, times)
	assert.Equal(t, 0.8, peak.Matrix.At(1, 2))

	left, right := peak.Bounds()
	assert.Equal(t, 1, left)
	assert.Equal(t, 3, right)
	assert.Equal(t, []float64{200, 210, 220}, peak.Wavelengths)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`{"absorbance": [[1]], "lft": 0}`))
	assert.Error(t, err)
}

func TestDocumentValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{"empty", Document{}},
		{"wavelength count", Document{Absorbance: [][]float64{{1, 2}}, Wavelengths: []float64{1, 2}}},
		{"time count", Document{Absorbance: [][]float64{{1, 2}}, Times: []float64{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.doc.Validate())
			_, err := tt.doc.Peak()
			assert.Error(t, err)
		})
	}

	ragged := Document{Absorbance: [][]float64{{1, 2}, {3}}}
	_, err := ragged.Peak()
	assert.Error(t, err, "ragged rows are rejected by the matrix constructor")
}

func TestDecodeCSVWithHeader(t *testing.T) {
	in := `# id=csv-peak
# left=1
# right=3
# exported by an instrument
wavelength,0.1,0.2,0.3,0.4
200,0,0.5,0.4,0
210,0,1.0,0.8,0.1
`
	doc, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, "csv-peak", doc.ID)
	assert.Equal(t, 1, doc.Left)
	assert.Equal(t, 3, doc.Right)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, doc.Times)
	assert.Equal(t, []float64{200, 210}, doc.Wavelengths)
	assert.Equal(t, [][]float64{{0, 0.5, 0.4, 0}, {0, 1.0, 0.8, 0.1}}, doc.Absorbance)
}

func TestDecodeCSVBareMatrix(t *testing.T) {
	doc, err := DecodeCSV(strings.NewReader("1,2,3\n4,5,6\n"))
	require.NoError(t, err)

	assert.Nil(t, doc.Times)
	assert.Nil(t, doc.Wavelengths)
	assert.Equal(t, 0, doc.Left)
	assert.Equal(t, 3, doc.Right, "bounds default to the whole range")
}

func TestDecodeCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"only comments", "# id=x\n"},
		{"bad number", "1,2\n3,x\n"},
		{"bad bound", "# left=abc\n1,2\n"},
		{"bad time axis", "wavelength,0.1,later\n200,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestCSVRoundTrip(t *testing.T) {
	doc, err := DecodeJSON(strings.NewReader(peakJSON))
	require.NoError(t, err)
	peak, err := doc.Peak()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeCSV(&buf, peak))

	back, err := DecodeCSV(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(doc, back); diff != "" {
		t.Errorf("csv round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONRoundTripKeepsFingerprint(t *testing.T) {
	doc, err := DecodeJSON(strings.NewReader(peakJSON))
	require.NoError(t, err)
	peak, err := doc.Peak()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, peak))
	back, err := DecodeJSON(&buf)
	require.NoError(t, err)
	again, err := back.Peak()
	require.NoError(t, err)

	assert.Equal(t, peak.Matrix.Fingerprint(), again.Matrix.Fingerprint())
}

func TestLoaderMemoryFS(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/peaks/a.json", []byte(peakJSON), 0644))
	require.NoError(t, mfs.WriteFile("/peaks/unnamed.csv", []byte("1,2,3\n4,5,6\n"), 0644))
	require.NoError(t, mfs.WriteFile("/peaks/notes.txt", []byte("hi"), 0644))
	require.NoError(t, mfs.WriteFile("/peaks/broken.json", []byte("{"), 0644))

	l := &Loader{FS: mfs}

	a, err := l.Load("/peaks/a.json")
	require.NoError(t, err)
	assert.Equal(t, "run42-peak3", a.ID)
	assert.Equal(t, "/peaks/a.json", a.SourcePath())

	u, err := l.Load("/peaks/unnamed.csv")
	require.NoError(t, err)
	assert.Equal(t, "unnamed", u.ID, "id falls back to the file name")

	_, err = l.Load("/peaks/notes.txt")
	assert.Error(t, err)
	_, err = l.Load("/peaks/broken.json")
	assert.ErrorContains(t, err, "broken.json")
	_, err = l.Load("/peaks/missing.json")
	assert.Error(t, err)

	all, err := l.LoadAll([]string{"/peaks/a.json", "/peaks/unnamed.csv"})
	require.NoError(t, err)
	idx := IndexByID(all)
	assert.Contains(t, idx, "run42-peak3")
	assert.Contains(t, idx, "unnamed")

	_, err = l.LoadAll([]string{"/peaks/a.json", "/peaks/broken.json"})
	assert.Error(t, err)
}

func TestLoaderSave(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/peaks/a.json", []byte(peakJSON), 0644))
	l := &Loader{FS: mfs}

	peak, err := l.Load("/peaks/a.json")
	require.NoError(t, err)

	csvPath, err := l.Save("/out", peak, "CSV", false)
	require.NoError(t, err)
	assert.Equal(t, "/out/run42-peak3.csv", csvPath)
	back, err := l.Load(csvPath)
	require.NoError(t, err)
	assert.Equal(t, peak.Matrix.Fingerprint(), back.Matrix.Fingerprint())
	assert.Equal(t, peak.Left, back.Left)
	assert.Equal(t, peak.Right, back.Right)

	_, err = l.Save("/out", peak, "csv", false)
	assert.ErrorIs(t, err, ErrExists)
	_, err = l.Save("/out", peak, "csv", true)
	assert.NoError(t, err)

	peak.ID = "../escape me"
	jsonPath, err := l.Save("/out", peak, ".json", false)
	require.NoError(t, err)
	assert.Equal(t, "/out/escape_me.json", jsonPath)
	assert.True(t, mfs.Exists(jsonPath))

	_, err = l.Save("/out", peak, "xml", false)
	assert.Error(t, err)
}

func TestLoaderRootConfinement(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "p.json")
	require.NoError(t, os.WriteFile(inside, []byte(peakJSON), 0644))

	outsideDir := t.TempDir()
	outside := filepath.Join(outsideDir, "q.json")
	require.NoError(t, os.WriteFile(outside, []byte(peakJSON), 0644))

	l := NewLoader(root)
	_, err := l.Load(inside)
	assert.NoError(t, err)

	_, err = l.Load(outside)
	assert.Error(t, err)

	_, err = l.Load(filepath.Join(root, "..", filepath.Base(outsideDir), "q.json"))
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.json"))
	assert.True(t, Supported("A.CSV"))
	assert.False(t, Supported("a.txt"))
	assert.False(t, Supported("json"))
}
