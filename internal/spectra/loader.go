package spectra

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/peakpurity/internal/fsutil"
	"github.com/banshee-data/peakpurity/internal/security"
)

// MaxFileSize bounds a single peak file. A 1000 wavelength by 2000 time
// point matrix in JSON is well under this.
const MaxFileSize = 64 * 1024 * 1024

// Loader reads peak files through a FileSystem. When Root is set, paths
// outside it are rejected.
type Loader struct {
	FS   fsutil.FileSystem
	Root string
}

// NewLoader returns a Loader on the real filesystem confined to root. An
// empty root disables the confinement check.
func NewLoader(root string) *Loader {
	return &Loader{FS: fsutil.OSFileSystem{}, Root: root}
}

// Supported reports whether path has an extension the loader understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".csv":
		return true
	}
	return false
}

// Load reads the peak file at path. The format is chosen by extension. A
// peak without an id takes the file's base name.
func (l *Loader) Load(path string) (*Peak, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%s: unsupported peak file extension %q", path, filepath.Ext(path))
	}
	if l.Root != "" {
		if err := security.WithinDirectory(path, l.Root); err != nil {
			return nil, err
		}
	}
	info, err := l.FS.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat peak file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s: peak file too large: %d bytes (max %d)", path, info.Size(), MaxFileSize)
	}
	data, err := l.FS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read peak file: %w", err)
	}

	var doc *Document
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		doc, err = DecodeCSV(bytes.NewReader(data))
	} else {
		doc, err = DecodeJSON(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	peak, err := doc.Peak()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	peak.Path = path
	return peak, nil
}

// LoadAll loads every path, stopping at the first failure.
func (l *Loader) LoadAll(paths []string) ([]*Peak, error) {
	peaks := make([]*Peak, 0, len(paths))
	for _, p := range paths {
		peak, err := l.Load(p)
		if err != nil {
			return nil, err
		}
		peaks = append(peaks, peak)
	}
	return peaks, nil
}

// ErrExists is returned by Save when the target file is already present.
var ErrExists = errors.New("file already exists")

// Save writes p into dir as <id>.json or <id>.csv and returns the path. The
// id is sanitised into a file name. An existing file is replaced only when
// overwrite is set.
func (l *Loader) Save(dir string, p *Peak, format string, overwrite bool) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	var buf bytes.Buffer
	var err error
	switch format {
	case "json":
		err = EncodeJSON(&buf, p)
	case "csv":
		err = EncodeCSV(&buf, p)
	default:
		return "", fmt.Errorf("unsupported output format %q (want json or csv)", format)
	}
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", p.ID, err)
	}

	path := filepath.Join(dir, security.SanitizeFilename(p.ID)+"."+format)
	if l.Root != "" {
		if err := security.WithinDirectory(path, l.Root); err != nil {
			return "", err
		}
	}
	if !overwrite && l.FS.Exists(path) {
		return "", fmt.Errorf("%s: %w", path, ErrExists)
	}
	if err := l.FS.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	if err := l.FS.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write peak file: %w", err)
	}
	return path, nil
}

// IndexByID maps peak IDs to peaks. Later duplicates win.
func IndexByID(peaks []*Peak) map[string]*Peak {
	out := make(map[string]*Peak, len(peaks))
	for _, p := range peaks {
		out[p.ID] = p
	}
	return out
}
