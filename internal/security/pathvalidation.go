// Package security holds the path checks applied to peak files before they
// are read or moved.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its directory.
var ErrPathEscape = errors.New("path escapes directory")

// WithinDirectory reports an error unless path resolves inside dir once
// "." and ".." are cleaned and symlinks are followed. A path that does not
// exist yet is checked through its nearest existing parent, so a symlinked
// parent pointing elsewhere is still caught.
func WithinDirectory(path, dir string) error {
	canonicalDir, err := canonical(dir)
	if err != nil {
		return fmt.Errorf("resolve directory %s: %w", dir, err)
	}
	canonicalPath, err := canonical(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	rel, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s: %w %s", path, ErrPathEscape, dir)
	}
	return nil
}

// canonical returns the absolute, symlink-free form of p. For a missing
// path the longest existing prefix is resolved and the rest re-appended.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	existing := abs
	for {
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, abs)
			return filepath.Join(resolved, rest), nil
		}
		existing = parent
	}
}

// SanitizeFilename reduces s to ASCII letters, digits, '.', '_' and '-',
// collapsing every other run of characters to a single underscore. The
// result is at most 128 bytes and never empty.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
