// Package watch analyses peak files as an instrument export drops them into
// a directory.
//
// A file is handled once it has been quiet for the settle period, so a peak
// still being written is not read half way through. With archiving enabled
// handled files are moved into processed/ or failed/ below the watched
// directory; otherwise a file is handled again only when its size or
// modification time changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/banshee-data/peakpurity/internal/fsutil"
	"github.com/banshee-data/peakpurity/internal/monitoring"
	"github.com/banshee-data/peakpurity/internal/spectra"
	"github.com/banshee-data/peakpurity/internal/timeutil"
)

// Archive subdirectories.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// DefaultSettle is the quiet period used when Options.Settle is zero.
const DefaultSettle = 500 * time.Millisecond

// Handler processes one settled peak file. A returned error is logged and,
// when archiving, sends the file to failed/.
type Handler func(ctx context.Context, path string) error

// Options configure a Watcher. Zero values select the real filesystem, the
// real clock, DefaultSettle and the monitoring logger.
type Options struct {
	Settle  time.Duration
	Archive bool
	FS      fsutil.FileSystem
	Clock   timeutil.Clock
	Logf    func(format string, v ...interface{})
}

type stamp struct {
	size    int64
	modTime time.Time
}

// Watcher feeds settled peak files in one directory to a Handler.
type Watcher struct {
	dir    string
	handle Handler
	opts   Options

	// pending maps a path to the time of its latest event.
	pending map[string]time.Time
	// handled records the file state last handed to the Handler.
	handled map[string]stamp
}

// New returns a Watcher for dir. dir must exist.
func New(dir string, handle Handler, opts Options) (*Watcher, error) {
	if handle == nil {
		return nil, errors.New("watch: nil handler")
	}
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Logf == nil {
		opts.Logf = monitoring.Prefixed("[watch] ")
	}
	info, err := opts.FS.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", dir)
	}
	return &Watcher{
		dir:     filepath.Clean(dir),
		handle:  handle,
		opts:    opts,
		pending: make(map[string]time.Time),
		handled: make(map[string]stamp),
	}, nil
}

// Run watches the directory until ctx is cancelled. Files already present
// are queued first. Run returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	if err := w.Scan(); err != nil {
		return err
	}
	w.opts.Logf("watching %s (settle %s)", w.dir, w.opts.Settle)

	ticker := w.opts.Clock.NewTicker(w.opts.Settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.notify(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logf("watcher error: %v", err)
		case now := <-ticker.C():
			w.Flush(ctx, now)
		}
	}
}

func (w *Watcher) notify(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		w.Observe(ev.Name)
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		delete(w.pending, ev.Name)
		delete(w.handled, ev.Name)
	}
}

// Observe records activity on path, restarting its settle period. Paths
// outside the watched directory or with unsupported extensions are ignored.
func (w *Watcher) Observe(path string) {
	if filepath.Dir(filepath.Clean(path)) != w.dir || !spectra.Supported(path) {
		return
	}
	w.pending[filepath.Clean(path)] = w.opts.Clock.Now()
}

// Scan queues every supported file currently in the directory.
func (w *Watcher) Scan() error {
	names, err := w.opts.FS.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.dir, err)
	}
	for _, name := range names {
		w.Observe(filepath.Join(w.dir, name))
	}
	return nil
}

// Pending returns the number of files waiting to settle.
func (w *Watcher) Pending() int { return len(w.pending) }

// Flush hands every file that has been quiet for the settle period to the
// Handler, in name order, and returns how many were handled.
func (w *Watcher) Flush(ctx context.Context, now time.Time) int {
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.opts.Settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	n := 0
	for _, path := range ready {
		if ctx.Err() != nil {
			break
		}
		delete(w.pending, path)
		if w.process(ctx, path) {
			n++
		}
	}
	return n
}

func (w *Watcher) process(ctx context.Context, path string) bool {
	info, err := w.opts.FS.Stat(path)
	if err != nil {
		// Removed before it settled.
		return false
	}
	st := stamp{size: info.Size(), modTime: info.ModTime()}
	if !w.opts.Archive {
		if prev, ok := w.handled[path]; ok && prev == st {
			return false
		}
	}

	herr := w.handle(ctx, path)
	if herr != nil {
		w.opts.Logf("%s: %v", filepath.Base(path), herr)
	}

	if !w.opts.Archive {
		w.handled[path] = st
		return true
	}
	sub := ProcessedDir
	if herr != nil {
		sub = FailedDir
	}
	if err := w.archive(path, sub); err != nil {
		w.opts.Logf("archive %s: %v", filepath.Base(path), err)
	}
	return true
}

func (w *Watcher) archive(path, sub string) error {
	destDir := filepath.Join(w.dir, sub)
	if err := w.opts.FS.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	return w.opts.FS.Rename(path, filepath.Join(destDir, filepath.Base(path)))
}
