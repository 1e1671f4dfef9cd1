package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/peakpurity/internal/fsutil"
	"github.com/banshee-data/peakpurity/internal/timeutil"
)

// recorder is a Handler that remembers every path it saw and fails for
// the paths listed in fail.
type recorder struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]bool
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	if r.fail[filepath.Base(path)] {
		return errors.New("bad peak")
	}
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newMemWatcher(t *testing.T, archive bool, rec *recorder) (*Watcher, *fsutil.MemoryFileSystem, *timeutil.MockClock) {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	require.NoError(t, fs.MkdirAll("/in", 0755))
	clock := timeutil.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	w, err := New("/in", rec.handle, Options{
		Settle:  time.Second,
		Archive: archive,
		FS:      fs,
		Clock:   clock,
		Logf:    t.Logf,
	})
	require.NoError(t, err)
	return w, fs, clock
}

func TestNewRejectsBadArguments(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	require.NoError(t, fs.WriteFile("/in/a.json", []byte("{}"), 0644))
	rec := &recorder{}

	_, err := New("/missing", rec.handle, Options{FS: fs})
	assert.Error(t, err)

	_, err = New("/in/a.json", rec.handle, Options{FS: fs})
	assert.Error(t, err)

	_, err = New("/in", nil, Options{FS: fs})
	assert.Error(t, err)
}

func TestFlushWaitsForSettle(t *testing.T) {
	rec := &recorder{}
	w, fs, clock := newMemWatcher(t, false, rec)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile("/in/b.json", []byte("{}"), 0644))
	require.NoError(t, fs.WriteFile("/in/a.csv", []byte("1,2"), 0644))
	require.NoError(t, fs.WriteFile("/in/notes.txt", []byte("x"), 0644))
	require.NoError(t, w.Scan())
	assert.Equal(t, 2, w.Pending())

	clock.Advance(500 * time.Millisecond)
	assert.Zero(t, w.Flush(ctx, clock.Now()))

	// A fresh write restarts the settle period for that file only.
	w.Observe("/in/b.json")
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, w.Flush(ctx, clock.Now()))
	assert.Equal(t, []string{"/in/a.csv"}, rec.seen())

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, w.Flush(ctx, clock.Now()))
	assert.Equal(t, []string{"/in/a.csv", "/in/b.json"}, rec.seen())
	assert.Zero(t, w.Pending())
}

func TestUnchangedFilesAreNotHandledTwice(t *testing.T) {
	rec := &recorder{}
	w, fs, clock := newMemWatcher(t, false, rec)
	ctx := context.Background()

	require.NoError(t, fs.WriteFile("/in/a.json", []byte("{}"), 0644))
	w.Observe("/in/a.json")
	clock.Advance(time.Second)
	assert.Equal(t, 1, w.Flush(ctx, clock.Now()))

	w.Observe("/in/a.json")
	clock.Advance(time.Second)
	assert.Zero(t, w.Flush(ctx, clock.Now()))

	require.NoError(t, fs.WriteFile("/in/a.json", []byte(`{"id":"x"}`), 0644))
	w.Observe("/in/a.json")
	clock.Advance(time.Second)
	assert.Equal(t, 1, w.Flush(ctx, clock.Now()))
	assert.Len(t, rec.seen(), 2)
}

func TestArchiveMovesHandledFiles(t *testing.T) {
	rec := &recorder{fail: map[string]bool{"bad.json": true}}
	w, fs, clock := newMemWatcher(t, true, rec)

	require.NoError(t, fs.WriteFile("/in/good.json", []byte("{}"), 0644))
	require.NoError(t, fs.WriteFile("/in/bad.json", []byte("{}"), 0644))
	require.NoError(t, w.Scan())
	clock.Advance(time.Second)
	assert.Equal(t, 2, w.Flush(context.Background(), clock.Now()))

	assert.False(t, fs.Exists("/in/good.json"))
	assert.False(t, fs.Exists("/in/bad.json"))
	assert.True(t, fs.Exists("/in/processed/good.json"))
	assert.True(t, fs.Exists("/in/failed/bad.json"))

	names, err := fs.ReadDir("/in")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestObserveIgnoresOtherPaths(t *testing.T) {
	rec := &recorder{}
	w, _, _ := newMemWatcher(t, false, rec)

	w.Observe("/in/processed/a.json")
	w.Observe("/elsewhere/a.json")
	w.Observe("/in/a.txt")
	w.Observe("/in/processed")
	assert.Zero(t, w.Pending())

	w.Observe("/in/./a.json")
	assert.Equal(t, 1, w.Pending())
}

func TestNotifyRemoveDropsPending(t *testing.T) {
	rec := &recorder{}
	w, _, _ := newMemWatcher(t, false, rec)

	w.notify(fsnotify.Event{Name: "/in/a.json", Op: fsnotify.Create})
	w.notify(fsnotify.Event{Name: "/in/a.json", Op: fsnotify.Write})
	assert.Equal(t, 1, w.Pending())

	w.notify(fsnotify.Event{Name: "/in/a.json", Op: fsnotify.Remove})
	assert.Zero(t, w.Pending())
}

func TestFileRemovedBeforeSettleIsSkipped(t *testing.T) {
	rec := &recorder{}
	w, _, clock := newMemWatcher(t, false, rec)

	w.Observe("/in/ghost.json")
	clock.Advance(time.Second)
	assert.Zero(t, w.Flush(context.Background(), clock.Now()))
	assert.Empty(t, rec.seen())
}

func TestRunPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "early.json"), []byte("{}"), 0644))

	rec := &recorder{}
	w, err := New(dir, rec.handle, Options{Settle: 20 * time.Millisecond, Archive: true, Logf: t.Logf})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.csv"), []byte("1,2"), 0644))
	require.Eventually(t, func() bool { return len(rec.seen()) == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "early.json"))
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "late.csv"))
}
