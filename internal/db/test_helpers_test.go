package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/peakpurity/internal/purity"
	"github.com/banshee-data/peakpurity/internal/testutil"
	"github.com/banshee-data/peakpurity/internal/timeutil"
)

// setupTestDB opens a migrated database in a temp dir with a mock clock.
func setupTestDB(t *testing.T) (*DB, *timeutil.MockClock) {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clock := timeutil.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	database.SetClock(clock)
	return database, clock
}

// testPeak is a single clean species; it analyses as pure.
func testPeak(t *testing.T, id string) purity.Peak {
	t.Helper()
	return testutil.Peak(t, testutil.SinglePeak(id)).Peak
}

// flatPeak cannot be classified: every column is zero.
func flatPeak(t *testing.T, id string) purity.Peak {
	t.Helper()
	return testutil.Peak(t, testutil.FlatPeak(id)).Peak
}
