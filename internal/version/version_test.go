package version

import "testing"

func TestCurrent(t *testing.T) {
	oldV, oldSHA, oldTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldTime })

	Version, GitSHA, BuildTime = "v0.3.1", "abc1234", "2025-03-01T12:00:00Z"
	info := Current()
	if info.Version != "v0.3.1" || info.GitSHA != "abc1234" {
		t.Errorf("Current() = %+v", info)
	}
	if got, want := info.String(), "peakpurity v0.3.1 (abc1234, built 2025-03-01T12:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
