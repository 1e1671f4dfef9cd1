package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_RenameAndReadDir(t *testing.T) {
	fsys := OSFileSystem{}
	dir := t.TempDir()

	src := filepath.Join(dir, "peak.json")
	if err := fsys.WriteFile(src, []byte(`{}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fsys.MkdirAll(filepath.Join(dir, "done"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	names, err := fsys.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 1 || names[0] != "peak.json" {
		t.Errorf("ReadDir = %v, want [peak.json] (directories excluded)", names)
	}

	dst := filepath.Join(dir, "done", "peak.json")
	if err := fsys.Rename(src, dst); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if fsys.Exists(src) || !fsys.Exists(dst) {
		t.Error("expected file to move into done/")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/peaks/test.json", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/peaks/test.json")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// The returned slice is a copy.
	data[0] = 'X'
	again, _ := mfs.ReadFile("/peaks/test.json")
	if again[0] != 'h' {
		t.Error("ReadFile returned shared storage")
	}

	if !mfs.Exists("/peaks") {
		t.Error("expected parent directory to exist")
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("/missing.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	_, err = mfs.Stat("/missing.json")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_Stat(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("/a/b.csv", []byte("1,2,3"), 0600); err != nil {
		t.Fatal(err)
	}

	info, err := mfs.Stat("/a/b.csv")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "b.csv" || info.Size() != 5 || info.IsDir() {
		t.Errorf("unexpected file info: name=%s size=%d dir=%v", info.Name(), info.Size(), info.IsDir())
	}
	if info.Mode() != os.FileMode(0600) {
		t.Errorf("mode = %v, want 0600", info.Mode())
	}

	dirInfo, err := mfs.Stat("/a")
	if err != nil {
		t.Fatalf("Stat dir failed: %v", err)
	}
	if !dirInfo.IsDir() {
		t.Error("expected /a to be a directory")
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	for _, name := range []string{"/in/b.json", "/in/a.json", "/in/sub/c.json", "/other/d.json"} {
		if err := mfs.WriteFile(name, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := mfs.ReadDir("/in")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a.json" || names[1] != "b.json" {
		t.Errorf("ReadDir = %v, want [a.json b.json]", names)
	}

	if _, err := mfs.ReadDir("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist for missing dir, got %v", err)
	}
}

func TestMemoryFileSystem_Rename(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("/in/p.json", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := mfs.Rename("/in/p.json", "/done/p.json"); err == nil {
		t.Error("expected error renaming into missing directory")
	}

	if err := mfs.MkdirAll("/done", 0755); err != nil {
		t.Fatal(err)
	}
	if err := mfs.Rename("/in/p.json", "/done/p.json"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if mfs.Exists("/in/p.json") {
		t.Error("source still exists after rename")
	}
	data, err := mfs.ReadFile("/done/p.json")
	if err != nil || string(data) != "x" {
		t.Errorf("renamed content = %q, %v", data, err)
	}

	if err := mfs.Rename("/in/missing.json", "/done/x.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}
