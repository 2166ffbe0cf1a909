package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.css")
	dst := filepath.Join(dir, "nested", "out", "dst.css")

	if err := os.WriteFile(src, []byte("body{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(got) != "body{}" {
		t.Errorf("dst content = %q, want %q", got, "body{}")
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "nope.css"), filepath.Join(dir, "dst.css"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "manifest.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("content = %q", got)
	}

	// Overwrite must fully replace.
	if err := WriteFileAtomic(path, []byte(`{}`)); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != `{}` {
		t.Errorf("content after overwrite = %q", got)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file in dir, got %d", len(entries))
	}
}
