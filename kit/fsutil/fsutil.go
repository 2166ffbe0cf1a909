// Package fsutil provides small filesystem helpers used across the build
// pipeline and dev server.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureDir creates a directory (and parents) if it does not exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("fsutil.EnsureDir: create %s: %w", path, err)
	}
	return nil
}

func EnsureDirs(paths ...string) error {
	for _, path := range paths {
		if err := EnsureDir(path); err != nil {
			return err
		}
	}
	return nil
}

// CopyFile copies src to dst, creating dst's directory if needed. The copy
// is not atomic; use WriteFileAtomic for files read by a live server.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("fsutil.CopyFile: open %s: %w", src, err)
	}
	defer in.Close()

	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("fsutil.CopyFile: create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("fsutil.CopyFile: copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial write.
func WriteFileAtomic(path string, data []byte) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("fsutil.WriteFileAtomic: temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("fsutil.WriteFileAtomic: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("fsutil.WriteFileAtomic: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("fsutil.WriteFileAtomic: rename to %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists (file or directory).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
