// Package storage provides the local file primitives used by the
// materializers: directory creation and atomic replacement of output files.
//
// Outputs are never written in place. Each writer produces a sibling temp
// file in the target directory and renames it over the destination once it
// is complete, so readers (the dashboard, Metabase) see either the previous
// run's artifact or the new one and never a half-written file.
package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// EnsureDir creates the parent directory of path if it does not exist
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return nil
}

// TempPath returns a unique hidden sibling path for target
func TempPath(target string) string {
	dir, base := filepath.Split(target)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, uuid.New().String()[:8]))
}

// Replace moves a completed temp file over target
func Replace(tmp, target string) error {
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", target, err)
	}
	return nil
}

// WriteFileAtomic creates parent directories, streams write into a temp file,
// syncs it and renames it over path. On any failure the temp file is removed
// and path is left untouched.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	tmp := TempPath(path)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to flush %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	return Replace(tmp, path)
}

// Exists reports whether path exists
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
