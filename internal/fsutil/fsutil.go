// Package fsutil holds the filesystem primitives shared by the upload gate and the
// compression stage: temp-file naming, in-place replacement and stale temp cleanup.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	// UploadTempPrefix marks files the gate is still streaming.
	UploadTempPrefix = ".upload-"
	// CompressTempPrefix marks re-encoded output that has not replaced its original yet.
	CompressTempPrefix = ".compress-"
)

// IsTemp reports whether name is one of the pipeline's temp files.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, UploadTempPrefix) || strings.HasPrefix(name, CompressTempPrefix)
}

var goos = runtime.GOOS

// ReplaceFile moves tmp over dst. On POSIX the rename is atomic, so readers see either the
// old or the new content. Windows cannot rename over an existing file, so the original is
// removed first and a reader may briefly find nothing at dst.
func ReplaceFile(tmp, dst string) error {
	if goos == "windows" {
		if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return os.Rename(tmp, dst)
}

// RemoveQuietly deletes path, ignoring a missing file.
func RemoveQuietly(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveIfSame deletes path only while it is still the file described by accepted. A file
// renamed over path since then belongs to another writer and is left in place.
func RemoveIfSame(path string, accepted os.FileInfo) error {
	if accepted == nil {
		return nil
	}
	cur, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !os.SameFile(accepted, cur) {
		return nil
	}
	return RemoveQuietly(path)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned int
	Removed int
	Failed  int
}

// SweepTemp removes pipeline temp files under root whose modification time is older than
// olderThan. Fresh temp files are left alone since they may belong to an in-flight upload.
func SweepTemp(root string, olderThan time.Duration, now time.Time) (SweepResult, error) {
	var res SweepResult
	cutoff := now.Add(-olderThan)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !IsTemp(d.Name()) {
			return nil
		}
		res.Scanned++
		info, err := d.Info()
		if err != nil {
			res.Failed++
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := RemoveQuietly(p); err != nil {
			res.Failed++
			return nil
		}
		res.Removed++
		return nil
	})
	return res, err
}
