// Copyright 2026 The Dualview Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fsutil gathers filesystem helpers shared by the store, the
// thumbnail pipeline and the downloader: temp files/dirs rooted under a
// configurable base, and the rename-falling-back-to-copy move used when
// relocating an Image's resource_path.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"
)

// FS gathers filesystem related services rooted at a base temp directory.
type FS struct {
	tmpdir string
}

// New returns a handler for filesystem related activities. tmpdir may be
// empty, in which case the OS default temp directory is used.
func New(tmpdir string) *FS {
	return &FS{tmpdir: tmpdir}
}

// TempDir creates and returns a temporary directory inside FS.tmpdir. Returns
// the directory path and a clean up function that removes it.
func (f *FS) TempDir(pattern string) (string, func(), error) {
	dir, err := os.MkdirTemp(f.tmpdir, pattern)
	if err != nil {
		return "", nil, err
	}

	clean := func() {
		if err := os.RemoveAll(dir); err != nil {
			klog.Errorf("error removing temp directory %s: %s", dir, err)
		}
	}
	return dir, clean, nil
}

// TempFile creates and returns a temporary file inside FS.tmpdir. Returns the
// opened file and a clean up function that closes and removes it.
func (f *FS) TempFile(pattern string) (*os.File, func(), error) {
	fp, err := os.CreateTemp(f.tmpdir, pattern)
	if err != nil {
		return nil, nil, err
	}

	clean := func() {
		if err := fp.Close(); err != nil {
			klog.Errorf("error closing temp file %s: %s", fp.Name(), err)
		}
		if err := os.Remove(fp.Name()); err != nil {
			klog.Errorf("error removing temp file %s: %s", fp.Name(), err)
		}
	}
	return fp, clean, nil
}

// MoveFile relocates a file on disk. It first attempts a rename (the common,
// cheap case when source and destination share a filesystem) and falls back
// to copy + verify-size + unlink when rename fails, e.g. across devices.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("unable to create destination dir: %w", err)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("unable to stat source file: %w", err)
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("unable to copy file: %w", err)
	}

	dstInfo, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("unable to stat copied file: %w", err)
	}
	if dstInfo.Size() != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy verification failed: size mismatch")
	}

	if err := os.Remove(src); err != nil {
		klog.Errorf("error removing source file %s after copy: %s", src, err)
	}
	return nil
}

// Remove deletes path, tolerating it already being gone.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to remove %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
