// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fsutil implements file operations shared by the log parser and the
// archiver.
package fsutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/mpesttc/uploaderperf/errors"
)

// CopyFile copies the regular file at src to dst, replacing dst atomically
// if it already exists. dst inherits src's mode.
func CopyFile(src, dst string) error {
	sf, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open src file")
	}
	defer sf.Close()

	fi, err := sf.Stat()
	if err != nil {
		return errors.Wrap(err, "failed to stat src file")
	} else if !fi.Mode().IsRegular() {
		return errors.Errorf("source not regular file (mode %s)", fi.Mode())
	}

	// Copy to a temp file in the destination directory, then rename.
	df, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".")
	if err != nil {
		return errors.Wrap(err, "failed to create tmp file")
	}
	if _, err := io.Copy(df, sf); err != nil {
		df.Close()
		os.Remove(df.Name())
		return errors.Wrap(err, "failed to copy data from src file to tmp file")
	}
	if err := df.Close(); err != nil {
		os.Remove(df.Name())
		return errors.Wrap(err, "failed to close tmp file")
	}
	if err := os.Chmod(df.Name(), fi.Mode()); err != nil {
		os.Remove(df.Name())
		return errors.Wrap(err, "failed to change permissions of tmp file")
	}
	if err := os.Rename(df.Name(), dst); err != nil {
		os.Remove(df.Name())
		return errors.Wrap(err, "failed to rename tmp file to dst file")
	}
	return nil
}

// CopyIntoDir copies src into dir under its base name, creating dir if it
// does not exist. It returns the path of the copy and whether dir was created.
func CopyIntoDir(src, dir string) (dst string, created bool, err error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", false, errors.Wrapf(err, "failed to create %s", dir)
		}
		created = true
	} else if err != nil {
		return "", false, errors.Wrapf(err, "failed to stat %s", dir)
	}
	dst = filepath.Join(dir, filepath.Base(src))
	if err := CopyFile(src, dst); err != nil {
		return "", created, err
	}
	return dst, created, nil
}
