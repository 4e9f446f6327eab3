// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package archive bundles the artifacts of a session into a zip file.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/logging"
)

// DefaultPrefix is the first component of archive names.
const DefaultPrefix = "Performance"

// DefaultSuffixes lists the file name suffixes archived by default: runner
// logs and results tables.
var DefaultSuffixes = []string{".log", ".csv"}

// Name returns the archive file name for a script run with an uploader
// version, e.g. "Performance_smoke_7.2.zip".
func Name(prefix, script, version string) string {
	return fmt.Sprintf("%s_%s_%s.zip", prefix, script, version)
}

// Result describes a created archive.
type Result struct {
	// Path is the location of the archive.
	Path string
	// Files lists the archived file names in the order they were added.
	Files []string
}

// Zip creates the archive dir/name and moves into it every regular file of
// dir whose name ends with one of suffixes, in lexical order. Each source file
// is removed right after it has been added.
//
// Zip is not transactional: on error, the archive may hold some of the files
// and those files are already gone from dir.
func Zip(ctx context.Context, dir, name string, suffixes []string) (res *Result, retErr error) {
	srcs, err := listSources(dir, name, suffixes)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create archive")
	}
	zw := zip.NewWriter(f)
	defer func() {
		if err := zw.Close(); err != nil && retErr == nil {
			retErr = errors.Wrap(err, "failed to finish archive")
		}
		if err := f.Close(); err != nil && retErr == nil {
			retErr = errors.Wrap(err, "failed to close archive")
		}
		if retErr == nil {
			logging.Info(ctx, "Archiving - DONE")
		}
	}()

	res = &Result{Path: path}
	for _, src := range srcs {
		if err := addFile(zw, filepath.Join(dir, src), src); err != nil {
			return res, errors.Wrapf(err, "failed to archive %s", src)
		}
		logging.Infof(ctx, "File %s has been archived", src)
		if err := os.Remove(filepath.Join(dir, src)); err != nil {
			return res, errors.Wrapf(err, "failed to remove %s", src)
		}
		res.Files = append(res.Files, src)
	}
	return res, nil
}

// listSources returns the names of files in dir to be archived, skipping the
// archive itself.
func listSources(dir, archiveName string, suffixes []string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}
	var srcs []string
	for _, ent := range ents {
		if !ent.Type().IsRegular() || ent.Name() == archiveName {
			continue
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(ent.Name(), suffix) {
				srcs = append(srcs, ent.Name())
				break
			}
		}
	}
	return srcs, nil
}

// addFile deflates the file at path into zw under name.
func addFile(zw *zip.Writer, path, name string) error {
	sf, err := os.Open(path)
	if err != nil {
		return err
	}
	defer sf.Close()

	fi, err := sf.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, sf)
	return err
}
