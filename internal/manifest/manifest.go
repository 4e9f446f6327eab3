// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package manifest picks the test manifest a script is run with.
//
// A script directory may hold manifests for several device generations. The
// first existing one in a caller-supplied priority order is used.
package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mpesttc/uploaderperf/errors"
)

// ErrNotFound is returned when none of the candidate manifests exist.
var ErrNotFound = errors.New("no manifest found")

// DefaultCandidates returns the manifest names tried when running one script.
func DefaultCandidates() []string {
	return []string{
		"manifest_770_1880.json",
		"manifest.json",
		"manifest_780_1884.json",
	}
}

// GroupCandidates returns the manifest names tried for each script of a batch.
func GroupCandidates() []string {
	return []string{
		"manifest_770_1880.json",
		"manifest_700_1800.json",
		"manifest_720_1809.json",
		"manifest_780_1884.json",
		"manifest.json",
	}
}

// Resolve returns the path of the first name in candidates that exists as a
// regular file in dir.
func Resolve(dir string, candidates []string) (string, error) {
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		fi, err := os.Stat(p)
		if err == nil && fi.Mode().IsRegular() {
			return p, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", errors.Wrapf(err, "failed to stat %s", p)
		}
	}
	return "", errors.Wrapf(ErrNotFound, "tried %s in %s", strings.Join(candidates, ", "), dir)
}
