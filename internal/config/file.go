// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"os"

	"gopkg.in/yaml.v2"

	"github.com/mpesttc/uploaderperf/errors"
)

// LoadFile reads the YAML file at path and sets the members of c it names.
// Unknown keys are an error. Durations are written like "10s" or "1m".
func (c *MutableConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}
	return nil
}
