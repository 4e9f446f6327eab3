// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package command contains code shared by the subcommands of uploaderperf.
package command

import (
	"strconv"
	"strings"
	"time"
)

// DurationFlag implements flag.Value to save a user-supplied integer time
// duration with fixed units to a time.Duration.
type DurationFlag struct {
	units time.Duration
	dst   *time.Duration
}

// NewDurationFlag returns a DurationFlag that stores integers interpreted in
// units to dst. dst is set to def up front.
func NewDurationFlag(units time.Duration, dst *time.Duration, def time.Duration) *DurationFlag {
	*dst = def
	return &DurationFlag{units, dst}
}

// Set implements flag.Value.Set.
func (f *DurationFlag) Set(v string) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return err
	}
	*f.dst = time.Duration(n) * f.units
	return nil
}

// String implements flag.Value.String.
func (f *DurationFlag) String() string {
	if f.dst == nil || f.units == 0 {
		return ""
	}
	return strconv.FormatInt(int64(*f.dst/f.units), 10)
}

// ListFlag implements flag.Value to split a user-supplied string with a
// custom delimiter into a slice of strings.
type ListFlag struct {
	sep    string
	assign func([]string)
	def    []string
}

// NewListFlag returns a ListFlag using sep as a delimiter and assign to
// store values. def is assigned up front.
func NewListFlag(sep string, assign func([]string), def []string) *ListFlag {
	assign(def)
	return &ListFlag{sep, assign, def}
}

// Set implements flag.Value.Set.
func (f *ListFlag) Set(v string) error {
	var vals []string
	for _, s := range strings.Split(v, f.sep) {
		if s = strings.TrimSpace(s); s != "" {
			vals = append(vals, s)
		}
	}
	f.assign(vals)
	return nil
}

// String implements flag.Value.String.
func (f *ListFlag) String() string {
	return strings.Join(f.def, f.sep)
}

// FuncFlag implements flag.Value by calling a function each time the flag
// is set, in command line order.
type FuncFlag func(string) error

// Set implements flag.Value.Set.
func (f FuncFlag) Set(s string) error { return f(s) }

// String implements flag.Value.String.
func (f FuncFlag) String() string { return "" }
