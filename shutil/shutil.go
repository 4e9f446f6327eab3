// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil renders command lines for display in logs.
package shutil

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// The character class \w is equivalent to [0-9A-Za-z_]. A leading equals
	// sign is unsafe in zsh.
	leadingSafeChars  = `-\w@%+:,./`
	trailingSafeChars = leadingSafeChars + "="
)

// safeRE matches an argument that a POSIX shell takes literally.
var safeRE = regexp.MustCompile(fmt.Sprintf("^[%s][%s]*$", leadingSafeChars, trailingSafeChars))

// cmdSafeRE matches an argument that cmd.exe takes literally. Backslashes
// and drive colons are common in Windows paths and need no quoting.
var cmdSafeRE = regexp.MustCompile(`^[-\w@+:,./\\]+$`)

// Escape escapes s for a POSIX shell command line.
// s is returned as is if it can already be included safely.
func Escape(s string) string {
	if safeRE.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// EscapeCmd escapes s for a cmd.exe command line by double-quoting it.
// s is returned as is if it can already be included safely.
func EscapeCmd(s string) string {
	if cmdSafeRE.MatchString(s) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CommandLine joins name and args into a single line as the shell of goos
// would expect to read it.
func CommandLine(goos, name string, args ...string) string {
	escape := Escape
	if goos == "windows" {
		escape = EscapeCmd
	}
	escaped := make([]string, 0, len(args)+1)
	for _, arg := range append([]string{name}, args...) {
		escaped = append(escaped, escape(arg))
	}
	return strings.Join(escaped, " ")
}
