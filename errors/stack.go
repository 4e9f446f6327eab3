// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package errors

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	maxDepth = 8       // maximum number of frames recorded per error
	ellipsis = "\t..." // marker line for truncated traces
)

// stack holds a snapshot of program counters.
type stack []uintptr

// newStack captures the current goroutine's stack. skip=0 records the caller
// of newStack as the innermost frame.
func newStack(skip int) stack {
	pc := make([]uintptr, maxDepth+1)
	return stack(pc[:runtime.Callers(skip+2, pc)])
}

// String formats the trace as "\tat func (file:line)" lines.
func (s stack) String() string {
	var lines []string
	frames := runtime.CallersFrames(s)
	for {
		f, more := frames.Next()
		lines = append(lines, fmt.Sprintf("\tat %s (%s:%d)", f.Function, filepath.Base(f.File), f.Line))
		if !more {
			break
		}
		if len(lines) >= maxDepth {
			lines = append(lines, ellipsis)
			break
		}
	}
	return strings.Join(lines, "\n")
}
