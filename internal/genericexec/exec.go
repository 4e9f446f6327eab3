// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package genericexec

import (
	"context"
	"io"
	"os/exec"
	"runtime"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/logging"
	"github.com/mpesttc/uploaderperf/shutil"
)

// ExecCmd represents a local command to execute.
type ExecCmd struct {
	name     string
	baseArgs []string
}

var _ Cmd = &ExecCmd{}

// CommandExec constructs a new ExecCmd representing a local command to execute.
func CommandExec(name string, baseArgs ...string) *ExecCmd {
	return &ExecCmd{
		name:     name,
		baseArgs: baseArgs,
	}
}

// Run runs a local command synchronously. See Cmd.Run for details.
//
// Canceling ctx kills the process.
func (c *ExecCmd) Run(ctx context.Context, extraArgs []string, stdin io.Reader, stdout, stderr io.Writer) error {
	args := append(append([]string(nil), c.baseArgs...), extraArgs...)
	cmd := exec.CommandContext(ctx, c.name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	logging.Debug(ctx, "Running ", shutil.CommandLine(runtime.GOOS, c.name, args...))
	return cmd.Run()
}

// ExitCode returns the exit status carried by an error returned from Cmd.Run.
// ok is false if err is nil or the command did not exit normally, e.g. it
// could not be started or was killed by a signal.
func ExitCode(err error) (code int, ok bool) {
	var xerr *exec.ExitError
	if !errors.As(err, &xerr) {
		return 0, false
	}
	if code := xerr.ExitCode(); code >= 0 {
		return code, true
	}
	return 0, false
}
