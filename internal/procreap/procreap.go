// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package procreap finds OS processes by name and terminates them.
//
// The uploader's Java runtime keeps the device's COM port open after a test
// script exits; it has to be gone before the next script can use the port.
package procreap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/logging"
)

// DefaultTarget is the process name substring holding the COM port.
const DefaultTarget = "Java"

// DefaultInterval is the wait after each termination before checking again.
const DefaultInterval = 2 * time.Second

// stuckAttempts is the number of terminations after which Clear reports that
// a process refuses to go away, and again every as many attempts.
const stuckAttempts = 10

// ErrEmptyTarget is returned for an empty process name, which would match
// every process.
var ErrEmptyTarget = errors.New("empty process name")

// Process is a running OS process.
type Process interface {
	NameWithContext(ctx context.Context) (string, error)
	TerminateWithContext(ctx context.Context) error
	String() string
}

// Lister enumerates running processes.
type Lister func(ctx context.Context) ([]Process, error)

// osProcess adapts gopsutil's process to Process.
type osProcess struct {
	*process.Process
}

func (p osProcess) String() string {
	return fmt.Sprintf("pid %d", p.Pid)
}

// SystemProcesses lists the processes running on this machine.
func SystemProcesses(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list processes")
	}
	res := make([]Process, len(procs))
	for i, p := range procs {
		res[i] = osProcess{p}
	}
	return res, nil
}

// Find returns the first listed process whose name contains target,
// ignoring case. Processes whose name cannot be read (e.g. they exited or
// access is denied) are skipped. An empty target is rejected with
// ErrEmptyTarget.
func Find(ctx context.Context, list Lister, target string) (Process, bool, error) {
	if target == "" {
		return nil, false, ErrEmptyTarget
	}
	procs, err := list(ctx)
	if err != nil {
		return nil, false, err
	}
	target = strings.ToLower(target)
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			logging.Debugf(ctx, "Skipping %v: %v", p, err)
			continue
		}
		if strings.Contains(strings.ToLower(name), target) {
			logging.Debugf(ctx, "Found %s (%v)", name, p)
			return p, true, nil
		}
	}
	return nil, false, nil
}

// Clear terminates processes matching target until none remain, waiting
// interval on clk after each termination. It returns the number of
// terminations requested.
//
// Clear keeps trying as long as a matching process exists; it only gives up
// when ctx is canceled or listing fails. Every stuckAttempts terminations an
// error is logged so a process that cannot be killed does not go unnoticed.
func Clear(ctx context.Context, clk clock.Clock, list Lister, target string, interval time.Duration) (int, error) {
	if target == "" {
		return 0, ErrEmptyTarget
	}
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, errors.Wrapf(err, "gave up clearing %q", target)
		}
		p, ok, err := Find(ctx, list, target)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			logging.Errorf(ctx, "Failed to terminate %v: %v", p, err)
		} else {
			logging.Infof(ctx, "Terminated %v", p)
		}
		n++
		if n%stuckAttempts == 0 {
			logging.Errorf(ctx, "%s is still running after %d termination attempts", target, n)
		}
		if interval <= 0 {
			continue
		}
		select {
		case <-clk.After(interval):
		case <-ctx.Done():
			return n, errors.Wrapf(ctx.Err(), "gave up clearing %q", target)
		}
	}
}
