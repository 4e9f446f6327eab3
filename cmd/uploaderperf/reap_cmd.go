// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/mpesttc/uploaderperf/internal/command"
	"github.com/mpesttc/uploaderperf/internal/logging"
	"github.com/mpesttc/uploaderperf/internal/procreap"
)

// reapCmd implements subcommands.Command to support terminating the
// processes holding the device's COM port.
type reapCmd struct {
	wrapper  sessionWrapper // can be set by tests to stub out calls to procreap package
	interval time.Duration
}

var _ = subcommands.Command(&reapCmd{})

func newReapCmd() *reapCmd {
	return &reapCmd{wrapper: realSessionWrapper{}}
}

func (*reapCmd) Name() string     { return "reap" }
func (*reapCmd) Synopsis() string { return "terminate processes holding the COM port" }
func (*reapCmd) Usage() string {
	return `Usage: reap [flag]... [name]

Description:
    Terminates processes whose name contains <name> (case-insensitive,
    default "` + procreap.DefaultTarget + `") one at a time until none is left.

Flag:
`
}

func (r *reapCmd) SetFlags(f *flag.FlagSet) {
	f.Var(command.NewDurationFlag(time.Second, &r.interval, procreap.DefaultInterval), "interval", "seconds to wait after each terminated process")
}

func (r *reapCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	target := procreap.DefaultTarget
	switch len(f.Args()) {
	case 0:
	case 1:
		target = f.Args()[0]
	default:
		logging.Info(ctx, "Expected at most one process name.\n\n"+r.Usage())
		return subcommands.ExitUsageError
	}
	if strings.TrimSpace(target) == "" {
		logging.Info(ctx, "Process name must not be empty.\n\n"+r.Usage())
		return subcommands.ExitUsageError
	}

	n, err := r.wrapper.reap(ctx, target, r.interval)
	if err != nil {
		logging.Errorf(ctx, "Failed after terminating %d processes: %v", n, err)
		return subcommands.ExitFailure
	}
	logging.Infof(ctx, "%s is gone (%d processes terminated)", target, n)
	logging.Info(ctx, "All cleared.")
	return subcommands.ExitSuccess
}
