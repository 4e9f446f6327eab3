// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/mpesttc/uploaderperf/internal/config"
	"github.com/mpesttc/uploaderperf/internal/logging"
)

// groupCmd implements subcommands.Command to support running a batch of
// scripts.
type groupCmd struct {
	cfg     *config.MutableConfig
	wrapper sessionWrapper // can be set by tests to stub out calls to run package
}

var _ = subcommands.Command(&groupCmd{})

func newGroupCmd() *groupCmd {
	return &groupCmd{
		cfg:     config.NewMutableConfig(),
		wrapper: realSessionWrapper{},
	}
}

func (*groupCmd) Name() string     { return "group" }
func (*groupCmd) Synopsis() string { return "run every script of a batch list once" }
func (*groupCmd) Usage() string {
	return `Usage: group [flag]...

Description:
    Runs each script listed in -grouplist once, in order, waiting
    -groupdelay seconds between scripts. Before each script, processes
    matching -reaptarget are terminated to free the device's COM port.
    A failing script or a script without a manifest stops the batch.

    Exits with 0 even if scripts failed unless -failonerror is given.

Flag:
`
}

func (g *groupCmd) SetFlags(f *flag.FlagSet) {
	g.cfg.SetFlags(f)
}

func (g *groupCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(f.Args()) != 0 {
		logging.Info(ctx, "Unexpected arguments.\n\n"+g.Usage())
		return subcommands.ExitUsageError
	}

	ctx, cfg, closeLog, status := startSession(ctx, g.cfg)
	if status != subcommands.ExitSuccess {
		return status
	}
	defer closeLog()

	rep, err := g.wrapper.runGroup(ctx, cfg)
	return finishSession(ctx, cfg, rep, err)
}
