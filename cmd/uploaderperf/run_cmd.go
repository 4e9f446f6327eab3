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
	"github.com/mpesttc/uploaderperf/internal/run"
)

// runCmd implements subcommands.Command to support running one script
// repeatedly.
type runCmd struct {
	cfg     *config.MutableConfig
	wrapper sessionWrapper // can be set by tests to stub out calls to run package
	runs    int
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd() *runCmd {
	return &runCmd{
		cfg:     config.NewMutableConfig(),
		wrapper: realSessionWrapper{},
	}
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run a test script repeatedly" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]... <script>

Description:
    Runs the test script <script> (a directory under the tests directory)
    -runs times, waiting -rundelay seconds between runs. The runner log of
    each run is harvested into a results table, which is archived together
    with the logs. The first failing run stops the session.

    Exits with 0 even if runs failed unless -failonerror is given.

Flag:
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&r.runs, "runs", 1, "number of runs")
	r.cfg.SetFlags(f)
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(f.Args()) != 1 {
		logging.Info(ctx, "Expected exactly one script.\n\n"+r.Usage())
		return subcommands.ExitUsageError
	}
	if r.runs < 1 {
		logging.Infof(ctx, "Invalid -runs %d", r.runs)
		return subcommands.ExitUsageError
	}

	ctx, cfg, closeLog, status := startSession(ctx, r.cfg)
	if status != subcommands.ExitSuccess {
		return status
	}
	defer closeLog()

	rep, err := r.wrapper.runScript(ctx, cfg, run.RunConfig{Script: f.Args()[0], Runs: r.runs})
	return finishSession(ctx, cfg, rep, err)
}
