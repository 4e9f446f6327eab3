// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package run drives performance sessions: it invokes the test runner, harvests
// the log of each run and writes the results table and the archive.
package run

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/archive"
	"github.com/mpesttc/uploaderperf/internal/config"
	"github.com/mpesttc/uploaderperf/internal/genericexec"
	"github.com/mpesttc/uploaderperf/internal/logging"
	"github.com/mpesttc/uploaderperf/internal/procreap"
	"github.com/mpesttc/uploaderperf/internal/results"
	"github.com/mpesttc/uploaderperf/internal/uploaderlog"
)

// GroupID identifies batch sessions in archive names and summaries.
const GroupID = "Group"

// ErrRunnerFailed is returned when the test runner exits with a non-zero
// status or cannot be started.
var ErrRunnerFailed = errors.New("runner failed")

// RunConfig describes a single-script session.
type RunConfig struct {
	// Script is the name of the script directory under the tests directory.
	Script string
	// Runs is the number of times the script is run.
	Runs int
}

// Report summarizes a finished session.
type Report struct {
	// ID is the script name, or GroupID for batches.
	ID string
	// Rows holds one row per harvested run, in order.
	Rows []results.Row
	// TablePath is the path of the written results table, if any.
	TablePath string
	// ArchivePath is the path of the written archive, if any.
	ArchivePath string
	// Requested is the number of runs asked for.
	Requested int
	// Completed is the number of runs whose runner exited successfully.
	Completed int
	// Errors lists the errors that were logged but did not stop the session.
	Errors []error
}

// Failed reports whether any error was recorded in r.
func (r *Report) Failed() bool {
	return len(r.Errors) > 0
}

func (r *Report) addError(ctx context.Context, err error) {
	logging.Error(ctx, err)
	logging.Debugf(ctx, "%+v", err)
	r.Errors = append(r.Errors, err)
}

// Orchestrator runs sessions. Runs are strictly sequential.
type Orchestrator struct {
	cfg    *config.Config
	runner genericexec.Cmd
	clk    clock.Clock
	list   procreap.Lister
	out    io.Writer
}

// New returns an Orchestrator invoking runner with a manifest path per run.
// clk paces the runs. list enumerates processes to reap before batch
// scripts. The runner's output and the summary table are written to out.
func New(cfg *config.Config, runner genericexec.Cmd, clk clock.Clock, list procreap.Lister, out io.Writer) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		runner: runner,
		clk:    clk,
		list:   list,
		out:    out,
	}
}

// invoke runs the runner on manifestPath and waits for it to exit.
func (o *Orchestrator) invoke(ctx context.Context, manifestPath string) error {
	err := o.runner.Run(ctx, []string{manifestPath}, nil, o.out, o.out)
	if err == nil {
		logging.Debug(ctx, "Process = 0")
		return nil
	}
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), "runner interrupted")
	}
	if code, ok := genericexec.ExitCode(err); ok {
		logging.Debugf(ctx, "Process = %d", code)
		return errors.Wrapf(ErrRunnerFailed, "exit status %d", code)
	}
	return errors.Wrapf(ErrRunnerFailed, "%v", err)
}

// logBaseline returns the modification time of the newest runner log before
// a run starts. A run that writes no log of its own then fails to harvest
// instead of reporting the previous run again.
func (o *Orchestrator) logBaseline(ctx context.Context) time.Time {
	t, err := uploaderlog.LatestModTime(o.cfg.LogsDir(), o.cfg.LogSuffix())
	if err != nil {
		logging.Debugf(ctx, "Failed to read existing logs: %v", err)
	}
	return t
}

// harvest reads the runner log written after since and appends its row to
// col.
func (o *Orchestrator) harvest(ctx context.Context, index int, script string, col *results.Collector, since time.Time) error {
	logging.Info(ctx, "Parsing logs...")
	l, err := uploaderlog.Open(ctx, o.cfg.LogsDir(), o.cfg.ScratchDir(), o.cfg.LogSuffix(), since)
	if err != nil {
		return errors.Wrapf(err, "failed to harvest run %d", index)
	}
	row := results.NewRow(index, script, l.Record(ctx))
	col.Add(row)
	logging.Infof(ctx, "Duration = %s", row.Duration)
	return nil
}

// sleep waits for d on the clock unless ctx is canceled first.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	logging.Infof(ctx, "Waiting %v...", d)
	select {
	case <-o.clk.After(d):
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "interrupted while waiting")
	}
}

// finalize writes the results table, archives the scratch directory and
// prints the summary. It does nothing without rows.
func (o *Orchestrator) finalize(ctx context.Context, col *results.Collector, rep *Report) {
	rep.Rows = col.Rows()
	last, ok := col.Last()
	if !ok {
		logging.Error(ctx, "No results to save")
		return
	}

	logging.Info(ctx, "Saving results...")
	path := o.cfg.ResultsPath()
	if err := results.WriteCSV(path, rep.Rows); err != nil {
		rep.addError(ctx, errors.Wrap(err, "failed to save results"))
	} else {
		rep.TablePath = path
		logging.Infof(ctx, "Data has been added to %s", filepath.Base(path))
	}

	logging.Info(ctx, "Archiving...")
	name := archive.Name(o.cfg.ArchivePrefix(), rep.ID, last.Version)
	if res, err := archive.Zip(ctx, o.cfg.ScratchDir(), name, o.cfg.ArchiveSuffixes()); err != nil {
		rep.addError(ctx, errors.Wrap(err, "failed to archive"))
	} else {
		rep.ArchivePath = res.Path
	}

	results.WriteSummary(o.out, rep.ID, rep.Rows)
	logging.Info(ctx, "DONE!")
}
