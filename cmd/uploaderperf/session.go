// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/subcommands"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/config"
	"github.com/mpesttc/uploaderperf/internal/genericexec"
	"github.com/mpesttc/uploaderperf/internal/logging"
	"github.com/mpesttc/uploaderperf/internal/procreap"
	"github.com/mpesttc/uploaderperf/internal/run"
)

// sessionTimeLayout is the timestamp layout of session log lines.
const sessionTimeLayout = "2006-01-02 15:04:05.000"

// sessionWrapper allows functions from the run and procreap packages to be
// stubbed out for testing.
type sessionWrapper interface {
	// runScript calls run.Orchestrator.RunScript.
	runScript(ctx context.Context, cfg *config.Config, rc run.RunConfig) (*run.Report, error)
	// runGroup calls run.Orchestrator.RunGroup.
	runGroup(ctx context.Context, cfg *config.Config) (*run.Report, error)
	// reap calls procreap.Clear on the processes of this machine.
	reap(ctx context.Context, target string, interval time.Duration) (int, error)
}

// realSessionWrapper is a sessionWrapper running real processes.
type realSessionWrapper struct{}

func newOrchestrator(cfg *config.Config) *run.Orchestrator {
	return run.New(cfg, genericexec.CommandExec(cfg.Runner()), clock.NewClock(), procreap.SystemProcesses, os.Stdout)
}

func (realSessionWrapper) runScript(ctx context.Context, cfg *config.Config, rc run.RunConfig) (*run.Report, error) {
	return newOrchestrator(cfg).RunScript(ctx, rc)
}

func (realSessionWrapper) runGroup(ctx context.Context, cfg *config.Config) (*run.Report, error) {
	return newOrchestrator(cfg).RunGroup(ctx)
}

func (realSessionWrapper) reap(ctx context.Context, target string, interval time.Duration) (int, error) {
	return procreap.Clear(ctx, clock.NewClock(), procreap.SystemProcesses, target, interval)
}

// newSessionLogger returns a logger writing every message to w as
// "time | LEVEL | message" lines.
func newSessionLogger(w io.Writer) logging.Logger {
	return logging.NewFuncLogger(func(level logging.Level, ts time.Time, msg string) {
		for _, line := range strings.Split(msg, "\n") {
			fmt.Fprintf(w, "%s | %-5s | %s\n", ts.Format(sessionTimeLayout), level, line)
		}
	})
}

// attachSessionLog truncates the session log at path and attaches a logger
// writing to it. The returned function closes the file. An empty path
// disables the session log.
func attachSessionLog(ctx context.Context, path string) (context.Context, func(), error) {
	if path == "" {
		return ctx, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return ctx, nil, errors.Wrap(err, "failed to create session log")
	}
	return logging.AttachLogger(ctx, newSessionLogger(f)), func() { f.Close() }, nil
}

// startSession prepares the configuration and the session log of a run or
// group command. On failure it logs the problem and returns a non-success
// status.
func startSession(ctx context.Context, mcfg *config.MutableConfig) (context.Context, *config.Config, func(), subcommands.ExitStatus) {
	if err := mcfg.DeriveDefaults(); err != nil {
		logging.Info(ctx, "Failed to derive defaults: ", err)
		return ctx, nil, nil, subcommands.ExitUsageError
	}
	cfg := mcfg.Freeze()

	ctx, closeLog, err := attachSessionLog(ctx, cfg.SessionLog())
	if err != nil {
		logging.Info(ctx, err)
		return ctx, nil, nil, subcommands.ExitFailure
	}

	logging.Debug(ctx, "Command line: ", strings.Join(os.Args, " "))
	logging.Debugf(ctx, "Runner: %s; logs: %s; scratch: %s", cfg.Runner(), cfg.LogsDir(), cfg.ScratchDir())
	return ctx, cfg, closeLog, subcommands.ExitSuccess
}

// finishSession logs the outcome of a session and returns the exit status.
// Only -failonerror turns errors into a failure.
func finishSession(ctx context.Context, cfg *config.Config, rep *run.Report, err error) subcommands.ExitStatus {
	if err != nil {
		logging.Errorf(ctx, "Session stopped: %v", err)
		logging.Debugf(ctx, "%+v", err)
	}
	if rep != nil {
		logging.Infof(ctx, "%d of %d runs completed, %d harvested", rep.Completed, rep.Requested, len(rep.Rows))
		if rep.TablePath != "" {
			logging.Info(ctx, "Results: ", rep.TablePath)
		}
		if rep.ArchivePath != "" {
			logging.Info(ctx, "Archive: ", rep.ArchivePath)
		}
	}
	if cfg.FailOnError() && (err != nil || (rep != nil && rep.Failed())) {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
