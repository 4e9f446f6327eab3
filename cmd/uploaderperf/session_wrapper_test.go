// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"time"

	"github.com/mpesttc/uploaderperf/internal/config"
	"github.com/mpesttc/uploaderperf/internal/run"
)

// stubSessionWrapper is a stub implementation of sessionWrapper used for testing.
type stubSessionWrapper struct {
	runCtx context.Context // context passed to runScript or runGroup
	runCfg *config.Config  // config passed to runScript or runGroup
	runRC  run.RunConfig   // run config passed to runScript
	called string          // name of the called method

	reapTarget   string        // target passed to reap
	reapInterval time.Duration // interval passed to reap

	rep *run.Report // report to return from runScript and runGroup
	err error       // error to return
	n   int         // count to return from reap
}

func (w *stubSessionWrapper) runScript(ctx context.Context, cfg *config.Config, rc run.RunConfig) (*run.Report, error) {
	w.runCtx, w.runCfg, w.runRC, w.called = ctx, cfg, rc, "runScript"
	return w.rep, w.err
}

func (w *stubSessionWrapper) runGroup(ctx context.Context, cfg *config.Config) (*run.Report, error) {
	w.runCtx, w.runCfg, w.called = ctx, cfg, "runGroup"
	return w.rep, w.err
}

func (w *stubSessionWrapper) reap(ctx context.Context, target string, interval time.Duration) (int, error) {
	w.reapTarget, w.reapInterval, w.called = target, interval, "reap"
	return w.n, w.err
}
