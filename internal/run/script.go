// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package run

import (
	"context"
	"path/filepath"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/logging"
	"github.com/mpesttc/uploaderperf/internal/manifest"
	"github.com/mpesttc/uploaderperf/internal/results"
)

// RunScript runs rc.Script rc.Runs times, harvesting the log of each
// successful run. The first failing run stops the session; it is not
// harvested and not retried. Whatever was harvested is then saved and
// archived.
//
// The returned error is the one that stopped the session early, if any.
// Errors that were only logged are in the Report.
func (o *Orchestrator) RunScript(ctx context.Context, rc RunConfig) (*Report, error) {
	rep := &Report{ID: rc.Script, Requested: rc.Runs}
	if rc.Runs < 1 {
		return rep, errors.Errorf("invalid number of runs %d", rc.Runs)
	}

	path, err := manifest.Resolve(o.cfg.ScriptDir(rc.Script), o.cfg.Manifests())
	if err != nil {
		logging.Error(ctx, "File not found!")
		return rep, err
	}
	logging.Debugf(ctx, "Selected %s", filepath.Base(path))
	logging.Infof(ctx, "Starting new script %s... for %d times", rc.Script, rc.Runs)

	col := &results.Collector{}
	var stopErr error
	for i := 0; i < rc.Runs; i++ {
		since := o.logBaseline(ctx)
		if err := o.invoke(ctx, path); err != nil {
			logging.Error(ctx, "Process ended with errors!!!")
			stopErr = err
			break
		}
		rep.Completed++
		logging.Info(ctx, "Process finished with status SUCCESSFUL")

		if err := o.harvest(ctx, i+1, rc.Script, col, since); err != nil {
			rep.addError(ctx, err)
		}

		if i != rc.Runs-1 {
			if err := o.sleep(ctx, o.cfg.RunDelay()); err != nil {
				stopErr = err
				break
			}
		}
	}

	o.finalize(ctx, col, rep)
	return rep, stopErr
}
