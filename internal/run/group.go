// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package run

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/logging"
	"github.com/mpesttc/uploaderperf/internal/manifest"
	"github.com/mpesttc/uploaderperf/internal/procreap"
	"github.com/mpesttc/uploaderperf/internal/results"
)

// ReadScriptList reads a batch list: one script name per line. Trailing
// whitespace is trimmed and blank lines are skipped.
func ReadScriptList(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read script list")
	}
	var scripts []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		s := strings.TrimRightFunc(sc.Text(), unicode.IsSpace)
		if strings.TrimSpace(s) == "" {
			continue
		}
		scripts = append(scripts, s)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return scripts, nil
}

// RunGroup runs every script of the batch list once. Before each script the
// processes holding the device's COM port are terminated. A failing script or
// a script without a manifest stops the batch; the scripts after it are not
// run. Harvested runs are saved and archived under GroupID.
func (o *Orchestrator) RunGroup(ctx context.Context) (*Report, error) {
	scripts, err := ReadScriptList(o.cfg.GroupList())
	if err != nil {
		logging.Error(ctx, "File not found")
		return &Report{ID: GroupID}, err
	}
	rep := &Report{ID: GroupID, Requested: len(scripts)}
	logging.Infof(ctx, "Running %d scripts from %s", len(scripts), o.cfg.GroupList())

	col := &results.Collector{}
	var stopErr error
	for i, script := range scripts {
		ctx := logging.SetLogPrefix(ctx, fmt.Sprintf("[%d/%d] ", i+1, len(scripts)))
		if i > 0 {
			if err := o.sleep(ctx, o.cfg.GroupDelay()); err != nil {
				stopErr = err
				break
			}
		}

		logging.Debug(ctx, "Clearing COM port...")
		n, err := procreap.Clear(ctx, o.clk, o.list, o.cfg.ReapTarget(), o.cfg.ReapInterval())
		if ctx.Err() != nil {
			stopErr = errors.Wrap(ctx.Err(), "interrupted while clearing COM port")
			break
		}
		if err != nil {
			rep.addError(ctx, errors.Wrap(err, "failed to clear COM port"))
		} else {
			logging.Debugf(ctx, "COM port cleared (%d processes terminated)", n)
		}

		logging.Infof(ctx, "Starting %s...", script)
		path, err := manifest.Resolve(o.cfg.ScriptDir(script), o.cfg.GroupManifests())
		if err != nil {
			logging.Error(ctx, "File not found")
			stopErr = err
			break
		}
		logging.Infof(ctx, "Selected %s", filepath.Base(path))

		since := o.logBaseline(ctx)
		if err := o.invoke(ctx, path); err != nil {
			logging.Error(ctx, "Errors")
			stopErr = errors.Wrapf(err, "%s", script)
			break
		}
		rep.Completed++
		logging.Info(ctx, "OK")

		if err := o.harvest(ctx, i+1, script, col, since); err != nil {
			rep.addError(ctx, err)
		}
	}
	logging.Info(ctx, "Finished")

	o.finalize(ctx, col, rep)
	return rep, stopErr
}
