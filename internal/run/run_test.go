// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package run_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/config"
	"github.com/mpesttc/uploaderperf/internal/logging"
	"github.com/mpesttc/uploaderperf/internal/logging/loggingtest"
	"github.com/mpesttc/uploaderperf/internal/procreap"
	"github.com/mpesttc/uploaderperf/internal/results"
	"github.com/mpesttc/uploaderperf/internal/run"
	"github.com/mpesttc/uploaderperf/internal/uploaderlog"
	"github.com/mpesttc/uploaderperf/testutil"
)

// uploaderLog returns the content of a runner log for an upload of the given
// version lasting dur.
func uploaderLog(version string, dur time.Duration) string {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(dur)
	const layout = "2006-01-02 15:04:05"
	return fmt.Sprintf(`%s INFO Starting uploader
%s INFO serialNumber for upload: %s
%s INFO session [username=[alice]] opened
%s INFO Upload finished
`, start.Format(layout), start.Format(layout), version, start.Format(layout), end.Format(layout))
}

// env is a fake NATS installation.
type env struct {
	dir        string
	logsDir    string
	scratchDir string
	cfg        *config.MutableConfig
}

func newEnv(t *testing.T, scripts map[string]string) *env {
	t.Helper()
	td := testutil.TempDir(t)
	files := map[string]string{"TCRunner/logs/.keep": ""}
	for script, m := range scripts {
		files[filepath.Join("_Tests_NGP", script, m)] = "{}"
	}
	if err := testutil.WriteFiles(td, files); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewMutableConfig()
	cfg.NATSDir = td
	cfg.ScratchDir = filepath.Join(td, "Temp")
	cfg.RunDelay = 0
	cfg.GroupDelay = 0
	cfg.ReapInterval = 0
	if err := cfg.DeriveDefaults(); err != nil {
		t.Fatal(err)
	}
	return &env{
		dir:        td,
		logsDir:    cfg.LogsDir,
		scratchDir: cfg.ScratchDir,
		cfg:        cfg,
	}
}

// fakeRunner is a genericexec.Cmd that writes a runner log on success.
type fakeRunner struct {
	t       *testing.T
	logsDir string
	// fail lists the 0-based calls that exit with a non-zero status.
	fail map[int]bool
	// noLog lists the 0-based calls that succeed without writing a log.
	noLog map[int]bool
	// versions are the uploader versions logged by each call; the last one
	// repeats.
	versions []string
	calls    [][]string
}

func (r *fakeRunner) Run(ctx context.Context, extraArgs []string, stdin io.Reader, stdout, stderr io.Writer) error {
	n := len(r.calls)
	r.calls = append(r.calls, extraArgs)
	if r.fail[n] {
		fmt.Fprintln(stderr, "device not responding")
		return errors.New("exit status 1")
	}
	if r.noLog[n] {
		return nil
	}
	version := "7.2"
	if len(r.versions) > 0 {
		version = r.versions[len(r.versions)-1]
		if n < len(r.versions) {
			version = r.versions[n]
		}
	}
	name := fmt.Sprintf("run_%d.log", n)
	if err := testutil.WriteFiles(r.logsDir, map[string]string{
		name: uploaderLog(version, time.Duration(n+1)*time.Minute),
	}); err != nil {
		r.t.Error(err)
	}
	// Later runs must look newer regardless of the file system's mtime
	// resolution.
	if err := testutil.SetModTimes(r.logsDir, map[string]time.Time{
		name: time.Unix(1700000000, 0).Add(time.Duration(n) * time.Hour),
	}); err != nil {
		r.t.Error(err)
	}
	return nil
}

func newTestContext(t *testing.T) (context.Context, *loggingtest.Logger) {
	logger := loggingtest.NewLogger(t, logging.LevelDebug)
	return logging.AttachLogger(context.Background(), logger), logger
}

func noProcesses(ctx context.Context) ([]procreap.Process, error) {
	return nil, nil
}

func readZip(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestRunScript(t *testing.T) {
	ctx, logger := newTestContext(t)
	e := newEnv(t, map[string]string{"smoke": "manifest.json"})
	runner := &fakeRunner{t: t, logsDir: e.logsDir, versions: []string{"7.1", "7.2"}}
	var out bytes.Buffer

	o := run.New(e.cfg.Freeze(), runner, clock.NewClock(), noProcesses, &out)
	rep, err := o.RunScript(ctx, run.RunConfig{Script: "smoke", Runs: 3})
	if err != nil {
		t.Fatal("RunScript failed: ", err)
	}
	if rep.Failed() {
		t.Errorf("RunScript reported errors: %v", rep.Errors)
	}

	manifest := filepath.Join(e.dir, "_Tests_NGP", "smoke", "manifest.json")
	if diff := cmp.Diff(runner.calls, [][]string{{manifest}, {manifest}, {manifest}}); diff != "" {
		t.Errorf("Runner calls mismatch (-got +want):\n%s", diff)
	}

	wantRows := []results.Row{
		{Index: "1", Version: "7.1", User: "alice", Script: "smoke", Start: "2024-01-01 10:00:00", End: "2024-01-01 10:01:00", Duration: "0:01:00"},
		{Index: "2", Version: "7.2", User: "alice", Script: "smoke", Start: "2024-01-01 10:00:00", End: "2024-01-01 10:02:00", Duration: "0:02:00"},
		{Index: "3", Version: "7.2", User: "alice", Script: "smoke", Start: "2024-01-01 10:00:00", End: "2024-01-01 10:03:00", Duration: "0:03:00"},
	}
	if diff := cmp.Diff(rep.Rows, wantRows); diff != "" {
		t.Errorf("Rows mismatch (-got +want):\n%s", diff)
	}
	if rep.Requested != 3 || rep.Completed != 3 {
		t.Errorf("Report counts = %d/%d; want 3/3", rep.Completed, rep.Requested)
	}

	// The table and the staged logs moved into the archive named after the
	// last run's version.
	wantArchive := filepath.Join(e.scratchDir, "Performance_smoke_7.2.zip")
	if rep.ArchivePath != wantArchive {
		t.Errorf("ArchivePath = %q; want %q", rep.ArchivePath, wantArchive)
	}
	if diff := cmp.Diff(readZip(t, wantArchive), []string{"Results.csv", "run_0.log", "run_1.log", "run_2.log"}); diff != "" {
		t.Errorf("Archive contents mismatch (-got +want):\n%s", diff)
	}
	files, err := testutil.ReadFiles(e.scratchDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("Scratch dir holds %d files; want only the archive", len(files))
	}

	if !strings.Contains(out.String(), "Uploader ver") {
		t.Errorf("Summary table missing from output:\n%s", out.String())
	}
	if !logger.Contains("Duration = 0:03:00") {
		t.Errorf("Logs lack the duration of the last run:\n%s", logger)
	}
}

func TestRunScriptAbortsOnRunnerFailure(t *testing.T) {
	ctx, _ := newTestContext(t)
	e := newEnv(t, map[string]string{"smoke": "manifest_770_1880.json"})
	runner := &fakeRunner{t: t, logsDir: e.logsDir, fail: map[int]bool{1: true}}

	o := run.New(e.cfg.Freeze(), runner, clock.NewClock(), noProcesses, io.Discard)
	rep, err := o.RunScript(ctx, run.RunConfig{Script: "smoke", Runs: 4})
	if !errors.Is(err, run.ErrRunnerFailed) {
		t.Fatalf("RunScript error = %v; want ErrRunnerFailed", err)
	}
	if len(runner.calls) != 2 {
		t.Errorf("Runner called %d times; want 2 (no retry, no further runs)", len(runner.calls))
	}
	// Only the first run is harvested.
	if len(rep.Rows) != 1 || rep.Rows[0].Index != "1" {
		t.Errorf("Rows = %+v; want only run 1", rep.Rows)
	}
	if rep.Completed != 1 {
		t.Errorf("Completed = %d; want 1", rep.Completed)
	}
	if rep.ArchivePath == "" {
		t.Error("Harvested rows were not archived after the abort")
	}
}

func TestRunScriptFirstRunFails(t *testing.T) {
	ctx, logger := newTestContext(t)
	e := newEnv(t, map[string]string{"smoke": "manifest.json"})
	runner := &fakeRunner{t: t, logsDir: e.logsDir, fail: map[int]bool{0: true}}

	o := run.New(e.cfg.Freeze(), runner, clock.NewClock(), noProcesses, io.Discard)
	rep, err := o.RunScript(ctx, run.RunConfig{Script: "smoke", Runs: 2})
	if !errors.Is(err, run.ErrRunnerFailed) {
		t.Fatalf("RunScript error = %v; want ErrRunnerFailed", err)
	}
	if len(rep.Rows) != 0 || rep.TablePath != "" || rep.ArchivePath != "" {
		t.Errorf("Report = %+v; want nothing written", rep)
	}
	if _, err := os.Stat(e.scratchDir); !os.IsNotExist(err) {
		t.Errorf("Scratch dir exists after a run that was never harvested: %v", err)
	}
	if !logger.Contains("No results to save") {
		t.Errorf("Logs lack the empty results message:\n%s", logger)
	}
}

func TestRunScriptNoManifest(t *testing.T) {
	ctx, _ := newTestContext(t)
	e := newEnv(t, map[string]string{"smoke": "manifest_700_1800.json"})
	runner := &fakeRunner{t: t, logsDir: e.logsDir}

	o := run.New(e.cfg.Freeze(), runner, clock.NewClock(), noProcesses, io.Discard)
	if _, err := o.RunScript(ctx, run.RunConfig{Script: "smoke", Runs: 1}); err == nil {
		t.Error("RunScript succeeded without a single-mode manifest")
	}
	if len(runner.calls) != 0 {
		t.Errorf("Runner called %d times; want 0", len(runner.calls))
	}
}

func TestRunScriptInvalidRuns(t *testing.T) {
	ctx, _ := newTestContext(t)
	e := newEnv(t, map[string]string{"smoke": "manifest.json"})
	o := run.New(e.cfg.Freeze(), &fakeRunner{t: t, logsDir: e.logsDir}, clock.NewClock(), noProcesses, io.Discard)
	if _, err := o.RunScript(ctx, run.RunConfig{Script: "smoke", Runs: 0}); err == nil {
		t.Error("RunScript accepted zero runs")
	}
}

func TestRunScriptMissingLog(t *testing.T) {
	ctx, _ := newTestContext(t)
	e := newEnv(t, map[string]string{"smoke": "manifest.json"})
	// A runner that succeeds without writing any log.
	runner := cmdFunc(func(ctx context.Context, args []string) error { return nil })

	o := run.New(e.cfg.Freeze(), runner, clock.NewClock(), noProcesses, io.Discard)
	rep, err := o.RunScript(ctx, run.RunConfig{Script: "smoke", Runs: 2})
	if err != nil {
		t.Fatal("RunScript failed: ", err)
	}
	if rep.Completed != 2 {
		t.Errorf("Completed = %d; want 2", rep.Completed)
	}
	if len(rep.Errors) != 2 {
		t.Errorf("Report has %d errors; want one per unharvested run", len(rep.Errors))
	}
	if len(rep.Rows) != 0 {
		t.Errorf("Rows = %+v; want none", rep.Rows)
	}
}

func TestRunScriptRejectsStaleLog(t *testing.T) {
	ctx, _ := newTestContext(t)
	e := newEnv(t, map[string]string{"smoke": "manifest.json"})
	runner := &fakeRunner{t: t, logsDir: e.logsDir, noLog: map[int]bool{1: true}}

	o := run.New(e.cfg.Freeze(), runner, clock.NewClock(), noProcesses, io.Discard)
	rep, err := o.RunScript(ctx, run.RunConfig{Script: "smoke", Runs: 3})
	if err != nil {
		t.Fatal("RunScript failed: ", err)
	}
	if rep.Completed != 3 {
		t.Errorf("Completed = %d; want 3", rep.Completed)
	}
	// Run 2 left run_0.log as the newest log; it must not be counted twice.
	var got []string
	for _, r := range rep.Rows {
		got = append(got, r.Index+"/"+r.Duration)
	}
	if diff := cmp.Diff(got, []string{"1/0:01:00", "3/0:03:00"}); diff != "" {
		t.Errorf("Rows mismatch (-got +want):\n%s", diff)
	}
	if len(rep.Errors) != 1 || !errors.Is(rep.Errors[0], uploaderlog.ErrStaleLog) {
		t.Errorf("Report errors = %v; want one ErrStaleLog", rep.Errors)
	}
}

// cmdFunc adapts a function to genericexec.Cmd.
type cmdFunc func(ctx context.Context, args []string) error

func (f cmdFunc) Run(ctx context.Context, extraArgs []string, stdin io.Reader, stdout, stderr io.Writer) error {
	return f(ctx, extraArgs)
}
