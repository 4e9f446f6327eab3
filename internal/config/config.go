// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config defines the configuration of a performance session.
package config

import (
	"flag"
	"path/filepath"
	"strings"
	"time"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/archive"
	"github.com/mpesttc/uploaderperf/internal/command"
	"github.com/mpesttc/uploaderperf/internal/manifest"
	"github.com/mpesttc/uploaderperf/internal/procreap"
	"github.com/mpesttc/uploaderperf/internal/results"
	"github.com/mpesttc/uploaderperf/internal/uploaderlog"
)

const (
	defaultScratchDir = "Temp"
	defaultSessionLog = "startLog.log"
	defaultRunDelay   = 10 * time.Second
	defaultGroupDelay = 60 * time.Second
	defaultGroupList  = "Group.txt"
)

// MutableConfig is similar to Config, but its fields are mutable.
// Call Freeze to obtain a Config from MutableConfig.
type MutableConfig struct {
	// See Config for descriptions of these fields.

	NATSDir    string `yaml:"nats_dir"`
	Runner     string `yaml:"runner"`
	TestsDir   string `yaml:"tests_dir"`
	LogsDir    string `yaml:"logs_dir"`
	ScratchDir string `yaml:"scratch_dir"`

	ResultsFile     string   `yaml:"results_file"`
	LogSuffix       string   `yaml:"log_suffix"`
	ArchivePrefix   string   `yaml:"archive_prefix"`
	ArchiveSuffixes []string `yaml:"archive_suffixes"`

	RunDelay   time.Duration `yaml:"run_delay"`
	GroupDelay time.Duration `yaml:"group_delay"`
	GroupList  string        `yaml:"group_list"`

	ReapTarget   string        `yaml:"reap_target"`
	ReapInterval time.Duration `yaml:"reap_interval"`

	Manifests      []string `yaml:"manifests"`
	GroupManifests []string `yaml:"group_manifests"`

	SessionLog  string `yaml:"session_log"`
	FailOnError bool   `yaml:"fail_on_error"`
}

// Config contains the configuration of a performance session.
// All Config values are frozen and cannot be altered after construction.
type Config struct {
	m *MutableConfig
}

// NATSDir is the root of the NATS installation holding the runner and tests.
func (c *Config) NATSDir() string { return c.m.NATSDir }

// Runner is the executable invoked with a manifest path for each run.
func (c *Config) Runner() string { return c.m.Runner }

// TestsDir is the directory holding one subdirectory per test script.
func (c *Config) TestsDir() string { return c.m.TestsDir }

// LogsDir is the directory the runner writes its logs to.
func (c *Config) LogsDir() string { return c.m.LogsDir }

// ScratchDir is the directory logs are staged in and outputs are written to.
func (c *Config) ScratchDir() string { return c.m.ScratchDir }

// ResultsFile is the file name of the results table within ScratchDir.
func (c *Config) ResultsFile() string { return c.m.ResultsFile }

// ResultsPath is the path of the results table.
func (c *Config) ResultsPath() string { return filepath.Join(c.m.ScratchDir, c.m.ResultsFile) }

// LogSuffix is the file name suffix of runner logs.
func (c *Config) LogSuffix() string { return c.m.LogSuffix }

// ArchivePrefix is the first component of archive file names.
func (c *Config) ArchivePrefix() string { return c.m.ArchivePrefix }

// ArchiveSuffixes lists the suffixes of scratch files moved into the archive.
func (c *Config) ArchiveSuffixes() []string { return append([]string(nil), c.m.ArchiveSuffixes...) }

// RunDelay is the pause between repeated runs of one script.
func (c *Config) RunDelay() time.Duration { return c.m.RunDelay }

// GroupDelay is the pause between scripts of a batch.
func (c *Config) GroupDelay() time.Duration { return c.m.GroupDelay }

// GroupList is the file listing the scripts of a batch, one per line.
func (c *Config) GroupList() string { return c.m.GroupList }

// ReapTarget is the process name substring terminated before each batch script.
func (c *Config) ReapTarget() string { return c.m.ReapTarget }

// ReapInterval is the wait after each terminated process.
func (c *Config) ReapInterval() time.Duration { return c.m.ReapInterval }

// Manifests lists manifest names tried for a single script, in priority order.
func (c *Config) Manifests() []string { return append([]string(nil), c.m.Manifests...) }

// GroupManifests lists manifest names tried for batch scripts, in priority order.
func (c *Config) GroupManifests() []string { return append([]string(nil), c.m.GroupManifests...) }

// SessionLog is the path of the Debug-level session log. Empty disables it.
func (c *Config) SessionLog() string { return c.m.SessionLog }

// FailOnError is whether the command should fail if the session reports an error.
func (c *Config) FailOnError() bool { return c.m.FailOnError }

// ScriptDir returns the directory of the named test script.
func (c *Config) ScriptDir(script string) string { return filepath.Join(c.m.TestsDir, script) }

// NewMutableConfig returns a new configuration holding the built-in defaults.
func NewMutableConfig() *MutableConfig {
	return &MutableConfig{
		ScratchDir:      defaultScratchDir,
		ResultsFile:     results.DefaultFileName,
		LogSuffix:       uploaderlog.DefaultSuffix,
		ArchivePrefix:   archive.DefaultPrefix,
		ArchiveSuffixes: append([]string(nil), archive.DefaultSuffixes...),
		RunDelay:        defaultRunDelay,
		GroupDelay:      defaultGroupDelay,
		ReapTarget:      procreap.DefaultTarget,
		ReapInterval:    procreap.DefaultInterval,
		Manifests:       manifest.DefaultCandidates(),
		GroupManifests:  manifest.GroupCandidates(),
		SessionLog:      defaultSessionLog,
	}
}

// SetFlags adds flags to f that store values in c. The current values of c
// are the flag defaults.
//
// The -config flag loads a YAML file at its position on the command line:
// flags after it override the file, flags before it are overridden.
func (c *MutableConfig) SetFlags(f *flag.FlagSet) {
	f.Var(command.FuncFlag(c.LoadFile), "config", "YAML file with configuration values (can be repeated)")

	f.StringVar(&c.NATSDir, "natsdir", c.NATSDir, "root directory of the NATS installation")
	f.StringVar(&c.Runner, "runner", c.Runner, "test runner executable (default <natsdir>/TCRunner/run.cmd)")
	f.StringVar(&c.TestsDir, "testsdir", c.TestsDir, "directory containing test scripts (default <natsdir>/_Tests_NGP)")
	f.StringVar(&c.LogsDir, "logsdir", c.LogsDir, "directory the runner writes logs to (default <natsdir>/TCRunner/logs)")
	f.StringVar(&c.ScratchDir, "scratchdir", c.ScratchDir, "directory where logs are staged and results are written")
	f.StringVar(&c.ResultsFile, "resultsfile", c.ResultsFile, "file name of the results table")
	f.StringVar(&c.LogSuffix, "logsuffix", c.LogSuffix, "file name suffix of runner logs")
	f.StringVar(&c.ArchivePrefix, "archiveprefix", c.ArchivePrefix, "first component of archive names")
	f.Var(command.NewListFlag(",", func(v []string) { c.ArchiveSuffixes = v }, c.ArchiveSuffixes), "archivesuffixes", "comma-separated suffixes of files to archive")

	f.Var(command.NewDurationFlag(time.Second, &c.RunDelay, c.RunDelay), "rundelay", "seconds to wait between runs")
	f.Var(command.NewDurationFlag(time.Second, &c.GroupDelay, c.GroupDelay), "groupdelay", "seconds to wait between batch scripts")
	f.StringVar(&c.GroupList, "grouplist", c.GroupList, "file listing batch scripts (default <testsdir>/Group.txt)")

	f.StringVar(&c.ReapTarget, "reaptarget", c.ReapTarget, "process name substring to terminate before batch scripts")
	f.Var(command.NewDurationFlag(time.Second, &c.ReapInterval, c.ReapInterval), "reapinterval", "seconds to wait after each terminated process")

	f.Var(command.NewListFlag(",", func(v []string) { c.Manifests = v }, c.Manifests), "manifests", "comma-separated manifest names, in priority order")
	f.Var(command.NewListFlag(",", func(v []string) { c.GroupManifests = v }, c.GroupManifests), "groupmanifests", "comma-separated manifest names for batch scripts, in priority order")

	f.StringVar(&c.SessionLog, "sessionlog", c.SessionLog, "path of the debug session log; empty disables it")
	f.BoolVar(&c.FailOnError, "failonerror", c.FailOnError, "exit with status 1 if the session reports an error")
}

// DeriveDefaults sets default config values to unset members, possibly deriving from
// already set members. It should be called after non-default values are set to c.
func (c *MutableConfig) DeriveDefaults() error {
	setIfEmpty := func(p *string, s string) {
		if *p == "" {
			*p = s
		}
	}

	if c.NATSDir != "" {
		setIfEmpty(&c.Runner, filepath.Join(c.NATSDir, "TCRunner", "run.cmd"))
		setIfEmpty(&c.TestsDir, filepath.Join(c.NATSDir, "_Tests_NGP"))
		setIfEmpty(&c.LogsDir, filepath.Join(c.NATSDir, "TCRunner", "logs"))
	}
	if c.TestsDir != "" {
		setIfEmpty(&c.GroupList, filepath.Join(c.TestsDir, defaultGroupList))
	}

	for _, req := range []struct {
		name string
		val  string
	}{
		{"runner", c.Runner},
		{"tests_dir", c.TestsDir},
		{"logs_dir", c.LogsDir},
		{"scratch_dir", c.ScratchDir},
		{"results_file", c.ResultsFile},
	} {
		if req.val == "" {
			return errors.Errorf("%s is not set; set it or nats_dir", req.name)
		}
	}

	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"run_delay", c.RunDelay},
		{"group_delay", c.GroupDelay},
		{"reap_interval", c.ReapInterval},
	} {
		if d.val < 0 {
			return errors.Errorf("%s must not be negative (got %v)", d.name, d.val)
		}
	}

	if len(c.Manifests) == 0 || len(c.GroupManifests) == 0 {
		return errors.New("manifest candidate lists must not be empty")
	}
	// An empty name matches every process on the machine.
	if strings.TrimSpace(c.ReapTarget) == "" {
		return errors.Wrap(procreap.ErrEmptyTarget, "reap_target must not be empty")
	}
	return nil
}

// Freeze returns a frozen configuration object.
func (c *MutableConfig) Freeze() *Config {
	return &Config{m: c}
}
