// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package uploaderlog locates the log written by the last uploader run and
// extracts the uploader version, the uploading user and the upload time span
// from it.
package uploaderlog

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/fsutil"
	"github.com/mpesttc/uploaderperf/internal/logging"
)

const (
	// DefaultSuffix is the file name suffix of runner logs.
	DefaultSuffix = ".log"

	// VersionNotFound is reported as the version when no log line names it.
	VersionNotFound = "Not found"
	// UserNotFound is reported as the user when no log line names it.
	UserNotFound = "User not found"

	// TimeLayout is the layout of timestamps written by the uploader.
	TimeLayout = "2006-01-02 15:04:05"
)

var (
	// ErrNoLog is returned when a log directory holds no log files.
	ErrNoLog = errors.New("no log files found")
	// ErrStaleLog is returned by Open when the newest log predates the run.
	ErrStaleLog = errors.New("no log newer than the previous one")
	// ErrEmptyLog is returned by extractions on a log without lines.
	ErrEmptyLog = errors.New("log is empty")
	// ErrNotFound is returned when no line matches the version or user pattern.
	ErrNotFound = errors.New("no matching line")
	// ErrNoTimestamp is returned when the first or last line lacks a timestamp.
	ErrNoTimestamp = errors.New("no timestamp")
)

var (
	timeRE    = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	versionRE = regexp.MustCompile(`serialNumber for upload: (\d\.\d)`)
	userRE    = regexp.MustCompile(`username=\[?(.+?)\]`)
)

// Record holds the facts extracted from one runner log.
type Record struct {
	Version string
	User    string
	// Start and End are zero if the time span could not be read.
	Start time.Time
	End   time.Time
	// Duration is End - Start, or 0 if the time span could not be read.
	Duration time.Duration
}

// HasTimes reports whether the start and end times were read from the log.
func (r Record) HasTimes() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// Log is the content of a runner log file.
type Log struct {
	// Path is the location the log was read from.
	Path string
	// Lines holds the lines of the file in order, without line terminators.
	Lines []string
}

// FindLatest returns the path of the file in dir with the most recent
// modification time whose name ends with suffix. Ties are broken by name.
func FindLatest(dir, suffix string) (string, error) {
	path, _, err := findLatest(dir, suffix)
	return path, err
}

// LatestModTime returns the modification time of the newest log in dir, or
// the zero time if dir holds no log.
func LatestModTime(dir, suffix string) (time.Time, error) {
	_, mtime, err := findLatest(dir, suffix)
	if errors.Is(err, ErrNoLog) {
		return time.Time{}, nil
	}
	return mtime, err
}

func findLatest(dir, suffix string) (string, time.Time, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, errors.Wrapf(err, "failed to list %s", dir)
	}
	var latest string
	var latestTime time.Time
	for _, ent := range ents {
		if !ent.Type().IsRegular() || !strings.HasSuffix(ent.Name(), suffix) {
			continue
		}
		fi, err := ent.Info()
		if err != nil {
			// The file vanished after listing.
			continue
		}
		if latest == "" || fi.ModTime().After(latestTime) ||
			(fi.ModTime().Equal(latestTime) && ent.Name() > filepath.Base(latest)) {
			latest = filepath.Join(dir, ent.Name())
			latestTime = fi.ModTime()
		}
	}
	if latest == "" {
		return "", time.Time{}, errors.Wrapf(ErrNoLog, "no *%s files in %s", suffix, dir)
	}
	return latest, latestTime, nil
}

// Load reads the log file at path.
func Load(path string) (*Log, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return &Log{Path: path, Lines: splitLines(string(b))}, nil
}

// splitLines splits s into lines, accepting both "\n" and "\r\n" terminators.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Stage copies the log at src into scratchDir, creating the directory if it
// does not exist, and returns the path of the copy.
func Stage(ctx context.Context, src, scratchDir string) (string, error) {
	dst, created, err := fsutil.CopyIntoDir(src, scratchDir)
	if created {
		logging.Infof(ctx, "Folder %s has been created", scratchDir)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to copy %s to %s", src, scratchDir)
	}
	logging.Infof(ctx, "Log file has been copied to the %s folder", scratchDir)
	return dst, nil
}

// Open finds the newest log in logsDir, stages it into scratchDir and loads
// the copy. Unless since is zero, the log must have been modified after
// since; otherwise an error wrapping ErrStaleLog is returned and nothing is
// staged.
func Open(ctx context.Context, logsDir, scratchDir, suffix string, since time.Time) (*Log, error) {
	logging.Debugf(ctx, "Looking for logs in %s", logsDir)
	src, mtime, err := findLatest(logsDir, suffix)
	if err != nil {
		return nil, err
	}
	if !since.IsZero() && !mtime.After(since) {
		return nil, errors.Wrapf(ErrStaleLog, "%s was last written at %s", filepath.Base(src), mtime.Format(TimeLayout))
	}
	logging.Debugf(ctx, "Selected log file: %s", filepath.Base(src))

	dst, err := Stage(ctx, src, scratchDir)
	if err != nil {
		return nil, err
	}

	l, err := Load(dst)
	if err != nil {
		return nil, err
	}
	if len(l.Lines) == 0 {
		logging.Errorf(ctx, "%s is empty", filepath.Base(dst))
	} else {
		logging.Info(ctx, "File reading - DONE")
	}
	return l, nil
}

// checkNotEmpty is the precondition of every extraction.
func (l *Log) checkNotEmpty(ctx context.Context) error {
	if len(l.Lines) > 0 {
		return nil
	}
	logging.Error(ctx, "File is empty")
	return errors.Wrap(ErrEmptyLog, filepath.Base(l.Path))
}

// UploadTime returns the timestamps found on the first and the last line.
// If either line lacks a parseable timestamp, zero times are returned with an
// error wrapping ErrNoTimestamp.
func (l *Log) UploadTime(ctx context.Context) (start, end time.Time, err error) {
	if err := l.checkNotEmpty(ctx); err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err = parseTimestamp(l.Lines[0])
	if err != nil {
		logging.Error(ctx, "Matches not found")
		return time.Time{}, time.Time{}, errors.Wrap(err, "first line")
	}
	end, err = parseTimestamp(l.Lines[len(l.Lines)-1])
	if err != nil {
		logging.Error(ctx, "Matches not found")
		return time.Time{}, time.Time{}, errors.Wrap(err, "last line")
	}
	logging.Debugf(ctx, "Start: %s", start.Format(TimeLayout))
	logging.Debugf(ctx, "End: %s", end.Format(TimeLayout))
	logging.Info(ctx, "Reading time - DONE")
	return start, end, nil
}

func parseTimestamp(line string) (time.Time, error) {
	tok := timeRE.FindString(line)
	if tok == "" {
		return time.Time{}, errors.Wrapf(ErrNoTimestamp, "in %q", line)
	}
	ts, err := time.Parse(TimeLayout, tok)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrNoTimestamp, "%q: %v", tok, err)
	}
	return ts, nil
}

// Version returns the uploader version from the first line announcing the
// upload serial number. If no line does, VersionNotFound is returned with an
// error wrapping ErrNotFound.
func (l *Log) Version(ctx context.Context) (string, error) {
	if err := l.checkNotEmpty(ctx); err != nil {
		return "", err
	}
	if m, ok := l.firstMatch(versionRE); ok {
		logging.Infof(ctx, "CLI version: %s", m)
		return m, nil
	}
	logging.Error(ctx, "Version not found")
	return VersionNotFound, errors.Wrap(ErrNotFound, "version")
}

// User returns the name from the first "username=...]" token. If no line has
// one, UserNotFound is returned with an error wrapping ErrNotFound.
func (l *Log) User(ctx context.Context) (string, error) {
	if err := l.checkNotEmpty(ctx); err != nil {
		return "", err
	}
	if m, ok := l.firstMatch(userRE); ok {
		logging.Infof(ctx, "User: %s", m)
		return m, nil
	}
	logging.Error(ctx, "User not found")
	return UserNotFound, errors.Wrap(ErrNotFound, "user")
}

// firstMatch returns the first submatch of re over the lines in order.
func (l *Log) firstMatch(re *regexp.Regexp) (string, bool) {
	for _, line := range l.Lines {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Record extracts all facts from the log. Facts that cannot be found are
// replaced by VersionNotFound, UserNotFound and zero times respectively.
func (l *Log) Record(ctx context.Context) Record {
	rec := Record{Version: VersionNotFound, User: UserNotFound}
	if start, end, err := l.UploadTime(ctx); err == nil {
		rec.Start, rec.End, rec.Duration = start, end, end.Sub(start)
	}
	if v, err := l.Version(ctx); err == nil {
		rec.Version = v
	}
	if u, err := l.User(ctx); err == nil {
		rec.User = u
	}
	return rec
}
