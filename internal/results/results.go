// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package results accumulates one row per harvested run and writes them as a
// CSV table.
package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/uploaderlog"
)

// DefaultFileName is the name of the results table in the scratch directory.
const DefaultFileName = "Results.csv"

// unavailable is written for times and durations that could not be read.
const unavailable = "0"

// ErrNoRows is returned by WriteCSV when there is nothing to write.
var ErrNoRows = errors.New("no result rows")

// fields are the column names of the table, in order.
var fields = []string{"№", "Uploader ver", "User", "Script", "Start", "End", "Duration"}

// Row is one line of the results table. All values are rendered text.
type Row struct {
	Index    string
	Version  string
	User     string
	Script   string
	Start    string
	End      string
	Duration string
}

// NewRow renders rec as the row of run number index (1-based) of script.
func NewRow(index int, script string, rec uploaderlog.Record) Row {
	row := Row{
		Index:    strconv.Itoa(index),
		Version:  rec.Version,
		User:     rec.User,
		Script:   script,
		Start:    unavailable,
		End:      unavailable,
		Duration: unavailable,
	}
	if rec.HasTimes() {
		row.Start = rec.Start.Format(uploaderlog.TimeLayout)
		row.End = rec.End.Format(uploaderlog.TimeLayout)
		row.Duration = FormatDuration(rec.Duration)
	}
	return row
}

// values returns the row's cells in column order.
func (r Row) values() []string {
	return []string{r.Index, r.Version, r.User, r.Script, r.Start, r.End, r.Duration}
}

// FormatDuration renders d as H:MM:SS, e.g. "0:05:30". Hours are not folded
// into days.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	d = d.Truncate(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%s%d:%02d:%02d", sign, h, m, s)
}

// Collector holds the rows of one orchestration session in insertion order.
// The zero value is ready to use.
type Collector struct {
	rows []Row
}

// Add appends a row.
func (c *Collector) Add(r Row) {
	c.rows = append(c.rows, r)
}

// Rows returns a copy of the rows added so far.
func (c *Collector) Rows() []Row {
	return append([]Row(nil), c.rows...)
}

// Last returns the most recently added row.
func (c *Collector) Last() (Row, bool) {
	if len(c.rows) == 0 {
		return Row{}, false
	}
	return c.rows[len(c.rows)-1], true
}

// WriteCSV writes a header line followed by rows, in order, to a new file at
// path. Nothing is written if rows is empty.
func WriteCSV(path string, rows []Row) (retErr error) {
	if len(rows) == 0 {
		return errors.Wrapf(ErrNoRows, "not writing %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create results file")
	}
	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = errors.Wrap(err, "failed to close results file")
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, r := range rows {
		if err := w.Write(r.values()); err != nil {
			return errors.Wrapf(err, "failed to write row %s", r.Index)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush results file")
	}
	return nil
}
