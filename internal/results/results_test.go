// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package results_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mpesttc/uploaderperf/errors"
	"github.com/mpesttc/uploaderperf/internal/results"
	"github.com/mpesttc/uploaderperf/internal/uploaderlog"
	"github.com/mpesttc/uploaderperf/testutil"
)

func sampleRecord() uploaderlog.Record {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 10, 5, 30, 0, time.UTC)
	return uploaderlog.Record{Version: "7.2", User: "alice", Start: start, End: end, Duration: end.Sub(start)}
}

func TestNewRow(t *testing.T) {
	got := results.NewRow(1, "_BLE_Uploader_Smoke_Test_770", sampleRecord())
	want := results.Row{
		Index:    "1",
		Version:  "7.2",
		User:     "alice",
		Script:   "_BLE_Uploader_Smoke_Test_770",
		Start:    "2024-01-01 10:00:00",
		End:      "2024-01-01 10:05:30",
		Duration: "0:05:30",
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("NewRow mismatch (-got +want):\n%s", diff)
	}
}

func TestNewRowWithoutTimes(t *testing.T) {
	rec := uploaderlog.Record{Version: uploaderlog.VersionNotFound, User: uploaderlog.UserNotFound}
	got := results.NewRow(3, "s", rec)
	want := results.Row{
		Index:    "3",
		Version:  uploaderlog.VersionNotFound,
		User:     uploaderlog.UserNotFound,
		Script:   "s",
		Start:    "0",
		End:      "0",
		Duration: "0",
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("NewRow mismatch (-got +want):\n%s", diff)
	}
}

func TestFormatDuration(t *testing.T) {
	for _, tc := range []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00:00"},
		{5*time.Minute + 30*time.Second, "0:05:30"},
		{26*time.Hour + 1500*time.Millisecond, "26:00:01"},
		{-time.Minute, "-0:01:00"},
	} {
		if got := results.FormatDuration(tc.d); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q; want %q", tc.d, got, tc.want)
		}
	}
}

func TestCollector(t *testing.T) {
	var c results.Collector
	if _, ok := c.Last(); ok {
		t.Error("Last() on empty collector = ok; want not ok")
	}
	c.Add(results.Row{Index: "1"})
	c.Add(results.Row{Index: "2"})

	if last, ok := c.Last(); !ok || last.Index != "2" {
		t.Errorf("Last() = (%+v, %v); want index 2", last, ok)
	}

	rows := c.Rows()
	rows[0].Index = "modified"
	if diff := cmp.Diff(c.Rows(), []results.Row{{Index: "1"}, {Index: "2"}}); diff != "" {
		t.Errorf("Rows mismatch (-got +want):\n%s", diff)
	}
}

func TestWriteCSV(t *testing.T) {
	td := testutil.TempDir(t)
	path := filepath.Join(td, results.DefaultFileName)
	rows := []results.Row{
		results.NewRow(1, "smoke", sampleRecord()),
		results.NewRow(2, "smoke", uploaderlog.Record{Version: "7.2", User: "a, b"}),
		results.NewRow(3, "smoke", sampleRecord()),
	}
	if err := results.WriteCSV(path, rows); err != nil {
		t.Fatal("WriteCSV failed: ", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"№,Uploader ver,User,Script,Start,End,Duration",
		"1,7.2,alice,smoke,2024-01-01 10:00:00,2024-01-01 10:05:30,0:05:30",
		`2,7.2,"a, b",smoke,0,0,0`,
		"3,7.2,alice,smoke,2024-01-01 10:00:00,2024-01-01 10:05:30,0:05:30",
		"",
	}, "\n")
	if diff := cmp.Diff(string(b), want); diff != "" {
		t.Errorf("CSV mismatch (-got +want):\n%s", diff)
	}
}

func TestWriteCSVNoRows(t *testing.T) {
	td := testutil.TempDir(t)
	path := filepath.Join(td, results.DefaultFileName)
	if err := results.WriteCSV(path, nil); !errors.Is(err, results.ErrNoRows) {
		t.Errorf("WriteCSV(nil) error = %v; want ErrNoRows", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("WriteCSV(nil) created %s", path)
	}
}

func TestWriteCSVBadDir(t *testing.T) {
	td := testutil.TempDir(t)
	path := filepath.Join(td, "missing", results.DefaultFileName)
	if err := results.WriteCSV(path, []results.Row{{Index: "1"}}); err == nil {
		t.Error("WriteCSV succeeded in a nonexistent directory")
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	results.WriteSummary(&buf, "smoke", []results.Row{results.NewRow(1, "smoke", sampleRecord())})
	out := buf.String()
	for _, want := range []string{"Uploader ver", "alice", "0:05:30", "Runs"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary lacks %q:\n%s", want, out)
		}
	}
}
