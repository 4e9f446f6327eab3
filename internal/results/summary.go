// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package results

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WriteSummary renders rows as a console table titled title.
func WriteSummary(w io.Writer, title string, rows []Row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	// Keep the column names as they appear in the CSV header.
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault

	header := make(table.Row, len(fields))
	for i, f := range fields {
		header[i] = f
	}
	t.AppendHeader(header)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "№", Align: text.AlignRight},
		{Name: "Script", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})

	for _, r := range rows {
		t.AppendRow(table.Row{r.Index, r.Version, r.User, r.Script, r.Start, r.End, r.Duration})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Runs", len(rows)})
	t.Render()
}
