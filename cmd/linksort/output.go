package main

import (
	"encoding/json"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// column describes one table column. Cells wider than maxWidth are cut with
// an ellipsis; zero means unbounded.
type column struct {
	title    string
	right    bool
	maxWidth int
}

func col(title string) column            { return column{title: title} }
func numCol(title string) column         { return column{title: title, right: true} }
func wideCol(title string, w int) column { return column{title: title, maxWidth: w} }

func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		align := text.AlignLeft
		if c.right {
			align = text.AlignRight
		}
		cfg := table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
		if c.maxWidth > 0 {
			width := c.maxWidth
			cfg.Transformer = func(v any) string {
				s, _ := v.(string)
				return text.Trim(s, width-1) + ellipsisIfLonger(s, width)
			}
		}
		configs[i] = cfg
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range cols {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

func ellipsisIfLonger(s string, width int) string {
	if text.RuneWidthWithoutEscSequences(s) > width {
		return "…"
	}
	return ""
}

// emit writes v as indented JSON when asJSON is set, else calls human with
// the command's stdout.
func emit(cmd *cobra.Command, asJSON bool, v any, human func(io.Writer) error) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return human(out)
}
