package main

import (
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// pathRow is one file the daemon owns or reads, as listed by `upcased status`.
type pathRow struct {
	label string
	path  string
}

// renderPathTable lists the daemon's files with what is on disk at each
// path, so a stale lock or a regular file squatting on the public FIFO path
// stands out.
func renderPathTable(rows []pathRow) string {
	if len(rows) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"File", "Path", "On disk"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row.label, row.path, describePath(row.path)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func describePath(path string) string {
	if path == "" || !filepath.IsAbs(path) {
		return "-"
	}
	info, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		return "missing"
	case err != nil:
		return "unreadable"
	case info.Mode()&os.ModeNamedPipe != 0:
		return "fifo"
	case info.IsDir():
		return "directory"
	case info.Mode()&os.ModeSymlink != 0:
		return "symlink"
	default:
		return "file"
	}
}
