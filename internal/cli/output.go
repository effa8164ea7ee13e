package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/forPelevin/reelcut/internal/pipeline"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxTextWidth = 48

// useColor reports whether w is an interactive terminal. NO_COLOR disables
// styling regardless.
func useColor(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, colorize bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if colorize {
		tw.SetStyle(table.StyleRounded)
		tw.Style().Color.Header = text.Colors{text.Bold}
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func printReport(w io.Writer, rep pipeline.Report, colorize bool) {
	res := rep.Result
	fmt.Fprintf(w, "Run %s: %d segments, %d selected, %d rendered, %d failed\n",
		rep.RunID[:8], rep.Segments, len(res.Selection), len(res.Artifacts), len(res.Failures))

	if len(res.Artifacts) > 0 {
		rows := make([][]string, 0, len(res.Artifacts))
		for i, a := range res.Artifacts {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				formatSpan(a.Segment.Start, a.Segment.End),
				strconv.FormatFloat(a.Segment.Score, 'f', 3, 64),
				truncateText(a.Segment.Text, maxTextWidth),
				relTo(rep.RunDir, a.Path),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"#", "Span", "Score", "Text", "File"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			colorize,
		))
	}

	if len(res.Failures) > 0 {
		rows := make([][]string, 0, len(res.Failures))
		for _, f := range res.Failures {
			rows = append(rows, []string{
				strconv.Itoa(f.Segment.Index),
				formatSpan(f.Segment.Start, f.Segment.End),
				f.Kind.String(),
				f.Step,
				truncateText(f.Reason, maxTextWidth),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Segment", "Span", "Kind", "Step", "Reason"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			colorize,
		))
	}

	fmt.Fprintf(w, "Manifest: %s\n", rep.ManifestPath)
}

func formatSpan(start, end float64) string {
	return fmt.Sprintf("%.2fs-%.2fs", start, end)
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func relTo(base, p string) string {
	if base == "" {
		return p
	}
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}
