package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dshills/prsignal/internal/analysis"
	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/review"
	"github.com/dshills/prsignal/internal/risk"
)

// TextWriter outputs a human-readable terminal report.
type TextWriter struct {
	// Color enables ANSI colours for severity labels.
	Color bool
	// RunInfo appends the run id and stage timings, which differ on every
	// run.
	RunInfo bool
}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}

	ew.printf("prsignal: %s mode\n", report.Inputs.Mode)
	if report.Inputs.Range != "" {
		ew.printf("Range: %s\n", report.Inputs.Range)
	}
	if report.Repo.PR > 0 {
		ew.printf("Pull request: %s/%s#%d\n", report.Repo.Owner, report.Repo.Name, report.Repo.PR)
	} else if report.Repo.Root != "" {
		ew.printf("Repository: %s (branch: %s)\n", report.Repo.Root, report.Repo.Branch)
	}
	ew.printf("Changed files: %s | Diff size: %s\n",
		humanize.Comma(int64(report.Inputs.Files)),
		humanize.Bytes(uint64(report.Inputs.DiffBytes)))
	ew.println(strings.Repeat("─", 60))

	counts := report.Summary.Counts
	total := counts.High + counts.Medium + counts.Low
	ew.printf("Signals: %d total", total)
	if total > 0 {
		ew.printf(" (%s high, %s medium, %s low)",
			t.severity(model.SeverityHigh, fmt.Sprint(counts.High)),
			t.severity(model.SeverityMedium, fmt.Sprint(counts.Medium)),
			t.severity(model.SeverityLow, fmt.Sprint(counts.Low)),
		)
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))

	if report.Risk != nil {
		t.writeRisk(ew, report.Risk)
	}
	if report.Complexity != nil {
		t.writeComplexity(ew, report.Complexity)
	}

	if t.RunInfo {
		ew.printf("\n%s\n", strings.Repeat("─", 60))
		ew.printf("Run %s completed in %dms (gather: %dms, risk: %dms, analysis: %dms)\n", report.RunID,
			report.Timing.TotalMs, report.Timing.GatherMs, report.Timing.RiskMs, report.Timing.AnalysisMs)
	}

	return ew.err
}

func (t *TextWriter) writeRisk(ew *errWriter, rr *risk.Report) {
	ew.println("\nRISK")
	if len(rr.Files) == 0 {
		ew.println("  No risky files detected.")
		return
	}
	for _, d := range rr.Details {
		ew.printf("  %s\n", d)
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Severity", "File", "Categories", "Changes"})
	for _, f := range rr.Files {
		tbl.AppendRow(table.Row{
			t.severity(f.Severity, strings.ToUpper(string(f.Severity))),
			f.Filename,
			strings.Join(f.Categories, ", "),
			fmt.Sprintf("+%d/-%d", f.Additions, f.Deletions),
		})
	}
	ew.printf("\n%s\n", tbl.Render())
}

func (t *TextWriter) writeComplexity(ew *errWriter, ar *analysis.Report) {
	ew.println("\nCOMPLEXITY")
	for _, d := range ar.Details {
		ew.printf("  %s\n", d)
	}

	if len(ar.Warnings) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"Severity", "Type", "File", "Message"})
		for _, w := range ar.Warnings {
			tbl.AppendRow(table.Row{
				t.severity(w.Severity, strings.ToUpper(string(w.Severity))),
				string(w.Type),
				w.Filename,
				w.Message,
			})
		}
		ew.printf("\n%s\n", tbl.Render())
	}

	if len(ar.CodeSmells) > 0 {
		tbl := newTable()
		tbl.AppendHeader(table.Row{"Smell", "File", "Count"})
		for _, s := range ar.CodeSmells {
			tbl.AppendRow(table.Row{s.Type, s.Filename, s.Count})
		}
		ew.printf("\n%s\n", tbl.Render())
	}

	st := ar.Stats
	ew.printf("\n  Files analysed: %d | Added: +%s | Removed: -%s | Average: %.1f lines\n",
		st.FilesAnalyzed, humanize.Comma(int64(st.TotalAdditions)),
		humanize.Comma(int64(st.TotalDeletions)), st.AverageFileSize)
	if st.LargestFile != nil {
		ew.printf("  Largest file: %s (+%s)\n", st.LargestFile.Filename, humanize.Comma(int64(st.LargestFile.Additions)))
	}
}

func (t *TextWriter) severity(s model.Severity, text string) string {
	var c *color.Color
	switch s {
	case model.SeverityHigh:
		c = color.New(color.FgRed, color.Bold)
	case model.SeverityMedium:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgCyan)
	}
	if t.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(text)
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	return tbl
}
