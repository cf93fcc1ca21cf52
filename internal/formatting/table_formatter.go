package formatting

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"tether/internal/orchestrator"
	"tether/internal/pipeline"
	tstrings "tether/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	w       io.Writer
	options Options
}

// FormatReport renders the phases, then one row per unit, then a summary.
func (f *TableFormatter) FormatReport(r *pipeline.Report) error {
	doc := NewReportDocument(r)

	fmt.Fprintf(f.w, "%s %s  %s %s  %s %s\n",
		f.color(text.FgHiBlue, "Run:"), doc.RunID,
		f.color(text.FgHiBlue, "Stage:"), f.stageColor(r.Stage),
		f.color(text.FgHiBlue, "Duration:"), doc.Duration)

	phases := f.createTable()
	phases.AppendHeader(table.Row{f.header("PHASE"), f.header("DURATION"), f.header("ERROR")})
	for _, p := range doc.Phases {
		phases.AppendRow(table.Row{p.Phase, p.Duration, f.errorCell(p.Error)})
	}
	phases.Render()

	if len(doc.Units) == 0 {
		fmt.Fprintf(f.w, "%s\n", f.color(text.FgYellow, "No units configured"))
		return nil
	}

	units := f.createTable()
	units.AppendHeader(table.Row{
		f.header("UNIT"), f.header("VERSION"), f.header("LEVEL"),
		f.header("AUTOSTART"), f.header("STATUS"), f.header("ERROR"),
	})
	for _, u := range r.Units {
		units.AppendRow(table.Row{
			u.Identifier,
			u.Version,
			strconv.Itoa(u.StartLevel),
			strconv.FormatBool(u.AutoStart),
			f.unitStatusColor(u.Status),
			f.errorCell(errString(u.Err)),
		})
	}
	units.Render()

	fmt.Fprintf(f.w, "%s %d active, %d resolved, %d failed\n",
		f.color(text.FgHiBlue, "Units:"),
		r.Count(pipeline.UnitActive), r.Count(pipeline.UnitResolved), len(r.Failures()))
	return nil
}

// FormatStatuses renders one row per service.
func (f *TableFormatter) FormatStatuses(statuses []orchestrator.Status) error {
	if len(statuses) == 0 {
		fmt.Fprintf(f.w, "%s\n", f.color(text.FgYellow, "No services registered"))
		return nil
	}

	t := f.createTable()
	t.AppendHeader(table.Row{f.header("SERVICE"), f.header("STATE"), f.header("MODE"), f.header("DETAIL")})
	for _, s := range NewStatusDocuments(statuses) {
		detail := s.Error
		if detail == "" {
			detail = s.Blocked
		}
		t.AppendRow(table.Row{s.Name, f.stateColor(s.State), s.Mode, f.errorCell(detail)})
	}
	t.Render()
	return nil
}

// FormatUnits renders one row per manifest.
func (f *TableFormatter) FormatUnits(units []*pipeline.Unit) error {
	if len(units) == 0 {
		fmt.Fprintf(f.w, "%s\n", f.color(text.FgYellow, "No unit manifests found"))
		return nil
	}

	t := f.createTable()
	t.AppendHeader(table.Row{
		f.header("UNIT"), f.header("VERSION"), f.header("LEVEL"),
		f.header("REQUIRES"), f.header("PROVIDES"), f.header("RUNNABLE"),
	})
	for _, m := range NewManifestDocuments(units) {
		t.AppendRow(table.Row{
			m.Identifier,
			m.Version,
			strconv.Itoa(m.StartLevel),
			strings.Join(m.Requires, ", "),
			strings.Join(m.Provides, ", "),
			strconv.FormatBool(m.Runnable),
		})
	}
	t.Render()
	fmt.Fprintf(f.w, "%s %d\n", f.color(text.FgHiBlue, "Total:"), len(units))
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.w)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(s string) string {
	return f.color(text.FgHiCyan, s)
}

func (f *TableFormatter) color(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) errorCell(s string) string {
	return f.color(text.FgRed, tstrings.SingleLine(s, tstrings.DefaultCellMaxLen))
}

func (f *TableFormatter) stageColor(s pipeline.Stage) string {
	switch s {
	case pipeline.StageComplete:
		return f.color(text.FgGreen, s.String())
	case pipeline.StageFailed:
		return f.color(text.FgRed, s.String())
	default:
		return f.color(text.FgYellow, s.String())
	}
}

func (f *TableFormatter) unitStatusColor(s pipeline.UnitStatus) string {
	switch {
	case s == pipeline.UnitActive:
		return f.color(text.FgGreen, string(s))
	case s.IsFailure():
		return f.color(text.FgRed, string(s))
	default:
		return f.color(text.FgYellow, string(s))
	}
}

func (f *TableFormatter) stateColor(state string) string {
	switch state {
	case "UP":
		return f.color(text.FgGreen, state)
	case "START_FAILED":
		return f.color(text.FgRed, state)
	default:
		return f.color(text.FgYellow, state)
	}
}
