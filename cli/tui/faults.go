package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/vpd/lode"
)

func (m Model) renderFaults() string {
	data, ok := m.data.([]lode.ArchivedFault)
	if !ok {
		return "Invalid data type for faults"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Archived Faults"))
	b.WriteString("\n")

	var errs, warns int
	for _, f := range data {
		switch f.Severity {
		case "Error", "Critical", "Emergency", "Alert":
			errs++
		case "Warning":
			warns++
		}
	}
	boxes := []string{
		renderStatBox("Total", len(data), highlightColor),
		renderStatBox("Errors", errs, errorColor),
		renderStatBox("Warnings", warns, warningColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	if len(data) == 0 {
		b.WriteString(MutedStyle.Render("(no faults)"))
		return b.String()
	}

	from, to := m.visible(len(data))
	rows := make([][]string, 0, to-from)
	for _, f := range data[from:to] {
		callout := ""
		if len(f.Callouts) > 0 {
			callout = f.Callouts[0].Path
		}
		rows = append(rows, []string{f.Severity, f.Timestamp, f.ErrorType, callout})
	}
	b.WriteString(renderRows([]string{"SEVERITY", "TIME", "TYPE", "CALLOUT"}, rows, 0))
	return b.String()
}
