package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/vpd/api"
	"github.com/pithecene-io/vpd/types"
)

func statusData(data any) (*api.StatusResponse, bool) {
	switch s := data.(type) {
	case api.StatusResponse:
		return &s, true
	case *api.StatusResponse:
		return s, s != nil
	}
	return nil, false
}

func (m Model) renderStatus() string {
	data, ok := statusData(m.data)
	if !ok {
		return "Invalid data type for status"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("VPD Collection"))
	b.WriteString("\n")

	system := WarningStyle.Render("pending")
	if data.SystemCollectionComplete {
		system = SuccessStyle.Render("complete")
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", LabelStyle.Render("System collection:"), system))

	counts := make(map[types.CollectionStatus]int)
	for _, f := range data.Frus {
		counts[f.Status]++
	}
	boxes := []string{
		renderStatBox("FRUs", len(data.Frus), highlightColor),
		renderStatBox("Completed", counts[types.CollectionCompleted], successColor),
		renderStatBox("In Progress", counts[types.CollectionInProgress], warningColor),
		renderStatBox("Failed", counts[types.CollectionFailed], errorColor),
		renderStatBox("Not Started", counts[types.CollectionNotStarted], mutedColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	if len(data.Frus) == 0 {
		b.WriteString(MutedStyle.Render("(no FRUs)"))
		return b.String()
	}

	from, to := m.visible(len(data.Frus))
	rows := make([][]string, 0, to-from)
	for _, f := range data.Frus[from:to] {
		rows = append(rows, []string{
			string(f.Status),
			f.Path,
			f.HwPath,
			flags(f.SystemVPD, f.Present, f.ConcurrentlyMaintainable, f.ReplaceableAtStandby),
		})
	}
	b.WriteString(renderRows([]string{"STATUS", "INVENTORY PATH", "EEPROM", "FLAGS"}, rows, 0))
	return b.String()
}

// flags abbreviates the FRU attributes: S system VPD, P present,
// C concurrently maintainable, R replaceable at standby.
func flags(system, present, maintainable, replaceable bool) string {
	var b strings.Builder
	for _, f := range []struct {
		set bool
		c   byte
	}{{system, 'S'}, {present, 'P'}, {maintainable, 'C'}, {replaceable, 'R'}} {
		if f.set {
			b.WriteByte(f.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
