package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/vpd/lode"
)

// chromeLines is the height taken by the title, stat boxes and help.
const chromeLines = 12

// Model is the Bubble Tea model shared by all views. Rows scroll; the
// header stays put.
type Model struct {
	viewType string
	data     any
	width    int
	height   int
	offset   int
	quitting bool
}

// NewModel creates a model for viewType.
func NewModel(viewType string, data any) Model {
	return Model{viewType: viewType, data: data}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.offset > 0 {
				m.offset--
			}
		case key.Matches(msg, keys.Down):
			if m.offset < m.rowCount()-1 {
				m.offset++
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatus:
		content = m.renderStatus()
	case ViewFaults:
		content = m.renderFaults()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("↑/↓ scroll • q quit")
	return content + "\n" + help
}

func (m Model) rowCount() int {
	switch m.viewType {
	case ViewStatus:
		if s, ok := statusData(m.data); ok {
			return len(s.Frus)
		}
	case ViewFaults:
		if f, ok := m.data.([]lode.ArchivedFault); ok {
			return len(f)
		}
	}
	return 0
}

// visible returns the window of rows [from, to) that fits the terminal.
func (m Model) visible(n int) (int, int) {
	from := min(m.offset, n)
	if m.height <= chromeLines {
		return from, n
	}
	return from, min(n, from+m.height-chromeLines)
}

func renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// renderRows lays out cells in padded columns. The column named by
// stateCol is colored with StateStyle.
func renderRows(headers []string, rows [][]string, stateCol int) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, c := range r {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(HeaderStyle.Render(pad(h, widths[i])))
		b.WriteString("  ")
	}
	for _, r := range rows {
		b.WriteString("\n")
		for i, c := range r {
			cell := pad(c, widths[i])
			if i == stateCol {
				cell = StateStyle(c).Render(cell)
			}
			b.WriteString(cell)
			b.WriteString("  ")
		}
	}
	return b.String()
}

func pad(s string, width int) string {
	if n := width - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
