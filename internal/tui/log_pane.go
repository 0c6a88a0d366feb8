package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// logCapacity bounds the retained event lines.
const logCapacity = 500

// LogPaneModel is the scrollable event log.
type LogPaneModel struct {
	lines    []string
	viewport viewport.Model
	width    int
	height   int
	focused  bool
}

// NewLogPaneModel creates a new log pane model.
func NewLogPaneModel() LogPaneModel {
	return LogPaneModel{viewport: viewport.New(0, 0)}
}

// Append adds a line to the log, dropping the oldest past capacity. The
// view follows the tail unless the operator has scrolled up.
func (m *LogPaneModel) Append(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > logCapacity {
		m.lines = m.lines[len(m.lines)-logCapacity:]
	}
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

// Update handles messages for the log pane.
func (m LogPaneModel) Update(msg tea.Msg) (LogPaneModel, tea.Cmd) {
	var cmd tea.Cmd
	if key, ok := msg.(tea.KeyMsg); ok && m.focused {
		// The viewport's default keymap covers j/k and the arrows.
		m.viewport, cmd = m.viewport.Update(key)
	}
	return m, cmd
}

// View renders the log pane.
func (m LogPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Events")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n")

	if len(m.lines) == 0 {
		b.WriteString(StylePending.Render("No events yet."))
	} else {
		b.WriteString(m.viewport.View())
	}

	content := b.String()

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// resizeViewport resizes the viewport under the pane header.
func (m *LogPaneModel) resizeViewport() {
	w := m.width - 4
	h := m.height - 5 // borders plus the two header lines

	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}

	m.viewport.Width = w
	m.viewport.Height = h
}

// SetSize updates the pane dimensions.
func (m *LogPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *LogPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
