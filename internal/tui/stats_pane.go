package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/LucaSlade/ME405-Romulus/internal/scheduler"
)

// StatsPaneModel shows the scheduler's per-task dispatch statistics.
type StatsPaneModel struct {
	stats   []scheduler.TaskStats
	width   int
	height  int
	focused bool
}

// NewStatsPaneModel creates a new stats pane model.
func NewStatsPaneModel() StatsPaneModel {
	return StatsPaneModel{}
}

// Apply replaces the displayed statistics.
func (m *StatsPaneModel) Apply(stats []scheduler.TaskStats) {
	m.stats = stats
}

// View renders the stats pane.
func (m StatsPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Scheduler")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if len(m.stats) == 0 {
		b.WriteString(StylePending.Render("Waiting for telemetry..."))
	} else {
		b.WriteString(StyleLabel.Render(fmt.Sprintf("%-9s %4s %7s %8s %7s %9s", "task", "prio", "period", "runs", "missed", "max late")))
		b.WriteString("\n")
		for _, st := range m.stats {
			missed := fmt.Sprintf("%7d", st.Missed)
			if st.Missed > 0 {
				missed = StyleFault.Render(missed)
			}
			b.WriteString(fmt.Sprintf("%-9s %4d %7s %8d %s %9s\n",
				st.Name, st.Priority, st.Period, st.Runs, missed, st.MaxLate))
		}
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

// SetSize updates the pane dimensions.
func (m *StatsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *StatsPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
