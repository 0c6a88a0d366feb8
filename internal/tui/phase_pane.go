package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/LucaSlade/ME405-Romulus/internal/events"
	"github.com/LucaSlade/ME405-Romulus/internal/mission"
)

// PhasePaneModel is the course progress display: one row per leg, with
// the completed legs checked off, the active leg highlighted, and a
// progress bar under the active leg when it is distance-guarded.
type PhasePaneModel struct {
	course   mission.Course
	current  string
	ticks    uint64
	advance  int64
	fault    string
	causes   map[string]string // phase ID -> cause of the exit that left it
	terminal string            // FINISHED or FAULTED once reached
	width    int
	height   int
	focused  bool
}

// NewPhasePaneModel creates a phase pane for the given course.
func NewPhasePaneModel(course mission.Course) PhasePaneModel {
	m := PhasePaneModel{
		course: course,
		causes: make(map[string]string),
	}
	if standby := course.Standby(); standby != nil {
		m.current = standby.ID
	}
	return m
}

// Apply folds a snapshot frame into the pane.
func (m *PhasePaneModel) Apply(snap events.SnapshotEvent) {
	m.current = snap.Phase
	m.ticks = snap.PhaseTicks
	m.advance = snap.Advance
	m.fault = snap.Fault
}

// Observe folds a discrete event into the pane.
func (m *PhasePaneModel) Observe(ev events.Event) {
	switch ev := ev.(type) {
	case events.PhaseChangedEvent:
		m.causes[ev.From] = ev.Cause
		m.current = ev.To
		m.ticks = 0
		m.advance = 0
		if ev.To == mission.FinishedState || ev.To == mission.FaultedState {
			m.terminal = ev.To
		}
	case events.MissionFaultedEvent:
		m.terminal = mission.FaultedState
		m.fault = ev.Reason
	}
}

// View renders the phase pane.
func (m PhasePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render(m.course.Name)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	for _, p := range m.course.Phases {
		b.WriteString(m.phaseLine(&p))
		b.WriteString("\n")
		if p.ID == m.current && m.terminal == "" && p.DistanceTicks > 0 {
			b.WriteString(m.progressBar(p.DistanceTicks))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.terminalLine())

	if m.fault != "" {
		b.WriteString("\n\n")
		b.WriteString(StyleFault.Render("fault: " + m.fault))
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

// phaseLine renders one course row with its status icon.
func (m PhasePaneModel) phaseLine(p *mission.Phase) string {
	label := fmt.Sprintf("%s (%s)", p.ID, p.Kind)
	if len(label) > m.width-8 && m.width > 11 {
		label = label[:m.width-11] + "..."
	}

	if cause, ok := m.causes[p.ID]; ok {
		return fmt.Sprintf("%s %s  %s", StyleDone.Render("✓"), label, StylePending.Render(cause))
	}
	if p.ID == m.current && m.terminal == "" {
		return fmt.Sprintf("%s %s  %s", StyleActive.Render("●"), StyleActive.Render(label),
			StylePending.Render(fmt.Sprintf("%d ticks", m.ticks)))
	}
	return fmt.Sprintf("%s %s", StylePending.Render("○"), StylePending.Render(label))
}

// progressBar renders the active leg's encoder advance against its
// distance guard.
func (m PhasePaneModel) progressBar(distance int64) string {
	barWidth := min(m.width-16, 30)
	if barWidth < 4 {
		return ""
	}

	adv := min(m.advance, distance)
	filled := int(adv * int64(barWidth) / distance)

	bar := StyleDone.Render(strings.Repeat("=", filled))
	bar += StylePending.Render(strings.Repeat(".", barWidth-filled))
	return fmt.Sprintf("  [%s] %d/%d", bar, m.advance, distance)
}

// terminalLine renders the FINISHED / FAULTED row.
func (m PhasePaneModel) terminalLine() string {
	switch m.terminal {
	case mission.FinishedState:
		return StyleDone.Render("✓ " + mission.FinishedState)
	case mission.FaultedState:
		return StyleFault.Render("✗ " + mission.FaultedState)
	default:
		return StylePending.Render("○ " + mission.FinishedState)
	}
}

// SetSize updates the pane dimensions.
func (m *PhasePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *PhasePaneModel) SetFocused(focused bool) {
	m.focused = focused
}
