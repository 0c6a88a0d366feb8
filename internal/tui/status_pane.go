package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/LucaSlade/ME405-Romulus/internal/events"
	"github.com/LucaSlade/ME405-Romulus/internal/tasks"
)

// StatusPaneModel shows the latest status share of every subsystem
// task, one row per share, refreshed from each snapshot frame.
type StatusPaneModel struct {
	snap    events.SnapshotEvent
	seen    bool
	width   int
	height  int
	focused bool
}

// NewStatusPaneModel creates a new status pane model.
func NewStatusPaneModel() StatusPaneModel {
	return StatusPaneModel{}
}

// Apply replaces the displayed readings with a snapshot frame.
func (m *StatusPaneModel) Apply(snap events.SnapshotEvent) {
	m.snap = snap
	m.seen = true
}

// View renders the status pane.
func (m StatusPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Subsystems")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if !m.seen {
		b.WriteString(StylePending.Render("Waiting for telemetry..."))
	} else {
		s := m.snap
		b.WriteString(m.row("line", fmt.Sprintf("%s  pos=%+.2f  %s",
			stateStyle(s.Line.State.String()).Render(s.Line.State.String()),
			s.Line.Position, detectedWord(s.Line.Detected))))
		b.WriteString(m.row("heading", fmt.Sprintf("%s  %.1f° -> %.1f°  err=%+.1f°",
			stateStyle(s.Heading.State.String()).Render(s.Heading.State.String()),
			s.Heading.Filtered, s.Heading.Target, s.Heading.Error)))
		b.WriteString(m.row("motor", motorValue(s.Motor)))
		b.WriteString(m.row("command", fmt.Sprintf("L=%+.1f R=%+.1f", s.Command.Left, s.Command.Right)))
		b.WriteString(m.row("velocity", fmt.Sprintf("L=%.0f R=%.0f counts/s", s.Velocity.Left, s.Velocity.Right)))
		b.WriteString(m.row("encoders", fmt.Sprintf("L=%d R=%d", s.Encoders.Left, s.Encoders.Right)))
		b.WriteString(m.row("imu", imuValue(s.IMU)))
		b.WriteString(m.row("bump", fmt.Sprintf("%s  %d events",
			stateStyle(s.Bump.State.String()).Render(s.Bump.State.String()), s.Bump.Events)))
		b.WriteString(m.row("mission", fmt.Sprintf("retries=%d bumps=%d", s.Retries, s.Bumps)))
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

// row renders one labeled reading.
func (m StatusPaneModel) row(label, value string) string {
	return fmt.Sprintf("%s %s\n", StyleLabel.Render(fmt.Sprintf("%-9s", label)), value)
}

// SetSize updates the pane dimensions.
func (m *StatusPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *StatusPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

// stateStyle picks the style for a task state word.
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "fault", "lost", "triggered":
		return StyleFault
	case "idle":
		return StylePending
	default:
		return StyleActive
	}
}

func detectedWord(detected bool) string {
	if detected {
		return StyleDone.Render("detected")
	}
	return StylePending.Render("no line")
}

func motorValue(s tasks.MotorStatus) string {
	value := fmt.Sprintf("%s  L=%+.1f R=%+.1f",
		stateStyle(s.State.String()).Render(s.State.String()),
		s.Applied.Left, s.Applied.Right)
	if s.Reason != "" {
		value += "  " + StyleFault.Render(s.Reason)
	}
	return value
}

func imuValue(s tasks.IMUSample) string {
	if !s.Ready {
		return StylePending.Render("calibrating")
	}
	return fmt.Sprintf("%s  heading=%.1f°  rate=%+.1f°/s", StyleDone.Render("ready"), s.Heading, s.Rate)
}
