// Package tui is the bench dashboard: live mission state, subsystem
// status, scheduler health, and an event log, with a tuning form
// overlay for the controller gains.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LucaSlade/ME405-Romulus/internal/config"
	"github.com/LucaSlade/ME405-Romulus/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PanePhases PaneID = iota
	PaneStatus
	PaneStats
	PaneLog

	paneCount
)

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	phasePane  PhasePaneModel
	statusPane StatusPaneModel
	statsPane  StatsPaneModel
	logPane    LogPaneModel
	tunePane   TunePaneModel

	focusedPane PaneID
	eventSub    <-chan events.Event
	press       func()
	width       int
	height      int
	quitting    bool
	showTuning  bool
}

// New creates the dashboard model. It subscribes to all events on the
// bus; press is invoked for each operator start keystroke and may be
// nil when no button is wired.
func New(bus *events.EventBus, cfg *config.Config, globalPath, projectPath string, press func()) Model {
	return Model{
		phasePane:   NewPhasePaneModel(cfg.Course),
		statusPane:  NewStatusPaneModel(),
		statsPane:   NewStatsPaneModel(),
		logPane:     NewLogPaneModel(),
		tunePane:    NewTunePaneModel(cfg, globalPath, projectPath),
		focusedPane: PanePhases,
		eventSub:    bus.SubscribeAll(256),
		press:       press,
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the
// event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// While the tuning form is open it owns the keyboard.
		if m.showTuning {
			switch msg.String() {
			case KeyTune, "esc":
				m.showTuning = false
				m.tunePane.SetVisible(false)
			default:
				var cmd tea.Cmd
				m.tunePane, cmd = m.tunePane.Update(msg)
				cmds = append(cmds, cmd)

				if !m.tunePane.IsVisible() {
					m.showTuning = false
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyTune:
			m.showTuning = true
			m.tunePane.SetVisible(true)
			cmds = append(cmds, m.tunePane.Init())

		case KeyPress:
			if m.press != nil {
				m.press()
				m.logPane.Append(operatorPressLine())
			}

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PanePhases
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneStatus
			m.updateFocusStates()

		case KeyPane3:
			m.focusedPane = PaneStats
			m.updateFocusStates()

		case KeyPane4:
			m.focusedPane = PaneLog
			m.updateFocusStates()

		default:
			// Scrolling only means anything in the log viewport.
			if m.focusedPane == PaneLog {
				var cmd tea.Cmd
				m.logPane, cmd = m.logPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.tunePane.SetSize(msg.Width, msg.Height)

	case events.SnapshotEvent:
		m.phasePane.Apply(msg)
		m.statusPane.Apply(msg)
		m.statsPane.Apply(msg.Stats)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.Event:
		// Discrete events feed the phase marks and the log.
		if line, ok := formatEvent(msg); ok {
			m.logPane.Append(line)
		}
		m.phasePane.Observe(msg)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showTuning {
		return m.tunePane.View()
	}

	leftPane := m.phasePane.View()
	rightTop := m.statusPane.View()
	rightMid := m.statsPane.View()
	rightBottom := m.logPane.View()

	rightPane := lipgloss.JoinVertical(lipgloss.Left, rightTop, rightMid, rightBottom)
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, HelpView())
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 35) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // reserve 1 line for help bar

	statusHeight := (availableHeight * 40) / 100
	statsHeight := (availableHeight * 25) / 100
	logHeight := availableHeight - statusHeight - statsHeight

	m.phasePane.SetSize(leftWidth, availableHeight)
	m.statusPane.SetSize(rightWidth, statusHeight)
	m.statsPane.SetSize(rightWidth, statsHeight)
	m.logPane.SetSize(rightWidth, logHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.phasePane.SetFocused(m.focusedPane == PanePhases)
	m.statusPane.SetFocused(m.focusedPane == PaneStatus)
	m.statsPane.SetFocused(m.focusedPane == PaneStats)
	m.logPane.SetFocused(m.focusedPane == PaneLog)
}
