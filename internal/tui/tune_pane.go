package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/LucaSlade/ME405-Romulus/internal/config"
)

// TunePaneModel manages the controller tuning form overlay.
type TunePaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget  string
	lineKp      string
	lineKi      string
	lineKd      string
	headingKp   string
	headingKi   string
	headingKd   string
	crawlEffort string
}

// NewTunePaneModel creates a new tuning pane.
func NewTunePaneModel(cfg *config.Config, globalPath, projectPath string) TunePaneModel {
	m := TunePaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
		visible:     false,
		saved:       false,

		// Initialize form field values from config
		saveTarget:  "project",
		lineKp:      formatGain(cfg.Line.PID.Kp),
		lineKi:      formatGain(cfg.Line.PID.Ki),
		lineKd:      formatGain(cfg.Line.PID.Kd),
		headingKp:   formatGain(cfg.Heading.PID.Kp),
		headingKi:   formatGain(cfg.Heading.PID.Ki),
		headingKd:   formatGain(cfg.Heading.PID.Kd),
		crawlEffort: formatGain(cfg.Mission.LostCrawlEffort),
	}

	m.buildForm()
	return m
}

// buildForm constructs the Huh form with all tuning fields.
func (m *TunePaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Project (./romulus.yaml)", "project"),
					huh.NewOption("Global (~/.config/romulus/config.yaml)", "global"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("lineKp").
				Title("Line Kp").
				Value(&m.lineKp).
				Validate(validGain),

			huh.NewInput().
				Key("lineKi").
				Title("Line Ki").
				Value(&m.lineKi).
				Validate(validGain),

			huh.NewInput().
				Key("lineKd").
				Title("Line Kd").
				Value(&m.lineKd).
				Validate(validGain),
		).Title("Line Follow Gains"),

		huh.NewGroup(
			huh.NewInput().
				Key("headingKp").
				Title("Heading Kp").
				Value(&m.headingKp).
				Validate(validGain),

			huh.NewInput().
				Key("headingKi").
				Title("Heading Ki").
				Value(&m.headingKi).
				Validate(validGain),

			huh.NewInput().
				Key("headingKd").
				Title("Heading Kd").
				Value(&m.headingKd).
				Validate(validGain),
		).Title("Heading Hold Gains"),

		huh.NewGroup(
			huh.NewInput().
				Key("crawlEffort").
				Title("Lost-Line Crawl Effort").
				Value(&m.crawlEffort).
				Validate(validGain),
		).Title("Mission"),
	)
}

// formatGain renders a gain for editing.
func formatGain(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// validGain is the form validator for numeric fields.
func validGain(s string) error {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	return nil
}

// parseGain converts an already-validated field back to a float.
func parseGain(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

// Init initializes the tuning pane.
func (m TunePaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the tuning pane.
func (m TunePaneModel) Update(msg tea.Msg) (TunePaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			// Cancel without saving
			m.visible = false
			m.saved = false
			return m, nil
		}
	}

	// Delegate to form
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	// Check if form is completed
	if m.form.State == huh.StateCompleted {
		// Copy form values back to config
		m.applyFormToConfig()

		// Determine save path
		targetPath := m.projectPath
		if m.saveTarget == "global" {
			targetPath = m.globalPath
		}

		// Save config
		if err := config.Save(m.config, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
		}

		// Hide form after successful save
		if m.saved {
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config struct.
func (m *TunePaneModel) applyFormToConfig() {
	m.config.Line.PID.Kp = parseGain(m.lineKp, m.config.Line.PID.Kp)
	m.config.Line.PID.Ki = parseGain(m.lineKi, m.config.Line.PID.Ki)
	m.config.Line.PID.Kd = parseGain(m.lineKd, m.config.Line.PID.Kd)

	m.config.Heading.PID.Kp = parseGain(m.headingKp, m.config.Heading.PID.Kp)
	m.config.Heading.PID.Ki = parseGain(m.headingKi, m.config.Heading.PID.Ki)
	m.config.Heading.PID.Kd = parseGain(m.headingKd, m.config.Heading.PID.Kd)

	m.config.Mission.LostCrawlEffort = parseGain(m.crawlEffort, m.config.Mission.LostCrawlEffort)
}

// View renders the tuning pane.
func (m TunePaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string

	// Show saved message if just saved
	if m.saved && m.form.State == huh.StateCompleted {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true).
			Render("✓ Tuning saved successfully!")
	} else if m.err != nil {
		// Show error if save failed
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		// Render form
		content = m.form.View()
	}

	// Wrap in styled border
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Tuning")

	body := style.Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

// SetSize updates the dimensions of the tuning pane.
func (m *TunePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the tuning pane.
func (m *TunePaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	// Reset form state when showing
	if v && m.form != nil {
		// Rebuild form to reset state
		m.buildForm()
	}
}

// IsVisible returns whether the tuning pane is currently visible.
func (m TunePaneModel) IsVisible() bool {
	return m.visible
}
