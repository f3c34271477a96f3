// Package dashboard renders a live terminal view of the intersection
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/anggasct/signalflow"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#666666")).
			Padding(0, 2).
			MarginLeft(2)

	approachStyle = lipgloss.NewStyle().Width(8).Bold(true)

	phaseStyles = map[signalflow.Phase]lipgloss.Style{
		signalflow.PhaseRed:    lipgloss.NewStyle().Width(8).Bold(true).Foreground(lipgloss.Color("#FF0000")),
		signalflow.PhaseYellow: lipgloss.NewStyle().Width(8).Bold(true).Foreground(lipgloss.Color("#FFFF00")),
		signalflow.PhaseGreen:  lipgloss.NewStyle().Width(8).Bold(true).Foreground(lipgloss.Color("#00FF00")),
	}

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	stoppedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

// StateSource supplies signal snapshots; SignalMachine implements it
type StateSource interface {
	State() signalflow.IntersectionState
	Approaches() *signalflow.Approaches
}

// ReadingSource supplies the latest congestion readings; Analyzer implements it
type ReadingSource interface {
	LastReadings() map[signalflow.Approach]signalflow.Reading
}

type keyMap struct {
	Pause key.Binding
	Help  key.Binding
	Quit  key.Binding
}

var keys = keyMap{
	Pause: key.NewBinding(
		key.WithKeys("p", " "),
		key.WithHelp("p", "pause"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Help},
		{k.Quit},
	}
}

type tickMsg time.Time

// Model is the bubbletea model of the dashboard
type Model struct {
	states   StateSource
	readings ReadingSource
	refresh  time.Duration

	bar    progress.Model
	help   help.Model
	keys   keyMap
	width  int
	paused bool

	state   signalflow.IntersectionState
	current map[signalflow.Approach]signalflow.Reading
	now     time.Time
}

// New creates a dashboard refreshing every refresh interval
func New(states StateSource, readings ReadingSource, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}

	m := Model{
		states:   states,
		readings: readings,
		refresh:  refresh,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		help:     help.New(),
		keys:     keys,
	}
	m.sample(time.Now())
	return m
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) sample(now time.Time) {
	m.state = m.states.State()
	if m.readings != nil {
		m.current = m.readings.LastReadings()
	}
	m.now = now
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

// Update handles refresh ticks, resizes and key presses
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		if !m.paused {
			m.sample(time.Time(msg))
		}
		return m, m.tickCmd()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	return m, nil
}

// View renders the intersection
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("signalflow intersection"))
	b.WriteString("\n\n")

	var rows []string
	for _, approach := range m.states.Approaches().All() {
		rows = append(rows, m.renderApproach(approach))
	}
	b.WriteString(boxStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	b.WriteString(helpStyle.Render(m.status()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderApproach(approach signalflow.Approach) string {
	phase := m.state.Phase(approach)
	lamp := phaseStyles[phase].Render(strings.ToUpper(phase.String()))

	reading, ok := m.current[approach]
	if !ok {
		return lipgloss.JoinHorizontal(lipgloss.Top,
			approachStyle.Render(string(approach)), lamp, dimStyle.Render("no reading"))
	}

	details := fmt.Sprintf(" %3d veh  avg %5.1f  %3.0f%%", reading.Count, reading.MovingAverage, reading.Level*100)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		approachStyle.Render(string(approach)), lamp, m.bar.ViewAs(reading.Level), details)
}

func (m Model) status() string {
	if m.state.Stopped {
		return stoppedStyle.Render("STOPPED: all approaches red")
	}

	elapsed := m.now.Sub(m.state.LastChange)
	remaining := m.state.GreenDuration - elapsed
	if remaining < 0 || m.state.Phase(m.state.Active) != signalflow.PhaseGreen {
		remaining = 0
	}

	status := fmt.Sprintf("active %s  mode %s  green %s  remaining %s",
		m.state.Active, m.state.Mode, m.state.GreenDuration, remaining.Truncate(time.Second))
	if m.paused {
		status += "  [paused]"
	}
	return status
}

// Run shows the dashboard until the user quits
func Run(states StateSource, readings ReadingSource, refresh time.Duration) error {
	p := tea.NewProgram(New(states, readings, refresh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
