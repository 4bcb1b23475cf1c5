package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/slipway-dev/slipway/types"
)

// NodeMsg is one graph node status transition.
type NodeMsg struct {
	Node   string
	Status types.JobStatus
}

// DoneMsg ends the progress view with the run outcome.
type DoneMsg struct {
	Outcome types.OutcomeStatus
	Message string
}

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// ProgressModel is the Bubble Tea model for the release progress view.
type ProgressModel struct {
	version  types.Version
	order    []string
	statuses map[string]types.JobStatus
	events   <-chan tea.Msg
	spinner  spinner.Model
	outcome  *DoneMsg
	quitting bool
}

// NewProgressModel creates a progress model for the given node IDs,
// displayed in the given order. events carries NodeMsg and DoneMsg values.
func NewProgressModel(version types.Version, order []string, events <-chan tea.Msg) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = WarningStyle

	statuses := make(map[string]types.JobStatus, len(order))
	for _, id := range order {
		statuses[id] = types.StatusPending
	}
	return ProgressModel{
		version:  version,
		order:    order,
		statuses: statuses,
		events:   events,
		spinner:  s,
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case NodeMsg:
		m.statuses[msg.Node] = msg.Status
		return m, waitForEvent(m.events)

	case DoneMsg:
		m.outcome = &msg
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Releasing %s", m.version)))
	b.WriteString("\n\n")

	for _, id := range m.order {
		status := m.statuses[id]
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			m.statusIcon(status),
			LabelStyle.Render(id),
			StateStyle(string(status)).Render(string(status))))
	}

	if m.outcome != nil {
		b.WriteString("\n")
		style := SuccessStyle
		if m.outcome.Outcome != types.OutcomeSuccess {
			style = ErrorStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("%s: %s", m.outcome.Outcome, m.outcome.Message)))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to quit"))
	return b.String()
}

func (m ProgressModel) statusIcon(status types.JobStatus) string {
	switch status {
	case types.StatusRunning:
		return m.spinner.View()
	case types.StatusSuccess:
		return SuccessStyle.Render("✓")
	case types.StatusFailure:
		return ErrorStyle.Render("✗")
	case types.StatusSkipped:
		return LabelStyle.Render("-")
	default:
		return LabelStyle.Render("·")
	}
}

// RunProgress runs the progress view until a DoneMsg arrives or the user
// quits. The caller keeps feeding events while the pipeline runs.
func RunProgress(version types.Version, order []string, events <-chan tea.Msg) error {
	p := tea.NewProgram(NewProgressModel(version, order, events))
	_, err := p.Run()
	return err
}
