// Package tui provides the Bubble Tea live progress view for the slipway CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag on release)
//   - TUI shows the same node states the log stream reports
//   - No TUI-exclusive data
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for node names.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(24)

	// ValueStyle for neutral values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for success states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for in-progress states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for failure states.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// StateStyle returns a style based on the node state string.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "success":
		return SuccessStyle
	case "running":
		return WarningStyle
	case "failure":
		return ErrorStyle
	case "skipped", "pending":
		return LabelStyle
	default:
		return ValueStyle
	}
}
