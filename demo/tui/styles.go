package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent  = "#7D56F4"
	colorOK      = "#04B575"
	colorFailed  = "#FF5F5F"
	colorWarning = "#FFB86C"
	colorMuted   = "#626262"
	colorLight   = "#FAFAFA"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorAccent)).
			MarginTop(1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorOK))

	ProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorAccent))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorFailed))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMuted))

	// Result box shown once the reel is downloadable.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorOK)).
			Padding(0, 2)

	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorLight)).
			Background(lipgloss.Color(colorAccent)).
			Padding(0, 1)
)
