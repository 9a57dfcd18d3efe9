package output

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("62")  // Purple/blue
	colorSuccess = lipgloss.Color("42")  // Green
	colorError   = lipgloss.Color("196") // Red
	colorMuted   = lipgloss.Color("240") // Dark gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(colorPrimary).
			Padding(0, 1)

	idStyle = lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	uriStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)
