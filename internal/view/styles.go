package view

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent  = lipgloss.Color("#7D56F4")
	colorMuted   = lipgloss.Color("#6B6B8D")
	colorText    = lipgloss.Color("#E4E4F0")
	colorRunning = lipgloss.Color("#39D353")
	colorOff     = lipgloss.Color("#8B8B9E")
	colorWarning = lipgloss.Color("#FFAA00")
	colorError   = lipgloss.Color("#FF4D6A")
)

const (
	nameWidth   = 28
	stateWidth  = 15
	cpuWidth    = 8
	buttonWidth = 11
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorAccent).
			Bold(true).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	rowStyle = lipgloss.NewStyle().
			Foreground(colorText)

	buttonStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorAccent)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Padding(1, 2).
			MarginTop(1)

	dialogTitleStyle = lipgloss.NewStyle().
				Foreground(colorError).
				Bold(true)

	okStyle   = lipgloss.NewStyle().Foreground(colorRunning)
	warnStyle = lipgloss.NewStyle().Foreground(colorWarning)
)

func stateStyle(label string) lipgloss.Style {
	switch label {
	case "Running":
		return lipgloss.NewStyle().Foreground(colorRunning)
	case "Off":
		return lipgloss.NewStyle().Foreground(colorOff)
	case "Crashed", "Unknown":
		return lipgloss.NewStyle().Foreground(colorError)
	default:
		return lipgloss.NewStyle().Foreground(colorWarning)
	}
}
