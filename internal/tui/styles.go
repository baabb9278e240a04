package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/metalagman/aletheia/internal/model"
)

var (
	colorPrimary   = lipgloss.Color("99")  // Indigo
	colorSecondary = lipgloss.Color("241") // Gray
	colorSuccess   = lipgloss.Color("42")  // Green
	colorError     = lipgloss.Color("160") // Red
	colorWarning   = lipgloss.Color("214") // Amber
	colorTrace     = lipgloss.Color("75")  // Blue
	colorText      = lipgloss.Color("252")

	styleTitle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleSubtle  = lipgloss.NewStyle().Foreground(colorSecondary)
	styleText    = lipgloss.NewStyle().Foreground(colorText)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	styleSection = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Underline(true)
	styleCursor  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)

	styleHeader = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Padding(0, 1)

	styleInputBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorSecondary).
			Padding(0, 1)

	styleGuidanceBox = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Padding(0, 1)

	styleTraceBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorTrace).
			Padding(0, 1)

	styleTab       = lipgloss.NewStyle().Foreground(colorSecondary).Padding(0, 1)
	styleActiveTab = lipgloss.NewStyle().Foreground(colorText).Background(colorPrimary).Bold(true).Padding(0, 1)
)

var statusStyles = map[model.TaskStatus]lipgloss.Style{
	model.StatusTodo:       lipgloss.NewStyle().Foreground(colorSecondary),
	model.StatusInProgress: lipgloss.NewStyle().Foreground(colorTrace),
	model.StatusCompleted:  lipgloss.NewStyle().Foreground(colorSuccess),
	model.StatusBlocked:    lipgloss.NewStyle().Foreground(colorError),
}

var levelStyles = map[model.LogLevel]lipgloss.Style{
	model.LevelInfo:  lipgloss.NewStyle().Foreground(colorSuccess).Bold(true),
	model.LevelTrace: lipgloss.NewStyle().Foreground(colorPrimary).Bold(true),
	model.LevelDebug: lipgloss.NewStyle().Foreground(colorTrace).Bold(true),
	model.LevelWarn:  lipgloss.NewStyle().Foreground(colorWarning).Bold(true),
}

func statusIcon(s model.TaskStatus) string {
	switch s {
	case model.StatusCompleted:
		return "✓"
	case model.StatusInProgress:
		return "◐"
	case model.StatusBlocked:
		return "✗"
	default:
		return "○"
	}
}
