package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#A78BFA")
	greenColor   = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")
	textColor    = lipgloss.Color("#F9FAFB")
	borderColor  = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 2)

	labelStyle   = lipgloss.NewStyle().Foreground(mutedColor).Width(12)
	valueStyle   = lipgloss.NewStyle().Foreground(textColor)
	intentStyle  = lipgloss.NewStyle().Bold(true).Foreground(greenColor)
	messageStyle = lipgloss.NewStyle().Foreground(textColor).Italic(true)
	busyStyle    = lipgloss.NewStyle().Bold(true).Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	okStyle      = lipgloss.NewStyle().Foreground(greenColor)
	helpStyle    = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor).
			Background(primaryColor).
			Padding(0, 2)
)
