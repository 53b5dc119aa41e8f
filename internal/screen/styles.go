package screen

import "github.com/charmbracelet/lipgloss"

var (
	accent      = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#6b7686")
	destructive = lipgloss.Color("#e53935")
	warning     = lipgloss.Color("#FFC107")
	info        = lipgloss.Color("#2196F3")
)

// Styles holds the lipgloss styles of the scan screen.
type Styles struct {
	Header  lipgloss.Style
	Hint    lipgloss.Style
	Waiting lipgloss.Style
	Status  lipgloss.Style
	Footer  lipgloss.Style
	Dialog  lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(lipgloss.Color("#101F38")).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Hint: lipgloss.NewStyle().
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(accent),

		Waiting: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true).
			PaddingLeft(2),

		Status: lipgloss.NewStyle().
			Foreground(info).
			PaddingLeft(2),

		Footer: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 2),

		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(warning).
			Padding(1, 2),

		Success: lipgloss.NewStyle().Foreground(accent).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(warning).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(info),
	}
}
