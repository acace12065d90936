package main

import "github.com/charmbracelet/lipgloss"

// styles carries every lipgloss style the client renders with. The palette
// is picked once at startup from the terminal background so text stays
// readable on light terminals too.
type styles struct {
	LogPane   lipgloss.Style
	InputPane lipgloss.Style

	Header  lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Chat    lipgloss.Style
	Turn    lipgloss.Style

	RedCard   lipgloss.Style
	BlackCard lipgloss.Style
}

func newStyles(dark bool) *styles {
	gray := lipgloss.Color("#626262")
	red := lipgloss.Color("#FF6B6B")
	green := lipgloss.Color("#96CEB4")
	yellow := lipgloss.Color("#FFEAA7")
	blue := lipgloss.Color("#45B7D1")
	card := lipgloss.Color("#FFFFFF")
	if !dark {
		red = lipgloss.Color("#C0392B")
		green = lipgloss.Color("#1E8449")
		yellow = lipgloss.Color("#9A7D0A")
		blue = lipgloss.Color("#21618C")
		card = lipgloss.Color("#000000")
	}

	return &styles{
		LogPane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(gray).
			Padding(0, 1),
		InputPane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(0, 1),

		Header:  lipgloss.NewStyle().Bold(true).Foreground(blue),
		Info:    lipgloss.NewStyle().Foreground(gray),
		Success: lipgloss.NewStyle().Foreground(green),
		Warning: lipgloss.NewStyle().Foreground(yellow),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(red),
		Chat:    lipgloss.NewStyle().Foreground(yellow),
		Turn:    lipgloss.NewStyle().Bold(true).Foreground(green),

		RedCard:   lipgloss.NewStyle().Bold(true).Foreground(red),
		BlackCard: lipgloss.NewStyle().Bold(true).Foreground(card),
	}
}
