package ui

import "github.com/charmbracelet/lipgloss"

var (
	cyan    = lipgloss.Color("#00D7FF")
	magenta = lipgloss.Color("#D75FFF")
	green   = lipgloss.Color("#5FFF87")
	yellow  = lipgloss.Color("#FFD75F")
	red     = lipgloss.Color("#FF5F5F")
	dim     = lipgloss.Color("#8A8A8A")
)

type styles struct {
	label     lipgloss.Style
	value     lipgloss.Style
	success   lipgloss.Style
	warning   lipgloss.Style
	failure   lipgloss.Style
	highlight lipgloss.Style
	muted     lipgloss.Style
	header    lipgloss.Style
	panel     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		label:     r.NewStyle().Foreground(cyan).Bold(true),
		value:     r.NewStyle().Foreground(yellow),
		success:   r.NewStyle().Foreground(green).Bold(true),
		warning:   r.NewStyle().Foreground(yellow),
		failure:   r.NewStyle().Foreground(red).Bold(true),
		highlight: r.NewStyle().Foreground(magenta).Bold(true),
		muted:     r.NewStyle().Foreground(dim),
		header:    r.NewStyle().Foreground(magenta).Bold(true).Underline(true),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Padding(0, 1),
	}
}
