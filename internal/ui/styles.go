package ui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	selected  lipgloss.Style
	important lipgloss.Style
	section   lipgloss.Style
	dim       lipgloss.Style
	status    lipgloss.Style
}

type palette struct {
	accent, important, muted lipgloss.TerminalColor
}

func paletteFor(theme string) palette {
	switch theme {
	case "dark":
		return palette{
			accent:    lipgloss.Color("111"),
			important: lipgloss.Color("214"),
			muted:     lipgloss.Color("243"),
		}
	case "light":
		return palette{
			accent:    lipgloss.Color("25"),
			important: lipgloss.Color("166"),
			muted:     lipgloss.Color("245"),
		}
	default:
		return palette{
			accent:    lipgloss.AdaptiveColor{Light: "25", Dark: "111"},
			important: lipgloss.AdaptiveColor{Light: "166", Dark: "214"},
			muted:     lipgloss.AdaptiveColor{Light: "245", Dark: "243"},
		}
	}
}

func newStyles(theme string) styles {
	p := paletteFor(theme)
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		tab:       lipgloss.NewStyle().Padding(0, 1).Foreground(p.muted),
		activeTab: lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true).Foreground(p.accent),
		selected:  lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		important: lipgloss.NewStyle().Foreground(p.important),
		section:   lipgloss.NewStyle().Bold(true).Foreground(p.muted).MarginTop(1),
		dim:       lipgloss.NewStyle().Foreground(p.muted),
		status:    lipgloss.NewStyle().Italic(true),
	}
}
