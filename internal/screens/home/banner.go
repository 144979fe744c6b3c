package home

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/satprep/internal/ui/theme"
)

const bannerFull = `███████╗ █████╗ ████████╗
██╔════╝██╔══██╗╚══██╔══╝
███████╗███████║   ██║
╚════██║██╔══██║   ██║
███████║██║  ██║   ██║
╚══════╝╚═╝  ╚═╝   ╚═╝`

const bannerCompact = "S · A · T   P · R · E · P"

// contentWidth returns the uniform inner width used for all sections.
func contentWidth(frameWidth int) int {
	return min(max(frameWidth-6, 20), 60)
}

// renderBanner returns the block-letter title, or the compact fallback.
func renderBanner(cw int, compact bool) string {
	style := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true)
	art := bannerFull
	if compact {
		art = bannerCompact
	}
	block := style.Render(art)
	if !compact {
		block += "\n" + theme.Dim.Render("P R A C T I C E")
	}
	return lipgloss.NewStyle().Width(cw).Align(lipgloss.Center).Render(block)
}

// renderStatusBar renders the resume and history line in a bordered box
// matching the content width.
func renderStatusBar(resumable string, sessions int, lastAccuracy float64, cw int) string {
	strong := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true)

	line := theme.Dim.Render("No session in progress")
	if resumable != "" {
		line = strong.Render("In progress: ") + theme.Body.Render(resumable)
	}
	hist := theme.Dim.Render("No sessions yet")
	if sessions > 0 {
		hist = strong.Render(pluralize(sessions, "session")) +
			theme.Dim.Render(" · last ") +
			strong.Render(percent(lastAccuracy))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Width(cw).
		Align(lipgloss.Center).
		Render(line + "\n" + hist)
}
