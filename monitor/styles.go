package monitor

import "github.com/charmbracelet/lipgloss"

// The dashboard keeps to a small palette: teal for healthy state, amber for
// trouble, grey for chrome.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2DD4BF")).
			MarginTop(1).
			MarginBottom(1)

	okStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2DD4BF"))
	badStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	sectionStyle = lipgloss.NewStyle().
			Underline(true).
			Foreground(lipgloss.Color("#E5E7EB"))

	labelStyle = lipgloss.NewStyle().Width(15).Foreground(lipgloss.Color("#9CA3AF"))
	valueStyle = lipgloss.NewStyle().Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 2)
)
