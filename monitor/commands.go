package monitor

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// pollInterval is how often the dashboard refreshes.
const pollInterval = 2 * time.Second

// pollStats creates a command to poll the stats endpoint
func pollStats(client *StatsClient) tea.Cmd {
	return func() tea.Msg {
		stats, err := client.GetStats()
		return StatsUpdateMsg{
			Stats: stats,
			Err:   err,
		}
	}
}

// tickCmd creates a command that ticks to trigger the next poll
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
