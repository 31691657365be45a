package monitor

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case TickMsg:
		return m, tea.Batch(pollStats(m.Client), tickCmd())
	case StatsUpdateMsg:
		return m.handleStatsUpdate(msg)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "r", "R":
		return m, pollStats(m.Client)
	}
	return m, nil
}

// handleStatsUpdate processes a poll result
func (m Model) handleStatsUpdate(msg StatsUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		m.Err = msg.Err
		return m, nil
	}

	m.Connected = true
	m.Err = nil
	m.Stats = msg.Stats
	m.LastUpdated = time.Now()
	return m, nil
}
