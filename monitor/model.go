package monitor

import (
	"time"

	"artiller/types"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the dashboard state
type Model struct {
	Client *StatsClient

	// Latest stats synced from the server
	Stats       *types.StatsResponse
	LastUpdated time.Time
	Err         error

	// Connection status
	Connected bool
}

// NewModel creates a new dashboard model
func NewModel(serverURL string) Model {
	return Model{
		Client: NewStatsClient(serverURL),
	}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	// Start polling immediately
	return tea.Batch(
		pollStats(m.Client),
		tickCmd(),
	)
}
