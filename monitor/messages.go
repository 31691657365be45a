package monitor

import (
	"time"

	"artiller/types"
)

// Messages for the tea program (polling-based)

// StatsUpdateMsg is sent when we receive stats from the API server
type StatsUpdateMsg struct {
	Stats *types.StatsResponse
	Err   error
}

// TickMsg is sent periodically to trigger polling
type TickMsg struct {
	Time time.Time
}
