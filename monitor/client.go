// Package monitor is a terminal dashboard that polls the API's stats
// endpoint and renders the index counts and queue depths.
package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"artiller/types"
)

// StatsClient is a thin HTTP client for the stats endpoint
type StatsClient struct {
	baseURL string
	client  *http.Client
}

// NewStatsClient creates a new stats client
func NewStatsClient(baseURL string) *StatsClient {
	return &StatsClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetStats fetches the current stats from the API server
func (c *StatsClient) GetStats() (*types.StatsResponse, error) {
	resp, err := c.client.Get(c.baseURL + "/api/stats")
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var stats types.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &stats, nil
}
