package planapi

import "time"

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20

	planPath    = "/api/plan"
	historyPath = "/api/history"
	healthPath  = "/health"
)

// Config is planning backend client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

type planRequest struct {
	Goal      string `json:"goal"`
	UserEmail string `json:"user_email,omitempty"`
}

// Health is the backend diagnostics payload.
type Health struct {
	Status      string         `json:"status"`
	Timestamp   float64        `json:"timestamp"`
	Diagnostics map[string]any `json:"diagnostics"`
}
