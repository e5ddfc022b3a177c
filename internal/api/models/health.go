package models

import "time"

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status       string    `json:"status"`   // "ok" or "error"
	Database     string    `json:"database"` // "connected" or "disconnected"
	State        string    `json:"state"`
	TrackedStops int       `json:"trackedStops"`
	LastError    string    `json:"lastError,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Error        string    `json:"error,omitempty"`
}
