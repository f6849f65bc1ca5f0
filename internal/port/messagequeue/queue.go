// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Queue is the port interface for publishing query lifecycle events to
// external consumers (billing dashboards, audit pipelines).
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close shuts down the queue connection.
	Close() error
}

// Subject constants for GridSage lifecycle events.
const (
	SubjectQueryStarted   = "gridsage.query.started"
	SubjectQueryCompleted = "gridsage.query.completed"
)

// QueryStartedPayload is published when a query enters the controller loop.
type QueryStartedPayload struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// QueryCompletedPayload is published when the controller reaches a terminal state.
type QueryCompletedPayload struct {
	SessionID  string `json:"session_id"`
	Status     string `json:"status"` // "done" or "failed"
	RoundTrips int    `json:"round_trips"`
	ToolCalls  int    `json:"tool_calls"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}
