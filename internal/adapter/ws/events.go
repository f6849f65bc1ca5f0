package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventQueryStarted   = "query.started"
	EventQueryCompleted = "query.completed"
	EventTurnAppended   = "conversation.turn"
)

// QueryStartedEvent is broadcast when a query enters the controller loop.
type QueryStartedEvent struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// QueryCompletedEvent is broadcast when a query reaches a terminal state.
type QueryCompletedEvent struct {
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	RoundTrips int    `json:"round_trips"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
