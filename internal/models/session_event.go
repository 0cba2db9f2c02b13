package models

import "time"

// Session event types.
const (
	EventStatus    = "STATUS"
	EventDiscovery = "DISCOVERY"
	EventTransport = "TRANSPORT"
	EventCommand   = "COMMAND"
	EventError     = "ERROR"
)

// SessionEvent is a single log entry.
type SessionEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // STATUS | DISCOVERY | TRANSPORT | COMMAND | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
