package ws

import (
	"encoding/json"
	"time"
)

// Event types published by a migration run.
const (
	EventPhase    = "phase"
	EventProgress = "progress"
	EventReport   = "report"
)

// Event is the structured message sent to WebSocket clients.
type Event struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
	Time time.Time       `json:"time"`
}

// SubscribeMsg is sent by the client on connect to request event replay.
type SubscribeMsg struct {
	Type        string `json:"type"`
	LastEventID uint64 `json:"last_event_id"`
}

// ResetMsg tells the client to fetch the full report instead (requested
// events too old).
type ResetMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
