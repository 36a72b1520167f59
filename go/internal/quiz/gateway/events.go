package gateway

import (
	"encoding/json"
	"time"
)

// Event is one message pushed to a WebSocket client.
type Event struct {
	Type      EventType       `json:"type"`
	RoomCode  string          `json:"room_code,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type EventType string

const (
	// EventTypeSnapshot carries a models.Snapshot. It is always the first event
	// on a connection and replaces whatever the client held.
	EventTypeSnapshot EventType = "snapshot"
	// EventTypeChange carries a realtime.Change envelope.
	EventTypeChange EventType = "change"
)

// ClientMessage is what clients may send.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
}

type ClientMessageType string

// ClientHeartbeat tells the server the player is still looking at the room.
const ClientHeartbeat ClientMessageType = "heartbeat"
