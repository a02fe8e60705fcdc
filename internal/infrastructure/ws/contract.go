package ws

import (
	"encoding/json"
	"errors"
)

var (
	ErrNotConnected = errors.New("websocket not connected")
	ErrMalformed    = errors.New("malformed envelope")
	ErrUnknownType  = errors.New("unknown envelope type")
)

// Envelope is the frame exchanged with the chat server in both directions.
// RoomID is set on room-scoped traffic only.
type Envelope struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// outbound carries a command payload without encoding it twice.
type outbound struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// The server still emits a few legacy names for the same events.
var aliases = map[string]string{
	"game:state_update": "game:state",
	"private:request":   "private:request_incoming",
	"game:round_end":    "game:end",
}
