package ws

import "encoding/json"

// Inbound event names (client -> server). Outbound names live in the room
// package, which owns the broadcast side of the protocol.
const (
	EventPlayersToggle = "players/toggle"
	EventFilterChange  = "filter/change"
	EventWheelSpin     = "wheel/spin"
	EventWheelBan      = "wheel/ban"
	EventWheelUnban    = "wheel/unban"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// playerRef and itemRef are the inbound payload shapes that reference an
// entity by id.
type playerRef struct {
	ID string `json:"id"`
}

type itemRef struct {
	ID string `json:"id"`
}
