// Package monitor streams responder events to websocket subscribers.
package monitor

import "time"

// EventType identifies the kind of responder event.
type EventType string

const (
	EventSessionOpened EventType = "session_opened"
	EventSessionClosed EventType = "session_closed"
	EventSync          EventType = "sync"
	EventDecodeError   EventType = "decode_error"
	EventIgnored       EventType = "ignored"
)

// Event is the JSON structure pushed to every subscriber.
type Event struct {
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
	Peer      string    `json:"peer,omitempty"`       // source address of the datagram
	SessionID uint32    `json:"session_id,omitempty"` // peer-assigned ssrc
	Name      string    `json:"name,omitempty"`       // peer name on session_opened
	Command   string    `json:"command,omitempty"`    // two-letter code on ignored
	Count     uint8     `json:"count"`                // inbound sync step on sync
	OffsetUS  uint64    `json:"offset_us,omitempty"`  // timestamp2 sent on sync
	Error     string    `json:"error,omitempty"`
	Sessions  int       `json:"sessions"` // active sessions after the event
}
