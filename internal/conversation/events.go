package conversation

import (
	"strings"
	"time"
)

// EventKind distinguishes typed text from structured UI selections
// (calendar taps, button presses). Both feed the same transitions.
type EventKind string

const (
	KindMessage   EventKind = "message"
	KindSelection EventKind = "selection"
)

// Event is one inbound client action, whatever channel it came from.
type Event struct {
	ClientID  string    `json:"client_id"`
	Kind      EventKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Input returns the value the flow should interpret: the structured
// payload when present, the typed text otherwise.
func (e Event) Input() string {
	if e.Kind == KindSelection && strings.TrimSpace(e.Payload) != "" {
		return strings.TrimSpace(e.Payload)
	}
	return strings.TrimSpace(e.Text)
}

// Reply is what the assistant sends back for one handled event.
type Reply struct {
	Text    string   `json:"text"`
	Buttons []string `json:"buttons,omitempty"`
}
