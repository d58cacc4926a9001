package chat

// EventType names a change pushed to live listeners of a session.
type EventType string

const (
	EventMessageAdded      EventType = "message.added"
	EventMessageRemoved    EventType = "message.removed"
	EventVisibilityChanged EventType = "visibility.changed"
)

// Event describes a single transcript or visibility change.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Message   *Message  `json:"message,omitempty"`
	Visible   *bool     `json:"visible,omitempty"`
}
