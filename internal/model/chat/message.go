package chat

import "time"

// Sender tags who authored a transcript entry.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one transcript entry. Thinking marks the transient placeholder
// shown while a reply is being resolved.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Thinking  bool      `json:"thinking,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
