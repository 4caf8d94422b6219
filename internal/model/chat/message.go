package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem exists for frontend status lines only; the store rejects it.
	RoleSystem Role = "system"
)

// Storable reports whether the role may be appended to a transcript.
func (r Role) Storable() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable turn of a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
