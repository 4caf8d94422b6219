package chat

// Session is a point-in-time copy of one conversation.
type Session struct {
	ID       string    `json:"-"`
	Messages []Message `json:"messages"`
}

// AppendResult tells callers whether an append started a new conversation.
// Prior holds a copy of the transcript as it stood before Message was added.
type AppendResult struct {
	Created bool
	Message Message
	Prior   []Message
}
