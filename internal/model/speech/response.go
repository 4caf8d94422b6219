package speech

import "time"

// ASRResponse is the provider-neutral transcription result.
type ASRResponse struct {
	SessionID string    `json:"sessionId,omitempty"`
	Text      string    `json:"text"`
	Duration  int64     `json:"duration,omitempty"` // milliseconds
	Provider  string    `json:"provider"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
