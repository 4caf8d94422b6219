package export

import "github.com/zhouzirui/aura/backend/internal/model/chat"

// Stats aggregates message counts across every session.
type Stats struct {
	TotalSessions     int `json:"total_sessions"`
	TotalMessages     int `json:"total_messages"`
	UserMessages      int `json:"user_messages"`
	AssistantMessages int `json:"assistant_messages"`
}

// ComputeStats scans a snapshot once. Empty sessions still count as sessions.
func ComputeStats(sessions []chat.Session) Stats {
	stats := Stats{TotalSessions: len(sessions)}
	for _, session := range sessions {
		stats.TotalMessages += len(session.Messages)
		for _, msg := range session.Messages {
			switch msg.Role {
			case chat.RoleUser:
				stats.UserMessages++
			case chat.RoleAssistant:
				stats.AssistantMessages++
			}
		}
	}
	return stats
}
