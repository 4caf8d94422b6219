package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
)

const (
	filenamePrefix = "aura_conversations_"
	filenameLayout = "20060102_150405"
)

var csvHeader = []string{"Session ID (Anonymized)", "Message Number", "Role", "Content", "Timestamp"}

// Conversation is the anonymized view of one session.
type Conversation struct {
	SessionHash string         `json:"session_id_hash"`
	Messages    []chat.Message `json:"messages"`
}

// MarshalJSON adds message_count next to the messages.
func (c Conversation) MarshalJSON() ([]byte, error) {
	messages := make([]exportedMessage, 0, len(c.Messages))
	for _, msg := range c.Messages {
		messages = append(messages, exportedMessage{
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: formatTimestamp(msg.Timestamp),
		})
	}
	return json.Marshal(struct {
		SessionHash  string            `json:"session_id_hash"`
		MessageCount int               `json:"message_count"`
		Messages     []exportedMessage `json:"messages"`
	}{
		SessionHash:  c.SessionHash,
		MessageCount: len(c.Messages),
		Messages:     messages,
	})
}

type exportedMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Document is the top-level JSON export.
type Document struct {
	ExportTimestamp    string         `json:"export_timestamp"`
	TotalConversations int            `json:"total_conversations"`
	Conversations      []Conversation `json:"conversations"`
}

// NewView anonymizes a snapshot, keeping snapshot and insertion order.
func NewView(sessions []chat.Session) []Conversation {
	conversations := make([]Conversation, 0, len(sessions))
	for _, session := range sessions {
		conversations = append(conversations, Conversation{
			SessionHash: Anonymize(session.ID),
			Messages:    session.Messages,
		})
	}
	return conversations
}

// EncodeCSV writes one row per message with RFC 4180 quoting.
func EncodeCSV(w io.Writer, conversations []Conversation) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, conv := range conversations {
		for i, msg := range conv.Messages {
			record := []string{
				conv.SessionHash,
				strconv.Itoa(i + 1),
				string(msg.Role),
				msg.Content,
				formatTimestamp(msg.Timestamp),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// EncodeJSON writes the indented export document stamped with generatedAt.
func EncodeJSON(w io.Writer, conversations []Conversation, generatedAt time.Time) error {
	if conversations == nil {
		conversations = []Conversation{}
	}
	doc := Document{
		ExportTimestamp:    formatTimestamp(generatedAt),
		TotalConversations: len(conversations),
		Conversations:      conversations,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

// Filename builds aura_conversations_<YYYYMMDD>_<HHMMSS>.<ext> from the generation time.
func Filename(generatedAt time.Time, ext string) string {
	return filenamePrefix + generatedAt.UTC().Format(filenameLayout) + "." + ext
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
