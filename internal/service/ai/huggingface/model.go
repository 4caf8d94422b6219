// Package huggingface adapts the Hugging Face text-generation Inference API to
// the eino chat model interface. The endpoint takes a flat prompt, so the
// conversation is rendered as "Role: content" lines.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// DefaultBaseURL is the hosted Inference API.
const DefaultBaseURL = "https://api-inference.huggingface.co"

// historyWindow is how many prior turns make it into the flat prompt.
const historyWindow = 5

const errorDetailLimit = 200

// Config mirrors the eino-ext model configs.
type Config struct {
	// APIKey is sent as a bearer token when set. Local TGI servers need none.
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	MaxTokens   *int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// ChatModel calls POST {BaseURL}/models/{Model}.
type ChatModel struct {
	endpoint    string
	apiKey      string
	temperature float32
	maxTokens   int
	client      *http.Client
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// NewChatModel validates cfg and fills the Inference API defaults.
func NewChatModel(_ context.Context, cfg *Config) (*ChatModel, error) {
	if cfg == nil {
		return nil, errors.New("huggingface: config is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("huggingface: model is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	m := &ChatModel{
		endpoint:    baseURL + "/models/" + cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: 0.7,
		maxTokens:   1024,
		client:      client,
	}
	if cfg.Temperature != nil {
		m.temperature = *cfg.Temperature
	}
	if cfg.MaxTokens != nil && *cfg.MaxTokens > 0 {
		m.maxTokens = *cfg.MaxTokens
	}
	return m, nil
}

type generateRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters generateParams `json:"parameters"`
}

type generateParams struct {
	Temperature    float32 `json:"temperature"`
	MaxNewTokens   int     `json:"max_new_tokens"`
	ReturnFullText bool    `json:"return_full_text"`
}

// Generate renders input as a flat prompt and returns the generated text.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: &m.temperature,
		MaxTokens:   &m.maxTokens,
	}, opts...)

	payload := generateRequest{
		Inputs: BuildPrompt(input),
		Parameters: generateParams{
			Temperature:  *options.Temperature,
			MaxNewTokens: *options.MaxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("huggingface: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("huggingface: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("huggingface: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := string(raw)
		if len(detail) > errorDetailLimit {
			detail = detail[:errorDetailLimit]
		}
		return nil, fmt.Errorf("huggingface: status %d: %s", resp.StatusCode, detail)
	}

	text, err := parseGenerated(raw)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

// Stream has no incremental form on this endpoint; it yields the whole reply once.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BuildPrompt lays out system text, the last few turns, and the final user
// message, ending with an open "Assistant:" cue.
func BuildPrompt(input []*schema.Message) string {
	var system []string
	var turns []*schema.Message
	for _, msg := range input {
		if msg == nil {
			continue
		}
		if msg.Role == schema.System {
			if text := strings.TrimSpace(msg.Content); text != "" {
				system = append(system, text)
			}
			continue
		}
		turns = append(turns, msg)
	}

	query := ""
	if n := len(turns); n > 0 && turns[n-1].Role == schema.User {
		query = turns[n-1].Content
		turns = turns[:n-1]
	}
	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}

	var b strings.Builder
	if len(system) > 0 {
		b.WriteString("System: ")
		b.WriteString(strings.Join(system, "\n"))
		b.WriteString("\n\n")
	}
	for _, msg := range turns {
		b.WriteString(roleLabel(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(query)
	b.WriteString("\nAssistant:")
	return b.String()
}

func roleLabel(role schema.RoleType) string {
	name := string(role)
	if name == "" {
		return "User"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

type generatedText struct {
	GeneratedText *string `json:"generated_text"`
	Text          *string `json:"text"`
}

// parseGenerated accepts [{"generated_text": ...}], [{"text": ...}] or
// {"generated_text": ...}.
func parseGenerated(raw []byte) (string, error) {
	var list []generatedText
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 {
			if list[0].GeneratedText != nil {
				return strings.TrimSpace(*list[0].GeneratedText), nil
			}
			if list[0].Text != nil {
				return strings.TrimSpace(*list[0].Text), nil
			}
		}
		return "", errors.New("huggingface: could not parse response")
	}

	var single generatedText
	if err := json.Unmarshal(raw, &single); err == nil && single.GeneratedText != nil {
		return strings.TrimSpace(*single.GeneratedText), nil
	}
	return "", errors.New("huggingface: could not parse response")
}
