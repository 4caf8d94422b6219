package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

const (
	humeSynthesizePath = "/v0/evi/synthesize"
	humeDefaultVoice   = "default"
)

var errNoHumeAudio = errors.New("hume returned no audio url")

type humeSynthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type humeSynthesizeResponse struct {
	AudioURL string `json:"audio_url"`
	URL      string `json:"url"`
}

// Synthesize asks Hume to voice text and returns the hosted audio URL.
func (c *HumeClient) Synthesize(ctx context.Context, text string) (string, error) {
	if c.apiKey == "" {
		return "", errMissingHumeKey
	}

	payload, err := json.Marshal(humeSynthesizeRequest{Text: text, Voice: humeDefaultVoice})
	if err != nil {
		return "", fmt.Errorf("encode hume synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+humeSynthesizePath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(httpReq)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", upstreamError(status, body)
	}

	var out humeSynthesizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode hume synthesis response: %w", err)
	}
	url := out.AudioURL
	if url == "" {
		url = out.URL
	}
	if url == "" {
		return "", errNoHumeAudio
	}

	c.logger.Debug("synthesized speech", zap.Int("chars", len(text)))
	return url, nil
}
