package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/config"
	speechmodel "github.com/zhouzirui/aura/backend/internal/model/speech"
)

const (
	humeBatchPath = "/v0/batch/transcriptions"
	humeJobsPath  = "/v0/jobs"

	humeMaxPolls     = 10
	errorDetailLimit = 200
)

var errNoHumeTranscript = errors.New("hume returned no transcript for the clip")

// HumeClient transcribes clips through Hume's HTTP API.
type HumeClient struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewHumeClient builds a client for cfg.
func NewHumeClient(cfg config.SpeechConfig, logger *zap.Logger) *HumeClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HumeClient{
		apiKey:       cfg.HumeAPIKey,
		baseURL:      strings.TrimRight(cfg.HumeAPIURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: time.Second,
		logger:       logger.Named("hume"),
	}
}

type humeTranscript struct {
	Transcription string `json:"transcription"`
	Text          string `json:"text"`
	Transcript    string `json:"transcript"`

	JobID  string `json:"job_id"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h humeTranscript) value() string {
	for _, candidate := range []string{h.Transcription, h.Text, h.Transcript} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func (h humeTranscript) job() string {
	if h.JobID != "" {
		return h.JobID
	}
	return h.ID
}

// Recognize tries the batch endpoint first and falls back to the jobs API
// when the batch endpoint answers with a non-2xx status or no text.
func (c *HumeClient) Recognize(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	if c.apiKey == "" {
		return nil, errMissingHumeKey
	}

	started := time.Now()
	text, err := c.batch(ctx, req)
	if err != nil {
		return nil, err
	}
	if text == "" {
		c.logger.Info("batch transcription produced no text, trying jobs api")
		if text, err = c.viaJob(ctx, req); err != nil {
			return nil, err
		}
	}

	return &speechmodel.ASRResponse{
		SessionID: req.SessionID,
		Text:      text,
		Duration:  time.Since(started).Milliseconds(),
		Provider:  config.STTProviderHume,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (c *HumeClient) batch(ctx context.Context, req *speechmodel.ASRRequest) (string, error) {
	status, body, err := c.postAudio(ctx, humeBatchPath, req)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		c.logger.Warn("batch transcription rejected", zap.Error(upstreamError(status, body)))
		return "", nil
	}

	var decoded humeTranscript
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode hume response: %w", err)
	}
	return decoded.value(), nil
}

func (c *HumeClient) viaJob(ctx context.Context, req *speechmodel.ASRRequest) (string, error) {
	status, body, err := c.postAudio(ctx, humeJobsPath, req)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", upstreamError(status, body)
	}

	var created humeTranscript
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode hume job: %w", err)
	}
	jobID := created.job()
	if jobID == "" {
		return "", errNoHumeTranscript
	}

	for attempt := 0; attempt < humeMaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		job, err := c.getJob(ctx, jobID)
		if err != nil {
			return "", err
		}
		switch job.Status {
		case "completed":
			if text := job.value(); text != "" {
				return text, nil
			}
			return "", errNoHumeTranscript
		case "failed":
			return "", fmt.Errorf("hume job %s failed", jobID)
		}
	}
	return "", fmt.Errorf("hume job %s did not complete after %d polls", jobID, humeMaxPolls)
}

func (c *HumeClient) postAudio(ctx context.Context, path string, req *speechmodel.ASRRequest) (int, []byte, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	format := req.Format
	if format == "" {
		format = DefaultFormat
	}
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="audio.%s"`, format))
	partHeader.Set("Content-Type", ContentType(format))
	part, err := form.CreatePart(partHeader)
	if err != nil {
		return 0, nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(req.AudioData); err != nil {
		return 0, nil, fmt.Errorf("write audio part: %w", err)
	}
	if err := form.Close(); err != nil {
		return 0, nil, fmt.Errorf("close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	return c.do(httpReq)
}

func (c *HumeClient) getJob(ctx context.Context, jobID string) (humeTranscript, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+humeJobsPath+"/"+jobID, nil)
	if err != nil {
		return humeTranscript{}, err
	}
	status, body, err := c.do(httpReq)
	if err != nil {
		return humeTranscript{}, err
	}
	if status != http.StatusOK {
		return humeTranscript{}, upstreamError(status, body)
	}
	var job humeTranscript
	if err := json.Unmarshal(body, &job); err != nil {
		return humeTranscript{}, fmt.Errorf("decode hume job status: %w", err)
	}
	return job, nil
}

func (c *HumeClient) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("X-Hume-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("hume request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read hume response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// upstreamError extracts detail/message from the body, or its first bytes.
func upstreamError(status int, body []byte) error {
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	detail := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		detail = payload.Detail
		if detail == "" {
			detail = payload.Message
		}
	}
	if detail == "" {
		detail = string(body)
		if len(detail) > errorDetailLimit {
			detail = detail[:errorDetailLimit]
		}
	}
	return fmt.Errorf("hume api error (%d): %s", status, strings.TrimSpace(detail))
}
