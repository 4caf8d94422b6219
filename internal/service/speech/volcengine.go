package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/config"
	speechmodel "github.com/zhouzirui/aura/backend/internal/model/speech"
)

const (
	volcengineEndpoint = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"

	// 16kHz, 16bit, mono: 200ms of audio.
	audioChunkSize = 6400

	volcengineSuccessCode = 20000000
)

// VolcengineClient streams a recorded clip to the Volcengine big-model ASR.
type VolcengineClient struct {
	cfg      config.SpeechConfig
	endpoint string
	dialer   *websocket.Dialer
	// pacing between audio chunks; the service rejects bursts faster than real time.
	interval time.Duration
	logger   *zap.Logger
}

// NewVolcengineClient builds a client for cfg.
func NewVolcengineClient(cfg config.SpeechConfig, logger *zap.Logger) *VolcengineClient {
	return &VolcengineClient{
		cfg:      cfg,
		endpoint: volcengineEndpoint,
		dialer:   &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		interval: 200 * time.Millisecond,
		logger:   logger.Named("volcengine"),
	}
}

type volcengineRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type volcengineResult struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  struct {
		Text       string `json:"text"`
		Utterances []struct {
			Text string `json:"text"`
		} `json:"utterances,omitempty"`
	} `json:"result"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info"`
}

func buildVolcengineRequest(req *speechmodel.ASRRequest) volcengineRequest {
	var out volcengineRequest
	out.User.UID = req.SessionID

	out.Audio.Format = req.Format
	if out.Audio.Format == "" {
		out.Audio.Format = DefaultFormat
	}
	out.Audio.Language = req.Language
	out.Audio.Codec = "raw"
	out.Audio.Rate = 16000
	out.Audio.Bits = 16
	out.Audio.Channel = 1

	out.Request.ModelName = "bigmodel"
	out.Request.EnableITN = true
	out.Request.EnablePunc = true
	out.Request.ShowUtterances = true
	out.Request.ResultType = "full"
	out.Request.EndWindowSize = 800
	return out
}

// Recognize sends the whole clip and waits for the final transcript.
func (c *VolcengineClient) Recognize(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	if len(req.AudioData) == 0 {
		return nil, fmt.Errorf("no audio data to send")
	}

	appID, token, err := volcengineCredentials(c.cfg)
	if err != nil {
		return nil, err
	}

	connectID := req.SessionID
	if connectID == "" {
		connectID = fmt.Sprintf("aura-%d", time.Now().UnixNano())
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", c.cfg.ResourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("connect to asr websocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		c.logger.Debug("asr connected", zap.String("logid", resp.Header.Get("X-Tt-Logid")), zap.String("connect_id", connectID))
	}

	params, err := json.Marshal(buildVolcengineRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal asr request: %w", err)
	}
	payload, err := compress(params, GzipCompression)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, NewFullClientRequest(payload, GzipCompression).Encode()); err != nil {
		return nil, fmt.Errorf("send asr request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock ReadMessage when ctx ends.
	go func() {
		<-ctx.Done()
		conn.SetReadDeadline(time.Now())
	}()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- c.sendAudio(ctx, conn, req.AudioData)
	}()

	type outcome struct {
		resp *speechmodel.ASRResponse
		err  error
	}
	recv := make(chan outcome, 1)
	go func() {
		r, err := c.receive(conn, connectID)
		recv <- outcome{r, err}
	}()

	for {
		select {
		case err := <-sendErr:
			if err != nil {
				return nil, fmt.Errorf("send audio: %w", err)
			}
			sendErr = nil
		case out := <-recv:
			if out.err != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if out.resp != nil {
				out.resp.SessionID = req.SessionID
			}
			return out.resp, out.err
		}
	}
}

func (c *VolcengineClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	// Sequence 1 belongs to the full client request.
	sequence := int32(2)
	for start := 0; start < len(audio); start += audioChunkSize {
		end := min(start+audioChunkSize, len(audio))
		last := end == len(audio)

		chunk, err := compress(audio[start:end], GzipCompression)
		if err != nil {
			return err
		}
		frame := NewAudioRequest(chunk, sequence, last, GzipCompression)
		if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
			return fmt.Errorf("write audio chunk %d: %w", sequence, err)
		}
		sequence++

		if last || c.interval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.interval):
		}
	}
	return nil
}

func (c *VolcengineClient) receive(conn *websocket.Conn, connectID string) (*speechmodel.ASRResponse, error) {
	var (
		text     string
		duration int64
	)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read asr response: %w", err)
		}

		frame, err := DecodeFrame(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode asr frame: %w", err)
		}

		switch frame.Header.Type {
		case ErrorMessage:
			detail, err := decompress(frame.Payload, frame.Header.Compression)
			if err != nil {
				detail = frame.Payload
			}
			return nil, fmt.Errorf("asr error %d: %s", frame.ErrorCode, string(detail))

		case FullServerResponse:
			payload, err := decompress(frame.Payload, frame.Header.Compression)
			if err != nil {
				return nil, err
			}
			var result volcengineResult
			if err := json.Unmarshal(payload, &result); err != nil {
				c.logger.Warn("unparseable asr payload", zap.Error(err))
				continue
			}
			if result.Code != 0 && result.Code != volcengineSuccessCode {
				return nil, fmt.Errorf("asr api error %d: %s", result.Code, result.Message)
			}

			if candidate := result.text(); candidate != "" {
				text = candidate
			}
			if result.AudioInfo.Duration > 0 {
				duration = result.AudioInfo.Duration
			}

			if frame.IsLast() {
				return &speechmodel.ASRResponse{
					Text:      text,
					Duration:  duration,
					Provider:  config.STTProviderVolcengine,
					RequestID: connectID,
					CreatedAt: time.Now().UTC(),
				}, nil
			}
		}
	}
}

func (r volcengineResult) text() string {
	if r.Result.Text != "" {
		return r.Result.Text
	}
	parts := make([]string, 0, len(r.Result.Utterances))
	for _, u := range r.Result.Utterances {
		if u.Text != "" {
			parts = append(parts, u.Text)
		}
	}
	return strings.Join(parts, " ")
}
