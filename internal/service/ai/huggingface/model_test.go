package huggingface

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, apiKey string, handler http.HandlerFunc) *ChatModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := NewChatModel(context.Background(), &Config{
		APIKey:  apiKey,
		BaseURL: srv.URL + "/",
		Model:   "mistralai/Mistral-7B-Instruct-v0.2",
	})
	require.NoError(t, err)
	return m
}

func TestGenerateSendsFlatPrompt(t *testing.T) {
	var got generateRequest
	m := newTestModel(t, "hf-key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/mistralai/Mistral-7B-Instruct-v0.2", r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`[{"generated_text": "  I hear you.  "}]`))
	})

	input := []*schema.Message{schema.SystemMessage("Be kind.")}
	for i := 0; i < 4; i++ {
		input = append(input, schema.UserMessage("u"+string(rune('0'+i))), schema.AssistantMessage("a"+string(rune('0'+i)), nil))
	}
	input = append(input, schema.UserMessage("how are you?"))

	reply, err := m.Generate(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, reply.Role)
	assert.Equal(t, "I hear you.", reply.Content)

	want := "System: Be kind.\n\n" +
		"Assistant: a1\nUser: u2\nAssistant: a2\nUser: u3\nAssistant: a3\n" +
		"User: how are you?\nAssistant:"
	assert.Equal(t, want, got.Inputs)
	assert.InDelta(t, 0.7, got.Parameters.Temperature, 1e-6)
	assert.Equal(t, 1024, got.Parameters.MaxNewTokens)
	assert.False(t, got.Parameters.ReturnFullText)
}

func TestGenerateOmitsAuthorizationWithoutKey(t *testing.T) {
	m := newTestModel(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"generated_text": "local reply"}`))
	})

	reply, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "local reply", reply.Content)
}

func TestGenerateHonoursCallOptions(t *testing.T) {
	var got generateRequest
	m := newTestModel(t, "", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`[{"text": "ok"}]`))
	})

	reply, err := m.Generate(context.Background(),
		[]*schema.Message{schema.UserMessage("hi")},
		model.WithTemperature(0.2), model.WithMaxTokens(64))
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Content)
	assert.InDelta(t, 0.2, got.Parameters.Temperature, 1e-6)
	assert.Equal(t, 64, got.Parameters.MaxNewTokens)
}

func TestGenerateErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"upstream status": {http.StatusServiceUnavailable, `{"error":"Model is currently loading"}`, "status 503"},
		"empty list":      {http.StatusOK, `[]`, "could not parse response"},
		"unknown shape":   {http.StatusOK, `{"answer":"x"}`, "could not parse response"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			m := newTestModel(t, "k", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestStreamYieldsSingleMessage(t *testing.T) {
	m := newTestModel(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"generated_text": "whole"}]`))
	})

	stream, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	defer stream.Close()

	msg, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "whole", msg.Content)
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNewChatModelRequiresModel(t *testing.T) {
	_, err := NewChatModel(context.Background(), &Config{})
	assert.Error(t, err)
}
