package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/aura/backend/internal/service/chat"
)

type stubResponder struct {
	err error
}

func (s stubResponder) GenerateReply(_ context.Context, history []chat.Message, userMessage string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "echo: " + userMessage, nil
}

func setupRouter(responder chatservice.Responder) (*chi.Mux, *chatservice.Service) {
	store := chatservice.NewService()
	relay := chatservice.NewRelay(store, responder, nil, 0)

	r := chi.NewRouter()
	New(relay, store).RegisterRoutes(r)
	return r, store
}

func postChat(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeChat(t *testing.T, resp *httptest.ResponseRecorder) chatResponse {
	t.Helper()
	var out chatResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestChatCreatesSession(t *testing.T) {
	r, store := setupRouter(stubResponder{})

	resp := postChat(r, `{"message":"hello"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	out := decodeChat(t, resp)
	if out.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if out.Response != "echo: hello" {
		t.Fatalf("unexpected response %q", out.Response)
	}
	if out.Timestamp.IsZero() {
		t.Fatal("expected a timestamp")
	}

	messages, err := store.Get(context.Background(), out.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(messages) != 2 || messages[0].Role != chat.RoleUser || messages[1].Role != chat.RoleAssistant {
		t.Fatalf("unexpected transcript %+v", messages)
	}
}

func TestChatContinuesSession(t *testing.T) {
	r, store := setupRouter(stubResponder{})

	first := decodeChat(t, postChat(r, `{"message":"one"}`))
	second := decodeChat(t, postChat(r, `{"message":"two","session_id":"`+first.SessionID+`"}`))

	if second.SessionID != first.SessionID {
		t.Fatalf("expected same session, got %q and %q", first.SessionID, second.SessionID)
	}
	messages, _ := store.Get(context.Background(), first.SessionID)
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
}

func TestChatNullSessionIDStartsNewSession(t *testing.T) {
	r, _ := setupRouter(stubResponder{})

	resp := postChat(r, `{"message":"hi","session_id":null}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if decodeChat(t, resp).SessionID == "" {
		t.Fatal("expected a generated session id")
	}
}

func TestChatRejectsBadInput(t *testing.T) {
	r, store := setupRouter(stubResponder{})

	for _, body := range []string{`{}`, `{"message":""}`, `{"message":"   "}`, `not json`, ``} {
		resp := postChat(r, body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, resp.Code)
		}
	}
	if n := len(store.Snapshot(context.Background())); n != 0 {
		t.Fatalf("rejected requests created %d sessions", n)
	}
}

func TestChatResponderFailureKeepsUserMessage(t *testing.T) {
	r, store := setupRouter(stubResponder{err: errors.New("upstream said no: key=sk-live-123")})

	if _, err := store.Append(context.Background(), "known", chat.RoleUser, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(context.Background(), "known", chat.RoleAssistant, "b"); err != nil {
		t.Fatal(err)
	}

	resp := postChat(r, `{"message":"c","session_id":"known"}`)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "sk-live-123") {
		t.Fatalf("error body leaked upstream detail: %s", resp.Body.String())
	}

	messages, _ := store.Get(context.Background(), "known")
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages after failed call, got %d", len(messages))
	}
}

func TestChatWithoutResponder(t *testing.T) {
	r, _ := setupRouter(nil)

	resp := postChat(r, `{"message":"hi"}`)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	r, _ := setupRouter(stubResponder{})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/conversations/never-issued", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestHistoryReturnsTranscript(t *testing.T) {
	r, store := setupRouter(stubResponder{})
	ctx := context.Background()

	empty, _ := store.CreateSession(ctx)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/conversations/"+empty, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"messages":[]`) {
		t.Fatalf("expected empty message list, got %s", resp.Body.String())
	}

	out := decodeChat(t, postChat(r, `{"message":"hi"}`))
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/conversations/"+out.SessionID, nil))

	var history historyResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if history.SessionID != out.SessionID || history.TotalMessages != 2 || len(history.Messages) != 2 {
		t.Fatalf("unexpected history %+v", history)
	}
	if history.Messages[0].Content != "hi" || history.Messages[1].Content != "echo: hi" {
		t.Fatalf("unexpected contents %+v", history.Messages)
	}
}
