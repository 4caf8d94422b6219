package chat_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/aura/backend/internal/apperr"
	model "github.com/zhouzirui/aura/backend/internal/model/chat"
	chat "github.com/zhouzirui/aura/backend/internal/service/chat"
)

type fakeResponder struct {
	reply       string
	err         error
	gotHistory  []model.Message
	gotMessage  string
	hadDeadline bool
}

func (f *fakeResponder) GenerateReply(ctx context.Context, history []model.Message, userMessage string) (string, error) {
	f.gotHistory = history
	f.gotMessage = userMessage
	_, f.hadDeadline = ctx.Deadline()
	return f.reply, f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, _ []byte, _, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestRelayHandleChatCreatesSession(t *testing.T) {
	store := chat.NewService()
	responder := &fakeResponder{reply: "Hello! How can I help?"}
	relay := chat.NewRelay(store, responder, nil, time.Second)
	ctx := context.Background()

	reply, err := relay.HandleChat(ctx, "", "hi")
	if err != nil {
		t.Fatalf("HandleChat err: %v", err)
	}
	if reply.SessionID == "" || !reply.NewSession {
		t.Fatalf("expected a new session, got %+v", reply)
	}
	if reply.Response != "Hello! How can I help?" {
		t.Fatalf("unexpected response %q", reply.Response)
	}
	if !responder.hadDeadline {
		t.Fatal("expected responder call to carry a deadline")
	}
	if len(responder.gotHistory) != 0 || responder.gotMessage != "hi" {
		t.Fatalf("unexpected responder input: history=%v message=%q", responder.gotHistory, responder.gotMessage)
	}

	messages, err := store.Get(ctx, reply.SessionID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if len(messages) != 2 || messages[0].Role != model.RoleUser || messages[1].Role != model.RoleAssistant {
		t.Fatalf("unexpected transcript %+v", messages)
	}
	if !reply.Timestamp.Equal(messages[1].Timestamp) {
		t.Fatalf("reply timestamp %s != stored %s", reply.Timestamp, messages[1].Timestamp)
	}
}

func TestRelayHandleChatPassesPriorHistory(t *testing.T) {
	store := chat.NewService()
	responder := &fakeResponder{reply: "second answer"}
	relay := chat.NewRelay(store, responder, nil, 0)
	ctx := context.Background()

	id, _ := store.CreateSession(ctx)
	_, _ = store.Append(ctx, id, model.RoleUser, "first question")
	_, _ = store.Append(ctx, id, model.RoleAssistant, "first answer")

	reply, err := relay.HandleChat(ctx, id, "second question")
	if err != nil {
		t.Fatalf("HandleChat err: %v", err)
	}
	if reply.NewSession {
		t.Fatal("expected continued session")
	}
	if len(responder.gotHistory) != 2 || responder.gotHistory[1].Content != "first answer" {
		t.Fatalf("unexpected history %+v", responder.gotHistory)
	}
}

func TestRelayFailureIsolation(t *testing.T) {
	store := chat.NewService()
	responder := &fakeResponder{err: errors.New("provider returned 500")}
	relay := chat.NewRelay(store, responder, nil, time.Second)
	ctx := context.Background()

	id, _ := store.CreateSession(ctx)
	_, _ = store.Append(ctx, id, model.RoleUser, "hello")
	_, _ = store.Append(ctx, id, model.RoleAssistant, "hi")

	_, err := relay.HandleChat(ctx, id, "are you there?")
	if apperr.KindOf(err) != apperr.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}

	messages, _ := store.Get(ctx, id)
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages after failed call, got %d", len(messages))
	}
	if messages[2].Role != model.RoleUser || messages[2].Content != "are you there?" {
		t.Fatalf("unexpected last message %+v", messages[2])
	}
}

func TestRelayEmptyReplyIsUpstreamFailure(t *testing.T) {
	store := chat.NewService()
	relay := chat.NewRelay(store, &fakeResponder{reply: "  "}, nil, 0)

	reply, err := relay.HandleChat(context.Background(), "s1", "hello")
	if apperr.KindOf(err) != apperr.KindUpstream {
		t.Fatalf("expected upstream error, got %v (%+v)", err, reply)
	}
	messages, _ := store.Get(context.Background(), "s1")
	if len(messages) != 1 {
		t.Fatalf("expected only the user message, got %d", len(messages))
	}
}

func TestRelayRejectsBlankMessageBeforeStore(t *testing.T) {
	store := chat.NewService()
	relay := chat.NewRelay(store, &fakeResponder{reply: "x"}, nil, 0)

	_, err := relay.HandleChat(context.Background(), "s1", "   ")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.Exists(context.Background(), "s1") {
		t.Fatal("blank message must not touch the store")
	}
}

func TestRelayWithoutResponderIsUnavailable(t *testing.T) {
	relay := chat.NewRelay(chat.NewService(), nil, nil, 0)

	_, err := relay.HandleChat(context.Background(), "", "hello")
	if apperr.HTTPStatus(err) != 503 {
		t.Fatalf("expected 503, got %d (%v)", apperr.HTTPStatus(err), err)
	}
}

func TestRelayHandleVoice(t *testing.T) {
	store := chat.NewService()
	transcriber := &fakeTranscriber{text: " what's the weather? "}
	relay := chat.NewRelay(store, &fakeResponder{reply: "Sunny."}, transcriber, 0)

	reply, err := relay.HandleVoice(context.Background(), "", []byte("RIFF"), "wav", "en-US")
	if err != nil {
		t.Fatalf("HandleVoice err: %v", err)
	}
	if reply.Transcription != "what's the weather?" || reply.Response != "Sunny." {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestRelayTranscriptionFailureNeverReachesStore(t *testing.T) {
	store := chat.NewService()
	transcriber := &fakeTranscriber{err: errors.New("stt timeout")}
	relay := chat.NewRelay(store, &fakeResponder{reply: "x"}, transcriber, 0)
	ctx := context.Background()

	_, err := relay.HandleVoice(ctx, "voice-session", []byte("RIFF"), "wav", "")
	if apperr.KindOf(err) != apperr.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if store.Exists(ctx, "voice-session") {
		t.Fatal("failed transcription must not create a session")
	}
}

func TestRelayRejectsEmptyAudio(t *testing.T) {
	transcriber := &fakeTranscriber{text: "x"}
	relay := chat.NewRelay(chat.NewService(), nil, transcriber, 0)

	_, err := relay.Transcribe(context.Background(), "", nil, "wav", "")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if transcriber.calls != 0 {
		t.Fatal("empty audio must not be forwarded")
	}
}

func TestRelayVoiceWithSilentAudio(t *testing.T) {
	store := chat.NewService()
	relay := chat.NewRelay(store, &fakeResponder{reply: "x"}, &fakeTranscriber{text: ""}, 0)

	_, err := relay.HandleVoice(context.Background(), "quiet", []byte("RIFF"), "wav", "")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.Exists(context.Background(), "quiet") {
		t.Fatal("silent audio must not create a session")
	}
}

type historyCheckingResponder struct {
	mu       sync.Mutex
	failures []string
}

func (h *historyCheckingResponder) GenerateReply(_ context.Context, history []model.Message, userMessage string) (string, error) {
	for _, msg := range history {
		if msg.Role == model.RoleUser && msg.Content == userMessage {
			h.mu.Lock()
			h.failures = append(h.failures, userMessage)
			h.mu.Unlock()
		}
	}
	return "ack " + userMessage, nil
}

func TestRelayConcurrentTurnsOnOneSession(t *testing.T) {
	store := chat.NewService()
	responder := &historyCheckingResponder{}
	relay := chat.NewRelay(store, responder, nil, time.Second)
	ctx := context.Background()

	const turns = 200
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := relay.HandleChat(ctx, "shared", fmt.Sprintf("msg-%d", i)); err != nil {
				t.Errorf("HandleChat err: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(responder.failures) != 0 {
		t.Fatalf("responder saw its own message in history for %v", responder.failures)
	}
	messages, _ := store.Get(ctx, "shared")
	if len(messages) != 2*turns {
		t.Fatalf("expected %d messages, got %d", 2*turns, len(messages))
	}
}
