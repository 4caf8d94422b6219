package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/apperr"
	"github.com/zhouzirui/aura/backend/internal/model/chat"
)

var (
	ErrSessionIDRequired = apperr.Validation("session id is required")
	ErrInvalidRole       = apperr.Validation("role must be user or assistant")
	ErrSessionNotFound   = apperr.NotFound("session not found")
)

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger used for session lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service is the in-memory session store. It lives for the process lifetime.
type Service struct {
	mu       sync.RWMutex
	order    []string
	messages map[string][]chat.Message

	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// NewService bootstraps an empty store.
func NewService(opts ...Option) *Service {
	s := &Service{
		messages: make(map[string][]chat.Message),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   zap.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("chat")
	return s
}

// CreateSession issues a fresh random identifier with an empty transcript.
func (s *Service) CreateSession(_ context.Context) (string, error) {
	s.mu.Lock()
	id := s.newID()
	for {
		if _, taken := s.messages[id]; !taken {
			break
		}
		id = s.newID()
	}
	s.register(id)
	s.mu.Unlock()

	s.logger.Info("created conversation session", zap.String("session_id", id))
	return id, nil
}

// Append stores a message, creating the session under sessionID if it is unknown.
func (s *Service) Append(_ context.Context, sessionID string, role chat.Role, content string) (chat.AppendResult, error) {
	if sessionID == "" {
		return chat.AppendResult{}, ErrSessionIDRequired
	}
	if !role.Storable() {
		return chat.AppendResult{}, ErrInvalidRole
	}

	s.mu.Lock()
	history, exists := s.messages[sessionID]
	if !exists {
		s.register(sessionID)
		history = s.messages[sessionID]
	}

	stamp := s.now()
	if n := len(history); n > 0 && stamp.Before(history[n-1].Timestamp) {
		stamp = history[n-1].Timestamp
	}

	message := chat.Message{
		Role:      role,
		Content:   content,
		Timestamp: stamp,
	}
	prior := make([]chat.Message, len(history))
	copy(prior, history)
	s.messages[sessionID] = append(history, message)
	s.mu.Unlock()

	// Log after unlocking.
	s.logger.Debug("appended message",
		zap.String("session_id", sessionID),
		zap.String("role", string(role)),
		zap.Bool("created", !exists),
	)
	return chat.AppendResult{Created: !exists, Message: message, Prior: prior}, nil
}

// Exists reports whether sessionID was ever issued or upserted.
func (s *Service) Exists(_ context.Context, sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.messages[sessionID]
	return ok
}

// Get returns a copy of the session transcript in insertion order.
func (s *Service) Get(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Snapshot copies every session, in creation order, under a single read lock.
func (s *Service) Snapshot(_ context.Context) []chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]chat.Session, 0, len(s.order))
	for _, id := range s.order {
		messages := s.messages[id]
		copied := make([]chat.Message, len(messages))
		copy(copied, messages)
		sessions = append(sessions, chat.Session{ID: id, Messages: copied})
	}
	return sessions
}

// register must be called with mu held.
func (s *Service) register(id string) {
	s.messages[id] = make([]chat.Message, 0, 16)
	s.order = append(s.order, id)
}
