package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mitolab/soudan/backend/internal/model/chat"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrInvalidMessageIndex = errors.New("message index out of range")
)

// Service owns the in-memory conversation state for every active session.
// Transcripts are append-only and exist only for the lifetime of the
// process; each session's state is fully independent of every other.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message
	feedback map[string][]chat.Feedback
}

// NewService bootstraps the in-memory transcript store.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]chat.Message),
		feedback: make(map[string][]chat.Feedback),
	}
}

// CreateSession provisions an anonymous counseling session. Risk level
// starts at 0 and only moves through RaiseRisk.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]chat.Message, 0, 16)
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// SaveMessage appends a message to the session transcript and returns the
// stored copy with its assigned id and timestamp.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) (chat.Message, error) {
	if message.SessionID == "" {
		return chat.Message{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return message, nil
}

// LoadTranscript returns stored messages for the provided session in
// insertion order.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
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

// RaiseRisk lifts the session's running risk level to the given value if it
// is higher, and returns the current level. The level never decreases except
// through Reset.
func (s *Service) RaiseRisk(_ context.Context, sessionID string, level int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrSessionNotFound
	}

	if level > session.RiskLevel {
		session.RiskLevel = level
		s.sessions[sessionID] = session
	}
	return session.RiskLevel, nil
}

// RecordFeedback appends a rating to the session's feedback log. The
// transcript itself is never touched.
func (s *Service) RecordFeedback(_ context.Context, feedback chat.Feedback) (chat.Feedback, error) {
	if feedback.Rating < 1 || feedback.Rating > 5 {
		return chat.Feedback{}, ErrInvalidRating
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[feedback.SessionID]; !ok {
		return chat.Feedback{}, ErrSessionNotFound
	}
	if feedback.MessageIndex < 0 || feedback.MessageIndex >= len(s.messages[feedback.SessionID]) {
		return chat.Feedback{}, ErrInvalidMessageIndex
	}

	feedback.ID = uuid.NewString()
	feedback.CreatedAt = time.Now().UTC()
	s.feedback[feedback.SessionID] = append(s.feedback[feedback.SessionID], feedback)
	return feedback, nil
}

// ListFeedback returns the feedback log in insertion order.
func (s *Service) ListFeedback(_ context.Context, sessionID string) ([]chat.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Feedback, len(s.feedback[sessionID]))
	copy(copied, s.feedback[sessionID])
	return copied, nil
}

// Reset clears the transcript and the running risk level. The feedback log
// survives: ratings refer to the session, not to live messages.
func (s *Service) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	session.RiskLevel = 0
	s.sessions[sessionID] = session
	s.messages[sessionID] = make([]chat.Message, 0, 16)
	return nil
}

// Export assembles the downloadable record of everything the session holds.
func (s *Service) Export(_ context.Context, sessionID string) (chat.ExportDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.ExportDocument{}, ErrSessionNotFound
	}

	messages := make([]chat.Message, len(s.messages[sessionID]))
	copy(messages, s.messages[sessionID])
	feedback := make([]chat.Feedback, len(s.feedback[sessionID]))
	copy(feedback, s.feedback[sessionID])

	return chat.ExportDocument{
		Session:    session,
		Messages:   messages,
		Feedback:   feedback,
		ExportedAt: time.Now().UTC(),
	}, nil
}
