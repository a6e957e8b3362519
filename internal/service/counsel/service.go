package counsel

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/mitolab/soudan/backend/internal/analysis/triage"
	"github.com/mitolab/soudan/backend/internal/model/chat"
	chatservice "github.com/mitolab/soudan/backend/internal/service/chat"
)

var (
	ErrEmptyMessage       = errors.New("message content is required")
	ErrTranscriptTooShort = errors.New("transcript needs at least 2 messages to summarize")
)

// minSummaryMessages is the transcript size required before a summary is
// worth generating.
const minSummaryMessages = 2

// Generator is the downstream model collaborator. Implementations absorb
// their own failures: every method returns display-ready text.
type Generator interface {
	GenerateReply(ctx context.Context, userMessage string, riskLevel int, needs triage.Needs, history []chat.Message) string
	StreamReply(ctx context.Context, userMessage string, riskLevel int, needs triage.Needs, history []chat.Message, onDelta func(string) error) string
	Summarize(ctx context.Context, messages []chat.Message) string
}

// Service is the canonical turn pipeline: classify, freeze the result on the
// message, raise the session risk, generate, append. Every transport (REST,
// SSE, WebSocket) goes through here so no presentation layer re-derives
// classification rules.
type Service struct {
	chatSvc *chatservice.Service
	ai      Generator

	mu    sync.Mutex
	turns map[string]*sync.Mutex
}

// NewService wires the pipeline to the transcript store and the generator.
func NewService(chatSvc *chatservice.Service, ai Generator) *Service {
	return &Service{
		chatSvc: chatSvc,
		ai:      ai,
		turns:   make(map[string]*sync.Mutex),
	}
}

// TurnResult is everything the UI collaborator needs after one turn:
// both stored messages, the session's running risk level, and the needs
// label for the badge.
type TurnResult struct {
	UserMessage      chat.Message `json:"userMessage"`
	Reply            chat.Message `json:"reply"`
	SessionRiskLevel int          `json:"sessionRiskLevel"`
	NeedsLabel       string       `json:"needsLabel"`
}

// HandleTurn processes one user message to completion. Turns within a
// session are strictly sequential; separate sessions never contend.
func (s *Service) HandleTurn(ctx context.Context, sessionID, text string) (TurnResult, error) {
	return s.runTurn(ctx, sessionID, text, func(ctx context.Context, text string, level int, needs triage.Needs, history []chat.Message) string {
		return s.ai.GenerateReply(ctx, text, level, needs, history)
	})
}

// StreamTurn is HandleTurn with incremental delivery: onDelta receives reply
// fragments as they arrive. The transcript still only sees the final text.
func (s *Service) StreamTurn(ctx context.Context, sessionID, text string, onDelta func(string) error) (TurnResult, error) {
	return s.runTurn(ctx, sessionID, text, func(ctx context.Context, text string, level int, needs triage.Needs, history []chat.Message) string {
		return s.ai.StreamReply(ctx, text, level, needs, history, onDelta)
	})
}

func (s *Service) runTurn(ctx context.Context, sessionID, text string, generate func(context.Context, string, int, triage.Needs, []chat.Message) string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	lock := s.turnLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.chatSvc.LoadTranscript(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	level, keywords := triage.Classify(text)
	needs := triage.ClassifyNeeds(text)

	userMessage, err := s.chatSvc.SaveMessage(ctx, chat.Message{
		SessionID: sessionID,
		Role:      chat.RoleUser,
		Content:   text,
		RiskLevel: level,
		Needs:     string(needs),
		Keywords:  keywords,
	})
	if err != nil {
		return TurnResult{}, err
	}

	sessionLevel, err := s.chatSvc.RaiseRisk(ctx, sessionID, level)
	if err != nil {
		return TurnResult{}, err
	}
	log.Printf("[counsel] session=%s turn risk=%d running=%d needs=%s keywords=%d", sessionID, level, sessionLevel, needs, len(keywords))

	// History excludes the message just saved; the current text travels as
	// the query itself.
	replyText := generate(ctx, text, level, needs, history)

	reply, err := s.chatSvc.SaveMessage(ctx, chat.Message{
		SessionID: sessionID,
		Role:      chat.RoleAssistant,
		Content:   replyText,
		RiskLevel: level,
		Needs:     string(needs),
		Keywords:  keywords,
	})
	if err != nil {
		return TurnResult{}, err
	}

	return TurnResult{
		UserMessage:      userMessage,
		Reply:            reply,
		SessionRiskLevel: sessionLevel,
		NeedsLabel:       needs.Label(),
	}, nil
}

// Summarize condenses the session's whole transcript. The UI only enables
// the button from 2 messages on; calling earlier is rejected here as well.
func (s *Service) Summarize(ctx context.Context, sessionID string) (string, error) {
	lock := s.turnLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.chatSvc.LoadTranscript(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(history) < minSummaryMessages {
		return "", ErrTranscriptTooShort
	}

	return s.ai.Summarize(ctx, history), nil
}

// turnLock returns the per-session mutex, creating it on first use. Entries
// are kept for the life of the process: sessions are ephemeral and a mutex is
// tiny, and removing one while a turn holds it would break serialization.
func (s *Service) turnLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.turns[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.turns[sessionID] = lock
	}
	return lock
}
