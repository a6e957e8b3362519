package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/mitolab/soudan/backend/internal/service/counsel"
	"github.com/mitolab/soudan/backend/pkg/utils"
)

// Handler manages streaming counseling replies via Server-Sent Events.
type Handler struct {
	counselSvc *counsel.Service
}

// New creates a new stream handler.
func New(counselSvc *counsel.Service) *Handler {
	return &Handler{counselSvc: counselSvc}
}

// StreamResponse represents a streaming response chunk.
type StreamResponse struct {
	Event     string          `json:"event"`
	Content   string          `json:"content,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Triage    json.RawMessage `json:"triage,omitempty"`
	Finished  bool            `json:"finished,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// HandleStreamRequest processes one streamed turn for a session: deltas as
// they arrive, then the full reply, then the triage badge data.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
	})

	result, err := h.counselSvc.StreamTurn(ctx, sessionID, userMessage, func(chunk string) error {
		h.sendSSE(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   chunk,
		})
		return ctx.Err()
	})
	if err != nil {
		h.sendSSEError(w, flusher, err.Error())
		return err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   result.Reply.Content,
	})

	triagePayload, err := json.Marshal(map[string]any{
		"riskLevel":        result.UserMessage.RiskLevel,
		"sessionRiskLevel": result.SessionRiskLevel,
		"needs":            result.UserMessage.Needs,
		"needsLabel":       result.NeedsLabel,
		"keywords":         result.UserMessage.Keywords,
	})
	if err == nil {
		h.sendSSE(w, flusher, StreamResponse{
			Event:     "triage",
			SessionID: sessionID,
			Triage:    triagePayload,
		})
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed turn for session=%s risk=%d", sessionID, result.SessionRiskLevel)
	return nil
}

// sendSSE sends a Server-Sent Event.
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

// sendSSEError sends an error via Server-Sent Events.
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}
