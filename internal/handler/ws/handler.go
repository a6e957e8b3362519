package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatservice "github.com/mitolab/soudan/backend/internal/service/chat"
	"github.com/mitolab/soudan/backend/internal/service/counsel"
)

// Handler serves counseling turns over a WebSocket connection for clients
// that keep one long-lived channel instead of polling SSE.
type Handler struct {
	chatSvc    *chatservice.Service
	counselSvc *counsel.Service
	upgrader   websocket.Upgrader
}

// New creates the WebSocket handler.
func New(chatSvc *chatservice.Service, counselSvc *counsel.Service) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		counselSvc: counselSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s", sessionID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed for session=%s: %v", sessionID, err)
			}
			return
		}

		switch inbound.Type {
		case "user_message":
			h.processTurn(r, conn, sessionID, inbound.Content)
		case "ping":
			h.send(conn, sessionID, outgoingMessage{Type: "pong"})
		default:
			h.sendError(conn, sessionID, "unknown message type: "+inbound.Type)
		}
	}
}

// processTurn runs one turn, relaying reply fragments as delta frames and
// finishing with the full turn result.
func (h *Handler) processTurn(r *http.Request, conn *websocket.Conn, sessionID, content string) {
	result, err := h.counselSvc.StreamTurn(r.Context(), sessionID, content, func(chunk string) error {
		return h.send(conn, sessionID, outgoingMessage{Type: "delta", Data: chunk})
	})
	if err != nil {
		h.sendError(conn, sessionID, err.Error())
		return
	}

	if err := h.send(conn, sessionID, outgoingMessage{Type: "reply", Data: result}); err != nil {
		log.Printf("[ws] write failed for session=%s: %v", sessionID, err)
	}
}

func (h *Handler) send(conn *websocket.Conn, sessionID string, msg outgoingMessage) error {
	msg.SessionID = sessionID
	msg.Timestamp = time.Now().UnixMilli()
	return conn.WriteJSON(msg)
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, errorMsg string) {
	if err := h.send(conn, sessionID, outgoingMessage{Type: "error", Data: errorMsg}); err != nil {
		log.Printf("[ws] error write failed for session=%s: %v", sessionID, err)
	}
}
