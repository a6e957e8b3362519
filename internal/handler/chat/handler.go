package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mitolab/soudan/backend/internal/model/chat"
	chatservice "github.com/mitolab/soudan/backend/internal/service/chat"
	"github.com/mitolab/soudan/backend/internal/service/counsel"
	"github.com/mitolab/soudan/backend/pkg/utils"
)

// Handler 相談セッションのHTTPハンドラ。
type Handler struct {
	chatSvc    *chatservice.Service
	counselSvc *counsel.Service
}

// New 相談ハンドラを生成する。
func New(chatSvc *chatservice.Service, counselSvc *counsel.Service) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		counselSvc: counselSvc,
	}
}

// RegisterRoutes mounts the session lifecycle routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Post("/session/{sessionID}/messages", h.handleTurn)
	r.Get("/session/{sessionID}/transcript", h.handleTranscript)
	r.Post("/session/{sessionID}/feedback", h.handleFeedback)
	r.Post("/session/{sessionID}/summary", h.handleSummary)
	r.Get("/session/{sessionID}/summary/export", h.handleSummaryExport)
	r.Post("/session/{sessionID}/reset", h.handleReset)
	r.Get("/session/{sessionID}/export", h.handleExport)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, session)
}

// handleTurn runs one blocking counseling turn and returns the reply along
// with the triage data the UI shows as badges.
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.counselSvc.HandleTurn(r.Context(), chi.URLParam(r, "sessionID"), payload.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MessageIndex int    `json:"messageIndex"`
		Rating       int    `json:"rating"`
		Comment      string `json:"comment"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	feedback, err := h.chatSvc.RecordFeedback(r.Context(), chat.Feedback{
		SessionID:    chi.URLParam(r, "sessionID"),
		MessageIndex: payload.MessageIndex,
		Rating:       payload.Rating,
		Comment:      payload.Comment,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, feedback)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.counselSvc.Summarize(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// handleSummaryExport serves the summary as a downloadable text file, the
// way the chat UI's save button expects it.
func (h *Handler) handleSummaryExport(w http.ResponseWriter, r *http.Request) {
	summary, err := h.counselSvc.Summarize(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("counseling_summary_%s.txt", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	utils.RespondText(w, http.StatusOK, summary)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.Reset(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := h.chatSvc.Export(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("counseling_transcript_%s.json", doc.ExportedAt.Format("20060102_150405"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	utils.RespondJSON(w, http.StatusOK, doc)
}

// respondServiceError maps service sentinels onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatservice.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatservice.ErrInvalidRating), errors.Is(err, chatservice.ErrInvalidMessageIndex), errors.Is(err, counsel.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, counsel.ErrTranscriptTooShort):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
