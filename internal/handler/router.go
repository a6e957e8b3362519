package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mitolab/soudan/backend/internal/handler/chat"
	"github.com/mitolab/soudan/backend/internal/handler/stream"
	"github.com/mitolab/soudan/backend/internal/handler/ws"
	middlewarePkg "github.com/mitolab/soudan/backend/internal/middleware"
	chatService "github.com/mitolab/soudan/backend/internal/service/chat"
	"github.com/mitolab/soudan/backend/internal/service/counsel"
	"github.com/mitolab/soudan/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, counselSvc *counsel.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(chatSvc, counselSvc)
	streamHandler := stream.New(counselSvc)
	wsHandler := ws.New(chatSvc, counselSvc)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		// Streaming counterpart of POST /session/{sessionID}/messages.
		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
