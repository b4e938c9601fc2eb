package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/13point5/mit-interactive-sketchpad/internal/handler/session"
	"github.com/13point5/mit-interactive-sketchpad/internal/handler/stream"
	"github.com/13point5/mit-interactive-sketchpad/internal/handler/upload"
	middlewarePkg "github.com/13point5/mit-interactive-sketchpad/internal/middleware"
	"github.com/13point5/mit-interactive-sketchpad/internal/registry"
	aiservice "github.com/13point5/mit-interactive-sketchpad/internal/service/ai"
	canvasservice "github.com/13point5/mit-interactive-sketchpad/internal/service/canvas"
	chatservice "github.com/13point5/mit-interactive-sketchpad/internal/service/chat"
	"github.com/13point5/mit-interactive-sketchpad/pkg/utils"
	"github.com/13point5/mit-interactive-sketchpad/web"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(reg *registry.Registry, chatSvc *chatservice.Service, aiSvc *aiservice.Service, gateway *canvasservice.Gateway) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	sessionHandler := session.New(reg, chatSvc)
	uploadHandler := upload.New(reg, chatSvc)

	var streamHandler *stream.Handler
	if aiSvc != nil {
		streamHandler = stream.New(aiSvc, chatSvc)
	}

	// Container page and the two iframed sub-applications.
	r.Get("/", servePage("index.html"))
	r.Get("/chat", servePage("chat.html"))
	r.Get("/sketchpad", servePage("sketchpad.html"))

	// Sketchpad push-channel.
	r.Get("/ws/sketchpad", gateway.HandleConnection)

	// Drawing uploads into the active chat session.
	uploadHandler.RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		sessionHandler.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
				return
			}
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

func servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := web.Assets.ReadFile(name)
		if err != nil {
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}
}
