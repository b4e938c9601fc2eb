package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/13point5/mit-interactive-sketchpad/internal/model/chat"
	"github.com/13point5/mit-interactive-sketchpad/internal/registry"
	chatservice "github.com/13point5/mit-interactive-sketchpad/internal/service/chat"
	"github.com/13point5/mit-interactive-sketchpad/pkg/utils"
)

// Handler exposes session bootstrap and transcript reads for the chat
// frame, plus the active-session probe the sketchpad frame polls.
type Handler struct {
	reg     *registry.Registry
	chatSvc *chatservice.Service
}

// New creates the session handler.
func New(reg *registry.Registry, chatSvc *chatservice.Service) *Handler {
	return &Handler{reg: reg, chatSvc: chatSvc}
}

// RegisterRoutes registers the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.handleActiveSession)
	r.Post("/session", h.handleCreateSession)
	r.Get("/sessions/{sessionID}/messages", h.handleTranscript)
}

// handleActiveSession reports the most recently started chat session, or
// null when no chat has started yet.
func (h *Handler) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	var sessionID *string
	if id, ok := h.reg.ActiveSession(); ok {
		sessionID = &id
	}
	utils.RespondJSON(w, http.StatusOK, map[string]*string{"session_id": sessionID})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

type attachmentView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	MIME    string `json:"mime"`
	Display string `json:"display"`
	Size    string `json:"size"`
	URL     string `json:"url"`
}

type messageView struct {
	ID          string           `json:"id"`
	Sender      string           `json:"sender"`
	Content     string           `json:"content"`
	Attachments []attachmentView `json:"attachments,omitempty"`
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, toMessageView(msg))
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": views})
}

func toMessageView(msg chat.Message) messageView {
	view := messageView{
		ID:      msg.ID,
		Sender:  msg.Sender,
		Content: msg.Content,
	}
	for _, att := range msg.Attachments {
		view.Attachments = append(view.Attachments, attachmentView{
			ID:      att.ID,
			Name:    att.Name,
			MIME:    att.MIME,
			Display: att.Display,
			Size:    att.Size,
			URL:     att.DataURI(),
		})
	}
	return view
}
