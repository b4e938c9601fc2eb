package upload

import (
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/13point5/mit-interactive-sketchpad/internal/registry"
	chatservice "github.com/13point5/mit-interactive-sketchpad/internal/service/chat"
	"github.com/13point5/mit-interactive-sketchpad/pkg/utils"
)

const defaultCaption = "Here's my working so far, can you help me?"

// 10 MB of form data in memory before spilling to disk.
const maxMemory = 10 << 20

// Handler routes uploaded drawings into the active chat session.
type Handler struct {
	reg     *registry.Registry
	chatSvc *chatservice.Service
}

// New creates the upload handler.
func New(reg *registry.Registry, chatSvc *chatservice.Service) *Handler {
	return &Handler{reg: reg, chatSvc: chatSvc}
}

// RegisterRoutes registers the upload endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.handleUpload)
}

// handleUpload accepts a multipart image plus caption and injects it into
// the most recently started chat session. Session resolution happens per
// request; a session activated after this read wins the next upload, not
// this one. Failures surface as soft JSON errors the frontend displays.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	caption := r.FormValue("text")
	if caption == "" {
		caption = defaultCaption
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	sessionID, ok := h.reg.ActiveSession()
	if !ok {
		log.Printf("[upload] no active chat session")
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"error": "No chat session available. Please start a chat first.",
		})
		return
	}

	sctx, err := h.chatSvc.Bind(r.Context(), sessionID)
	if err != nil {
		log.Printf("[upload] session not found: %s", sessionID)
		utils.RespondJSON(w, http.StatusOK, map[string]string{"error": "Chat session not found"})
		return
	}

	tmp, err := os.CreateTemp("", "sketchpad-*"+filepath.Ext(header.Filename))
	if err != nil {
		log.Printf("[upload] create temp file failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		log.Printf("[upload] write temp file failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	tmp.Close()

	mime := header.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}

	attachment, err := sctx.NewAttachment(header.Filename, tmp.Name(), mime)
	if err != nil {
		log.Printf("[upload] attachment failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	if err := sctx.Submit(r.Context(), caption, attachment); err != nil {
		log.Printf("[upload] submit failed: %v", err)
		utils.RespondJSON(w, http.StatusOK, map[string]string{"error": "Chat session not found"})
		return
	}

	log.Printf("[upload] image %s (%d bytes) routed to session=%s", header.Filename, len(attachment.Data), sctx.SessionID())
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Image received"})
}
