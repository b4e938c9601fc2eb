package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/cloudwego/eino/schema"

	"github.com/13point5/mit-interactive-sketchpad/internal/model/chat"
	aiservice "github.com/13point5/mit-interactive-sketchpad/internal/service/ai"
	chatservice "github.com/13point5/mit-interactive-sketchpad/internal/service/chat"
	"github.com/13point5/mit-interactive-sketchpad/pkg/utils"
)

// Handler streams agent turns to the chat frame via Server-Sent Events.
type Handler struct {
	aiSvc   *aiservice.Service
	chatSvc *chatservice.Service
}

// New creates a new stream handler.
func New(aiSvc *aiservice.Service, chatSvc *chatservice.Service) *Handler {
	return &Handler{aiSvc: aiSvc, chatSvc: chatSvc}
}

// StreamResponse represents a streaming response chunk.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest runs one agent turn for a chat session and streams
// the reply. Image parts of the reply are also pushed to the sketchpad.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		h.sendSSEError(w, flusher, "session not found")
		return err
	}

	history, err := h.chatSvc.LoadTranscript(ctx, session.ID)
	if err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("failed to load conversation: %v", err))
		return err
	}

	userMsg := chat.Message{
		SessionID: sessionID,
		Sender:    "user",
		Content:   userMessage,
	}
	if err := h.chatSvc.SaveMessage(ctx, userMsg); err != nil {
		log.Printf("[stream] failed to save user message: %v", err)
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
	})

	response, err := h.dispatchTurn(ctx, w, flusher, sessionID, history, userMsg)
	if err != nil {
		h.sendSSEError(w, flusher, fmt.Sprintf("agent turn failed: %v", err))
		return err
	}

	assistantMsg := chat.Message{
		SessionID: sessionID,
		Sender:    "assistant",
		Content:   response.Content,
	}
	if err := h.chatSvc.SaveMessage(ctx, assistantMsg); err != nil {
		log.Printf("[stream] failed to save assistant message: %v", err)
	}

	// Best-effort push of any generated visuals to the canvas; the turn
	// completes regardless of whether a sketchpad is connected.
	h.chatSvc.PushVisuals(ctx, response)

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed turn for session=%s", sessionID)
	return nil
}

func (h *Handler) dispatchTurn(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, history []chat.Message, userMsg chat.Message) (*schema.Message, error) {
	if h.aiSvc.StreamingEnabled() {
		return h.streamTurn(ctx, w, flusher, sessionID, history, userMsg)
	}

	response, err := h.aiSvc.Respond(ctx, history, userMsg)
	if err != nil {
		return nil, err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   response.Content,
	})

	return response, nil
}

func (h *Handler) streamTurn(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string, history []chat.Message, userMsg chat.Message) (*schema.Message, error) {
	stream, err := h.aiSvc.Stream(ctx, history, userMsg)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			h.sendSSE(w, flusher, StreamResponse{
				Event:     "delta",
				SessionID: sessionID,
				Content:   chunk.Content,
			})
		}
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   response.Content,
	})

	return response, nil
}

func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEChunk(w, flusher, response)
}

func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}
